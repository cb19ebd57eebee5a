package model

import "fmt"

// Goal is a user's target for one nutrient over a recurring period.
// (UserID, Type, Period) identifies a goal for upserts.
type Goal struct {
	ID        string  `json:"id" bson:"_id"`
	UserID    string  `json:"user_id" bson:"user_id"`
	Type      string  `json:"type" bson:"type"`
	Period    string  `json:"period" bson:"period"`
	Target    float64 `json:"target" bson:"target"`
	CreatedAt int64   `json:"created_at" bson:"created_at"` // ms since epoch
}

// Nutrient types.
const (
	NutrientCalories = "calories"
	NutrientProtein  = "protein"
	NutrientCarbs    = "carbs"
	NutrientFat      = "fat"
)

// Goal periods.
const (
	PeriodDaily  = "daily"
	PeriodWeekly = "weekly"
)

// ValidNutrient reports whether t is a known nutrient type.
func ValidNutrient(t string) bool {
	switch t {
	case NutrientCalories, NutrientProtein, NutrientCarbs, NutrientFat:
		return true
	}
	return false
}

// ValidPeriod reports whether p is a known goal period.
func ValidPeriod(p string) bool {
	return p == PeriodDaily || p == PeriodWeekly
}

// ValidateGoal checks the user-supplied parts of a goal.
func ValidateGoal(nutrient, period string, target float64) error {
	if !ValidNutrient(nutrient) {
		return fmt.Errorf("invalid goal type %q", nutrient)
	}
	if !ValidPeriod(period) {
		return fmt.Errorf("invalid goal period %q", period)
	}
	if !(target > 0) {
		return fmt.Errorf("target must be positive")
	}
	return nil
}
