package model

import "fmt"

// FoodItem is a single food detected in a scan. Protein, Carbs and Fat are
// nil when the model did not report them (unknown, not zero).
type FoodItem struct {
	Name     string   `json:"name" bson:"name"`
	Calories float64  `json:"calories" bson:"calories"`
	Protein  *float64 `json:"protein,omitempty" bson:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty" bson:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty" bson:"fat,omitempty"`
}

// FoodScan is one persisted food photograph and its nutrition breakdown.
// Scans are write-once.
type FoodScan struct {
	ID            string     `json:"id" bson:"_id"`
	UserID        string     `json:"user_id" bson:"user_id"`
	ImageURL      string     `json:"image_url" bson:"image_url"`
	FoodItems     []FoodItem `json:"food_items" bson:"food_items"`
	TotalCalories float64    `json:"total_calories" bson:"total_calories"`
	Timestamp     int64      `json:"timestamp" bson:"timestamp"` // ms since epoch
}

// Nutrient returns the item's value for the given nutrient type, treating
// unknown values as 0.
func (f FoodItem) Nutrient(t string) float64 {
	var v *float64
	switch t {
	case NutrientCalories:
		return f.Calories
	case NutrientProtein:
		v = f.Protein
	case NutrientCarbs:
		v = f.Carbs
	case NutrientFat:
		v = f.Fat
	}
	if v == nil {
		return 0
	}
	return *v
}

// Float returns a pointer to v, for optional nutrient fields.
func Float(v float64) *float64 {
	return &v
}

// FoodItemInput is a food item as submitted by a client or returned by the
// vision model, before required fields are checked.
type FoodItemInput struct {
	Name     *string  `json:"name"`
	Calories *float64 `json:"calories"`
	Protein  *float64 `json:"protein"`
	Carbs    *float64 `json:"carbs"`
	Fat      *float64 `json:"fat"`
}

// FoodItem checks that name and calories are present and returns the item.
func (in FoodItemInput) FoodItem() (FoodItem, error) {
	if in.Name == nil || *in.Name == "" {
		return FoodItem{}, fmt.Errorf("food item name required")
	}
	if in.Calories == nil {
		return FoodItem{}, fmt.Errorf("food item %q has no calories", *in.Name)
	}
	return FoodItem{
		Name:     *in.Name,
		Calories: *in.Calories,
		Protein:  in.Protein,
		Carbs:    in.Carbs,
		Fat:      in.Fat,
	}, nil
}
