package model

// GoalProgress is a goal joined with the consumption in its current window.
type GoalProgress struct {
	GoalID  string  `json:"id"`
	Type    string  `json:"type"`
	Period  string  `json:"period"`
	Target  float64 `json:"target"`
	Current float64 `json:"current"`
	Percent float64 `json:"percent"`
}

// Totals holds summed nutrients for one aggregation bucket.
type Totals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Add adds an item's nutrients, counting unknown values as 0.
func (t *Totals) Add(item FoodItem) {
	t.Calories += item.Nutrient(NutrientCalories)
	t.Protein += item.Nutrient(NutrientProtein)
	t.Carbs += item.Nutrient(NutrientCarbs)
	t.Fat += item.Nutrient(NutrientFat)
}

// Get returns the total for a nutrient type.
func (t Totals) Get(nutrient string) float64 {
	switch nutrient {
	case NutrientCalories:
		return t.Calories
	case NutrientProtein:
		return t.Protein
	case NutrientCarbs:
		return t.Carbs
	case NutrientFat:
		return t.Fat
	}
	return 0
}
