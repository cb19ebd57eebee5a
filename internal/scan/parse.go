package scan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/erazemk/prehrana/internal/model"
)

// Prompt is the instruction sent with every image.
const Prompt = `Analyze this food image and extract the following information in JSON format:
- Food items (list all visible food items)
- Calories for each food item
- Protein (in grams) for each food item
- Carbs (in grams) for each food item
- Fat (in grams) for each food item
- Total calories for the entire meal

Only respond with valid JSON in this exact format:
{
  "foodItems": [
    {
      "name": "string",
      "calories": number,
      "protein": number,
      "carbs": number,
      "fat": number
    }
  ],
  "totalCalories": number
}

If it's not a food image, return an empty object.`

// Analysis is the structured nutrition data extracted from one image.
// An empty analysis means no food was detected.
type Analysis struct {
	FoodItems     []model.FoodItem `json:"foodItems,omitempty"`
	TotalCalories *float64         `json:"totalCalories,omitempty"`
}

// Empty reports whether no food items were detected.
func (a *Analysis) Empty() bool {
	return len(a.FoodItems) == 0
}

// Total returns the meal-level calories, or 0 when not reported.
func (a *Analysis) Total() float64 {
	if a.TotalCalories == nil {
		return 0
	}
	return *a.TotalCalories
}

var fenceMarker = regexp.MustCompile("```(?:json)?\\n?")

// CleanResponse strips code fence markers from a model reply and trims
// surrounding whitespace.
func CleanResponse(text string) string {
	return strings.TrimSpace(fenceMarker.ReplaceAllString(text, ""))
}

// ParseResponse cleans a model reply and parses it as an Analysis. Text that
// is not a JSON object, or items without a name or calories, fail with
// ErrMalformedResponse.
func ParseResponse(text string) (*Analysis, error) {
	cleaned := CleanResponse(text)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &fields); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedResponse)
	}

	a := &Analysis{}
	if raw, ok := fields["totalCalories"]; ok && !isNull(raw) {
		var total float64
		if err := json.Unmarshal(raw, &total); err != nil {
			return nil, fmt.Errorf("%w: totalCalories: %w", ErrMalformedResponse, err)
		}
		a.TotalCalories = &total
	}

	raw, ok := fields["foodItems"]
	if !ok || isNull(raw) {
		return a, nil
	}

	var items []model.FoodItemInput
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: foodItems: %w", ErrMalformedResponse, err)
	}

	var sum float64
	for i, in := range items {
		item, err := in.FoodItem()
		if err != nil {
			return nil, fmt.Errorf("%w: item %d: %w", ErrMalformedResponse, i, err)
		}
		a.FoodItems = append(a.FoodItems, item)
		sum += item.Calories
	}

	if len(a.FoodItems) > 0 && a.TotalCalories == nil {
		a.TotalCalories = &sum
	}
	return a, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
