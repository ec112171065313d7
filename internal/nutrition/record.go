// Package nutrition holds the nutrition record model and the rules used to
// compare a record against a user's nutrient thresholds.
package nutrition

import "strconv"

// Record holds per-100g nutrient facts for a single product.
type Record struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Protein  float64 `json:"protein"`
	Sugar    float64 `json:"sugar"`
	Fiber    float64 `json:"fiber"`
}

// IsZero reports whether r carries no name and no nutrient values.
func (r Record) IsZero() bool {
	return r == Record{}
}

// Nutrient identifies one of the six tracked nutrient fields.
type Nutrient string

const (
	Calories Nutrient = "calories"
	Protein  Nutrient = "protein"
	Fat      Nutrient = "fat"
	Carbs    Nutrient = "carbs"
	Sugar    Nutrient = "sugar"
	Fiber    Nutrient = "fiber"
)

// Nutrients lists the tracked nutrients in evaluation order.
var Nutrients = []Nutrient{Calories, Protein, Fat, Carbs, Sugar, Fiber}

// Value returns the record's value for n, or 0 for an unknown nutrient.
func (r Record) Value(n Nutrient) float64 {
	switch n {
	case Calories:
		return r.Calories
	case Protein:
		return r.Protein
	case Fat:
		return r.Fat
	case Carbs:
		return r.Carbs
	case Sugar:
		return r.Sugar
	case Fiber:
		return r.Fiber
	default:
		return 0
	}
}

// Label is the display name of n ("Calories", "Protein", ...).
func (n Nutrient) Label() string {
	if n == "" {
		return ""
	}
	return string(n[0]-'a'+'A') + string(n[1:])
}

// formatNumber renders v in its shortest form: 120, 2.5, 0.333.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
