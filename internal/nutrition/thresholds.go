package nutrition

import (
	"fmt"
	"math"

	"go.trai.ch/zerr"
)

// ErrThresholdOutOfRange is returned by Validate when a threshold falls
// outside its allowed range.
var ErrThresholdOutOfRange = zerr.New("threshold out of range")

// Thresholds are the user's nutrient limits. Max fields are upper bounds,
// Min fields are lower bounds.
type Thresholds struct {
	MaxCalories float64 `json:"maxCalories" yaml:"maxCalories"`
	MinProtein  float64 `json:"minProtein" yaml:"minProtein"`
	MaxFat      float64 `json:"maxFat" yaml:"maxFat"`
	MaxCarbs    float64 `json:"maxCarbs" yaml:"maxCarbs"`
	MaxSugar    float64 `json:"maxSugar" yaml:"maxSugar"`
	MinFiber    float64 `json:"minFiber" yaml:"minFiber"`
}

// Bound is the allowed range of a single threshold.
type Bound struct {
	Min, Max float64
}

// Bounds are the allowed ranges per nutrient.
var Bounds = map[Nutrient]Bound{
	Calories: {Min: 100, Max: 1500},
	Protein:  {Min: 0, Max: 50},
	Fat:      {Min: 0, Max: 50},
	Carbs:    {Min: 0, Max: 100},
	Sugar:    {Min: 0, Max: 50},
	Fiber:    {Min: 0, Max: 20},
}

// DefaultThresholds is used when no scan history exists yet.
var DefaultThresholds = Thresholds{
	MaxCalories: 400,
	MinProtein:  2,
	MaxFat:      5,
	MaxCarbs:    90,
	MaxSugar:    10,
	MinFiber:    1,
}

// Get returns the threshold configured for n.
func (t Thresholds) Get(n Nutrient) float64 {
	switch n {
	case Calories:
		return t.MaxCalories
	case Protein:
		return t.MinProtein
	case Fat:
		return t.MaxFat
	case Carbs:
		return t.MaxCarbs
	case Sugar:
		return t.MaxSugar
	case Fiber:
		return t.MinFiber
	default:
		return 0
	}
}

// With returns a copy of t with the threshold for n set to v.
func (t Thresholds) With(n Nutrient, v float64) Thresholds {
	switch n {
	case Calories:
		t.MaxCalories = v
	case Protein:
		t.MinProtein = v
	case Fat:
		t.MaxFat = v
	case Carbs:
		t.MaxCarbs = v
	case Sugar:
		t.MaxSugar = v
	case Fiber:
		t.MinFiber = v
	}
	return t
}

// Validate checks every threshold against Bounds.
func (t Thresholds) Validate() error {
	for _, n := range Nutrients {
		b := Bounds[n]
		v := t.Get(n)
		if math.IsNaN(v) || v < b.Min || v > b.Max {
			return fmt.Errorf("%w: %s %s not in [%s, %s]", ErrThresholdOutOfRange,
				n, formatNumber(v), formatNumber(b.Min), formatNumber(b.Max))
		}
	}
	return nil
}

// DefaultsFrom derives starting thresholds from previously scanned records:
// each threshold is the truncated mean of that nutrient, clamped to Bounds.
// With no records it returns DefaultThresholds.
func DefaultsFrom(records []Record) Thresholds {
	if len(records) == 0 {
		return DefaultThresholds
	}

	var t Thresholds
	for _, n := range Nutrients {
		var sum float64
		for _, r := range records {
			sum += r.Value(n)
		}
		mean := math.Trunc(sum / float64(len(records)))
		b := Bounds[n]
		t = t.With(n, math.Min(math.Max(mean, b.Min), b.Max))
	}
	return t
}
