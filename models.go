package main

import (
	"github.com/wozniakbe/nutriscan/internal/nutrition"
	"github.com/wozniakbe/nutriscan/internal/scan"
)

// Scan statuses reported in ScanResponse.Status.
const (
	statusFound     = "found"
	statusNotFound  = "not_found"
	statusNoBarcode = "no_barcode"
)

// ThresholdsResponse is returned for threshold lookups. Source is "stored"
// for saved thresholds and "default" when derived from scan history.
type ThresholdsResponse struct {
	UserID     string               `json:"userId"`
	Thresholds nutrition.Thresholds `json:"thresholds"`
	Source     string               `json:"source"`
}

// ThresholdsPatch carries a partial threshold update. Nil fields are left
// unchanged.
type ThresholdsPatch struct {
	MaxCalories *float64 `json:"maxCalories"`
	MinProtein  *float64 `json:"minProtein"`
	MaxFat      *float64 `json:"maxFat"`
	MaxCarbs    *float64 `json:"maxCarbs"`
	MaxSugar    *float64 `json:"maxSugar"`
	MinFiber    *float64 `json:"minFiber"`
}

func (p ThresholdsPatch) fields() map[nutrition.Nutrient]*float64 {
	return map[nutrition.Nutrient]*float64{
		nutrition.Calories: p.MaxCalories,
		nutrition.Protein:  p.MinProtein,
		nutrition.Fat:      p.MaxFat,
		nutrition.Carbs:    p.MaxCarbs,
		nutrition.Sugar:    p.MaxSugar,
		nutrition.Fiber:    p.MinFiber,
	}
}

// Empty reports whether no field is set.
func (p ThresholdsPatch) Empty() bool {
	for _, v := range p.fields() {
		if v != nil {
			return false
		}
	}
	return true
}

// Complete reports whether every field is set.
func (p ThresholdsPatch) Complete() bool {
	for _, v := range p.fields() {
		if v == nil {
			return false
		}
	}
	return true
}

// Apply returns th with every set field of p applied.
func (p ThresholdsPatch) Apply(th nutrition.Thresholds) nutrition.Thresholds {
	for n, v := range p.fields() {
		if v != nil {
			th = th.With(n, *v)
		}
	}
	return th
}

// ScanResponse is returned by the scan endpoint.
type ScanResponse struct {
	Status string `json:"status"`
	scan.Report
}

// ProductResponse is returned by the product lookup endpoint.
type ProductResponse struct {
	Barcode string            `json:"barcode"`
	Source  scan.Source       `json:"source"`
	Record  *nutrition.Record `json:"record"`
}

// StatsResponse summarises the scan history held in the cache.
type StatsResponse struct {
	Entries   int                       `json:"entries"`
	Nutrients []nutrition.NutrientStats `json:"nutrients"`
	Defaults  nutrition.Thresholds      `json:"defaults"`
}
