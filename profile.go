package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wozniakbe/nutriscan/internal/nutrition"
)

// loadProfile reads a YAML thresholds profile such as
//
//	maxCalories: 350
//	minProtein: 5
//
// Keys absent from the file keep their value from base.
func loadProfile(path string, base nutrition.Thresholds) (nutrition.Thresholds, error) {
	//nolint:gosec // path is supplied by the user on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nutrition.Thresholds{}, fmt.Errorf("reading profile: %w", err)
	}

	th := base
	if err := yaml.Unmarshal(data, &th); err != nil {
		return nutrition.Thresholds{}, fmt.Errorf("parsing profile %s: %w", path, err)
	}
	if err := th.Validate(); err != nil {
		return nutrition.Thresholds{}, fmt.Errorf("profile %s: %w", path, err)
	}
	return th, nil
}
