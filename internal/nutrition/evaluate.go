package nutrition

import "fmt"

// Evaluate compares rec against th in the order calories, protein, fat,
// carbs, sugar, fiber. Upper bounds pass at equality, as do lower bounds.
//
// A nil record yields false with a nil mismatch list, which callers can tell
// apart from an evaluated record (non-nil list, possibly empty).
func Evaluate(rec *Record, th Thresholds) (bool, []string) {
	if rec == nil {
		return false, nil
	}

	mismatches := make([]string, 0, len(Nutrients))
	for _, n := range Nutrients {
		actual, limit := rec.Value(n), th.Get(n)
		if n.isLowerBound() {
			if actual < limit {
				mismatches = append(mismatches, mismatch(n, actual, "<", limit))
			}
			continue
		}
		if actual > limit {
			mismatches = append(mismatches, mismatch(n, actual, ">", limit))
		}
	}

	return len(mismatches) == 0, mismatches
}

func (n Nutrient) isLowerBound() bool {
	return n == Protein || n == Fiber
}

func mismatch(n Nutrient, actual float64, op string, limit float64) string {
	return fmt.Sprintf("%s (%s %s %s)", n.Label(), formatNumber(actual), op, formatNumber(limit))
}
