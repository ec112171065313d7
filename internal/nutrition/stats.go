package nutrition

// HistogramBins is the number of equal-width bins in NutrientStats.Histogram.
const HistogramBins = 10

// NutrientStats summarises one nutrient across a set of records.
type NutrientStats struct {
	Nutrient  Nutrient  `json:"nutrient"`
	Count     int       `json:"count"`
	Mean      float64   `json:"mean"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Edges     []float64 `json:"edges"`
	Histogram []int     `json:"histogram"`
}

// Summarize computes stats for every tracked nutrient, in Nutrients order.
func Summarize(records []Record) []NutrientStats {
	out := make([]NutrientStats, 0, len(Nutrients))
	for _, n := range Nutrients {
		values := make([]float64, len(records))
		for i, r := range records {
			values[i] = r.Value(n)
		}
		out = append(out, summarize(n, values))
	}
	return out
}

func summarize(n Nutrient, values []float64) NutrientStats {
	s := NutrientStats{Nutrient: n, Count: len(values)}
	if len(values) == 0 {
		return s
	}

	s.Min, s.Max = values[0], values[0]
	var sum float64
	for _, v := range values {
		sum += v
		s.Min = min(s.Min, v)
		s.Max = max(s.Max, v)
	}
	s.Mean = sum / float64(len(values))

	lo, hi := s.Min, s.Max
	if lo == hi {
		// A single-valued range is widened by half a unit each way.
		lo, hi = lo-0.5, hi+0.5
	}
	width := (hi - lo) / HistogramBins

	s.Edges = make([]float64, HistogramBins+1)
	for i := range s.Edges {
		s.Edges[i] = lo + float64(i)*width
	}
	s.Edges[HistogramBins] = hi

	s.Histogram = make([]int, HistogramBins)
	for _, v := range values {
		i := int((v - lo) / width)
		if i >= HistogramBins {
			// the last bin is closed on the right
			i = HistogramBins - 1
		}
		s.Histogram[i]++
	}
	return s
}
