package sst

import (
	"encoding/json"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

var nan = math.NaN()

// Stats summarises a 2-D SST slice. All four values are NaN when the slice
// holds no valid data.
type Stats struct {
	Mean   float64
	Min    float64
	Max    float64
	Median float64
}

// Reduce reads the 2-D slice of f and computes its statistics. The slice is
// returned as well so callers do not read the field twice.
func Reduce(f *Field) (*Grid, Stats, error) {
	g, err := f.Slice()
	if err != nil {
		return nil, Stats{}, err
	}
	return g, ComputeStats(g), nil
}

// ComputeStats computes NaN-aware mean, min, max and median of g.
func ComputeStats(g *Grid) Stats {
	valid := make([]float64, 0, len(g.Values))
	for _, v := range g.Values {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return Stats{Mean: nan, Min: nan, Max: nan, Median: nan}
	}
	sort.Float64s(valid)

	lo, hi := floats.Min(valid), floats.Max(valid)
	// Summation error can push the mean of near-constant data past an extreme.
	mean := math.Min(math.Max(stat.Mean(valid, nil), lo), hi)
	return Stats{
		Mean:   mean,
		Min:    lo,
		Max:    hi,
		Median: median(valid),
	}
}

// median expects sorted input. Even counts average the two middle values.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	a, b := sorted[n/2-1], sorted[n/2]
	if math.IsInf(a, 0) || math.IsInf(b, 0) {
		return a + (b-a)/2
	}
	return a/2 + b/2
}

// Empty reports whether the statistics come from an all-missing slice.
func (s Stats) Empty() bool {
	return math.IsNaN(s.Mean)
}

// LogAttrs returns the statistics as slog key/value pairs.
func (s Stats) LogAttrs() []any {
	return []any{
		"mean", s.Mean,
		"min", s.Min,
		"max", s.Max,
		"median", s.Median,
	}
}

// MarshalJSON writes non-finite values as null.
func (s Stats) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Mean   *float64 `json:"mean"`
		Min    *float64 `json:"min"`
		Max    *float64 `json:"max"`
		Median *float64 `json:"median"`
	}{
		Mean:   finite(s.Mean),
		Min:    finite(s.Min),
		Max:    finite(s.Max),
		Median: finite(s.Median),
	})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
