package stats

import (
	"math"

	mstats "github.com/montanaflynn/stats"

	"dmriqc/domain/metrics"
)

// Aggregate computes column-wise mean, sample standard deviation, min and max
// over the finite values of the table. It does not modify the table.
func Aggregate(t *metrics.Table) metrics.PopulationStats {
	cols := t.Columns()
	pop := metrics.PopulationStats{
		Columns:  cols,
		ByColumn: make(map[string]metrics.Summary, len(cols)),
	}
	for _, c := range cols {
		pop.ByColumn[c] = Summarize(t.Column(c))
	}
	return pop
}

// Summarize returns the statistics of values, ignoring NaN and infinities.
// No finite value gives NaN everywhere; fewer than two gives a NaN std.
func Summarize(values []float64) metrics.Summary {
	data := finite(values)
	nan := math.NaN()
	s := metrics.Summary{Mean: nan, Std: nan, Min: nan, Max: nan}
	if len(data) == 0 {
		return s
	}

	if v, err := mstats.Mean(data); err == nil {
		s.Mean = v
	}
	if v, err := mstats.Min(data); err == nil {
		s.Min = v
	}
	if v, err := mstats.Max(data); err == nil {
		s.Max = v
	}
	if len(data) > 1 {
		if v, err := mstats.StandardDeviationSample(data); err == nil {
			s.Std = v
		}
	}
	return s
}

func finite(values []float64) mstats.Float64Data {
	out := make(mstats.Float64Data, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}
