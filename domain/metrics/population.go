package metrics

import "math"

// Summary holds the population statistics of one column
type Summary struct {
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Range returns the acceptable interval mean +/- k*std
func (s Summary) Range(k float64) (lo, hi float64) {
	return s.Mean - k*s.Std, s.Mean + k*s.Std
}

// PopulationStats is the mean/std/min/max table of a metric group, indexed by column
type PopulationStats struct {
	Columns  []string           `json:"columns"`
	ByColumn map[string]Summary `json:"by_column"`
}

// Get returns the summary of column; every field is NaN for an unknown column
func (p PopulationStats) Get(column string) Summary {
	if s, ok := p.ByColumn[column]; ok {
		return s
	}
	nan := math.NaN()
	return Summary{Mean: nan, Std: nan, Min: nan, Max: nan}
}

// StatNames are the row labels of the population table
var StatNames = []string{"mean", "std", "min", "max"}

// Stat returns the named statistic (mean, std, min, max) of column
func (p PopulationStats) Stat(name, column string) float64 {
	s := p.Get(column)
	switch name {
	case "mean":
		return s.Mean
	case "std":
		return s.Std
	case "min":
		return s.Min
	case "max":
		return s.Max
	}
	return math.NaN()
}
