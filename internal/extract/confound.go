package extract

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dmriqc/adapters/tabular"
)

// ConfoundExtractor summarizes one column of a confound time series
type ConfoundExtractor struct {
	Metric string
}

// ConfoundColumns returns the derived column names for metric
func ConfoundColumns(metric string) []string {
	return []string{"Max " + metric, "Min " + metric, "Mean " + metric}
}

func (e ConfoundExtractor) Columns() []string { return ConfoundColumns(e.Metric) }

func (e ConfoundExtractor) Roles() []string { return []string{RoleConfounds} }

// Extract emits the max, min and mean of the column, skipping missing samples
func (e ConfoundExtractor) Extract(_ context.Context, in Input) (Result, error) {
	path, err := in.File(RoleConfounds)
	if err != nil {
		return Result{}, err
	}
	tbl, err := tabular.ReadTSV(path)
	if err != nil {
		return Result{}, err
	}
	col, err := tbl.Column(e.Metric)
	if err != nil {
		return Result{}, err
	}

	cols := e.Columns()
	maxV, minV, meanV := seriesSummary(col)
	return Result{
		Values: map[string]float64{cols[0]: maxV, cols[1]: minV, cols[2]: meanV},
		Valid:  true,
	}, nil
}

func seriesSummary(col []float64) (maxV, minV, meanV float64) {
	samples := make([]float64, 0, len(col))
	for _, v := range col {
		if !math.IsNaN(v) {
			samples = append(samples, v)
		}
	}
	if len(samples) == 0 {
		nan := math.NaN()
		return nan, nan, nan
	}
	return floats.Max(samples), floats.Min(samples), stat.Mean(samples, nil)
}
