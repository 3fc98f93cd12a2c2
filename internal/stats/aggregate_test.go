package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmriqc/domain/metrics"
	"dmriqc/domain/subject"
)

func buildTable(t *testing.T, values map[string][]float64, columns []string) *metrics.Table {
	t.Helper()
	tbl := metrics.NewTable("Test", columns, metrics.CollisionError)
	n := len(values[columns[0]])
	for i := 0; i < n; i++ {
		vals := make(map[string]float64, len(columns))
		for _, c := range columns {
			vals[c] = values[c][i]
		}
		key := subject.Key{Subject: "sub-" + string(rune('a'+i))}
		require.NoError(t, tbl.Insert(metrics.Row{Key: key, Values: vals, Valid: true}))
	}
	return tbl
}

func TestAggregate(t *testing.T) {
	cols := []string{"Max fd", "Mean fd"}
	tbl := buildTable(t, map[string][]float64{
		"Max fd":  {2, 4, 4, 4, 5, 5, 7, 9},
		"Mean fd": {1, 1, 1, 1, 1, 1, 1, 1},
	}, cols)

	pop := Aggregate(tbl)
	require.Equal(t, cols, pop.Columns)

	maxFd := pop.Get("Max fd")
	assert.InDelta(t, 5.0, maxFd.Mean, 1e-12)
	assert.InDelta(t, math.Sqrt(32.0/7.0), maxFd.Std, 1e-12)
	assert.Equal(t, 2.0, maxFd.Min)
	assert.Equal(t, 9.0, maxFd.Max)

	meanFd := pop.Get("Mean fd")
	assert.Equal(t, 0.0, meanFd.Std)
}

func TestAggregate_Idempotent(t *testing.T) {
	tbl := buildTable(t, map[string][]float64{"Nb streamlines": {100, 0, 250, 175}}, []string{"Nb streamlines"})
	first := Aggregate(tbl)
	second := Aggregate(tbl)
	assert.Equal(t, first, second)
	assert.Equal(t, []float64{100, 0, 250, 175}, tbl.Column("Nb streamlines"))
}

func TestSummarize_IgnoresNaN(t *testing.T) {
	s := Summarize([]float64{1, math.NaN(), 3})
	assert.Equal(t, 2.0, s.Mean)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 3.0, s.Max)
	assert.InDelta(t, math.Sqrt2, s.Std, 1e-12)
}

func TestSummarize_Degenerate(t *testing.T) {
	empty := Summarize([]float64{math.NaN()})
	assert.True(t, math.IsNaN(empty.Mean))
	assert.True(t, math.IsNaN(empty.Std))

	single := Summarize([]float64{4})
	assert.Equal(t, 4.0, single.Mean)
	assert.True(t, math.IsNaN(single.Std))
}

func TestPopulationStat(t *testing.T) {
	tbl := buildTable(t, map[string][]float64{"x": {1, 3}}, []string{"x"})
	pop := Aggregate(tbl)
	assert.Equal(t, 2.0, pop.Stat("mean", "x"))
	assert.Equal(t, 3.0, pop.Stat("max", "x"))
	assert.True(t, math.IsNaN(pop.Stat("median", "x")))
	assert.True(t, math.IsNaN(pop.Get("missing").Mean))
}
