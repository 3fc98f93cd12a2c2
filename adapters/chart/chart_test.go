package chart

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmriqc/domain/metrics"
	"dmriqc/domain/subject"
	"dmriqc/internal/stats"
)

func group(t *testing.T, values ...float64) *metrics.Table {
	t.Helper()
	tbl := metrics.NewTable("Tracking", []string{"Nb streamlines"}, metrics.CollisionError)
	for i, v := range values {
		require.NoError(t, tbl.Insert(metrics.Row{
			Key:    subject.Key{Subject: string(rune('a' + i))},
			Values: map[string]float64{"Nb streamlines": v},
			Valid:  v > 0,
		}))
	}
	return tbl
}

func TestRender(t *testing.T) {
	tbl := group(t, 1200, 0, 1500, 1320)
	plots, err := Render("Tracking", tbl.Columns(), tbl, stats.Aggregate(tbl), 2)
	require.NoError(t, err)
	require.Len(t, plots, 1)
	assert.Equal(t, "Nb streamlines", plots[0].Column)
	assert.Contains(t, string(plots[0].SVG), "<svg")
}

func TestRender_Degenerate(t *testing.T) {
	single := group(t, 42)
	plots, err := Render("Tracking", single.Columns(), single, stats.Aggregate(single), 2)
	require.NoError(t, err)
	assert.Len(t, plots, 1)

	undefined := group(t, math.NaN())
	plots, err = Render("Tracking", undefined.Columns(), undefined, stats.Aggregate(undefined), 2)
	require.NoError(t, err)
	assert.Empty(t, plots)
}
