// Package chart draws the per-column population charts of a metric group.
package chart

import (
	"bytes"
	"log"
	"math"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"dmriqc/domain/metrics"
	"dmriqc/domain/report"
	"dmriqc/internal/errors"
)

// Size of a rendered chart in pixels
const (
	Width  = 640
	Height = 360
)

// pointStyle renders points only, without connecting lines
func pointStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    4,
		DotColor:    col,
	}
}

func lineStyle(col drawing.Color, dashed bool) chart.Style {
	s := chart.Style{StrokeColor: col, StrokeWidth: 1.5}
	if dashed {
		s.StrokeDashArray = []float64{5, 5}
	}
	return s
}

// Render draws one chart per column: subject values in table order, the
// population mean and the accepted band mean +/- k*std. Columns without any
// finite value produce no chart.
func Render(group string, columns []string, t *metrics.Table, pop metrics.PopulationStats, k float64) ([]report.Plot, error) {
	var plots []report.Plot
	for _, c := range columns {
		svg, err := renderColumn(group, c, t.Column(c), pop.Get(c), k)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to draw %s / %s", group, c)
		}
		if svg == nil {
			log.Printf("[Chart] %s / %s has no finite value, skipped", group, c)
			continue
		}
		plots = append(plots, report.Plot{Title: group, Column: c, SVG: svg})
	}
	return plots, nil
}

func renderColumn(group, column string, values []float64, s metrics.Summary, k float64) ([]byte, error) {
	var xs, ys []float64
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xs = append(xs, float64(i))
		ys = append(ys, v)
	}
	if len(xs) == 0 {
		return nil, nil
	}

	xMin, xMax := -0.5, float64(len(values))-0.5
	yMin, yMax := bounds(ys)

	series := []chart.Series{
		chart.ContinuousSeries{Name: "subjects", XValues: xs, YValues: ys, Style: pointStyle(chart.ColorBlue)},
	}
	if !math.IsNaN(s.Mean) {
		series = append(series, chart.ContinuousSeries{
			Name: "mean", XValues: []float64{xMin, xMax}, YValues: []float64{s.Mean, s.Mean},
			Style: lineStyle(chart.ColorBlack, false),
		})
		if !math.IsNaN(s.Std) {
			lo, hi := s.Range(k)
			yMin, yMax = math.Min(yMin, lo), math.Max(yMax, hi)
			series = append(series,
				chart.ContinuousSeries{
					Name: "mean - k*std", XValues: []float64{xMin, xMax}, YValues: []float64{lo, lo},
					Style: lineStyle(chart.ColorRed, true),
				},
				chart.ContinuousSeries{
					Name: "mean + k*std", XValues: []float64{xMin, xMax}, YValues: []float64{hi, hi},
					Style: lineStyle(chart.ColorRed, true),
				},
			)
		}
	}

	pad := (yMax - yMin) * 0.1
	if pad == 0 {
		pad = math.Max(math.Abs(yMax)*0.1, 1)
	}

	ch := chart.Chart{
		Title:      group + " - " + column,
		Width:      Width,
		Height:     Height,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "subject", Range: &chart.ContinuousRange{Min: xMin, Max: xMax}},
		YAxis:      chart.YAxis{Name: column, Range: &chart.ContinuousRange{Min: yMin - pad, Max: yMax + pad}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.SVG, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func bounds(ys []float64) (lo, hi float64) {
	lo, hi = ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = math.Min(lo, y)
		hi = math.Max(hi, y)
	}
	return lo, hi
}
