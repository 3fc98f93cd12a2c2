package report

import (
	"math"
	"strconv"

	"dmriqc/domain/metrics"
)

// FormatValue renders a metric value for display
func FormatValue(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == math.Trunc(v) && math.Abs(v) < 1e15:
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// RenderTable renders the subject x metric table, marking flagged cells
func RenderTable(t *metrics.Table, ws metrics.WarningSet) *DisplayTable {
	cols := t.Columns()
	dt := &DisplayTable{Index: "subject", Columns: cols}
	for _, r := range t.Rows() {
		row := DisplayRow{
			Label:   r.Key.String(),
			Cells:   make([]string, len(cols)),
			Flagged: make([]bool, len(cols)),
		}
		for i, c := range cols {
			row.Cells[i] = FormatValue(r.Value(c))
			row.Flagged[i] = ws.IsFlagged(c, r.Key)
		}
		dt.Rows = append(dt.Rows, row)
	}
	return dt
}

// RenderPopulation renders the mean/std/min/max table
func RenderPopulation(pop metrics.PopulationStats) *DisplayTable {
	dt := &DisplayTable{Index: "statistic", Columns: append([]string(nil), pop.Columns...)}
	for _, name := range metrics.StatNames {
		row := DisplayRow{Label: name, Cells: make([]string, len(pop.Columns)), Flagged: make([]bool, len(pop.Columns))}
		for i, c := range pop.Columns {
			row.Cells[i] = FormatValue(pop.Stat(name, c))
		}
		dt.Rows = append(dt.Rows, row)
	}
	return dt
}

// RenderStats renders one subject's values as a single-row table
func RenderStats(label string, columns []string, values map[string]float64) *DisplayTable {
	row := DisplayRow{Label: label, Cells: make([]string, len(columns)), Flagged: make([]bool, len(columns))}
	for i, c := range columns {
		v, ok := values[c]
		if !ok {
			v = math.NaN()
		}
		row.Cells[i] = FormatValue(v)
	}
	return &DisplayTable{Index: "subject", Columns: append([]string(nil), columns...), Rows: []DisplayRow{row}}
}

// RenderWarnings converts a warning set to its display form
func RenderWarnings(ws metrics.WarningSet) *Warnings {
	w := &Warnings{
		Columns:    append([]string(nil), ws.Columns...),
		Flagged:    make(map[string][]string, len(ws.Columns)),
		NbWarnings: ws.NbWarnings(),
	}
	for _, c := range ws.Columns {
		names := make([]string, 0, len(ws.Flagged[c]))
		for _, k := range ws.Flagged[c] {
			names = append(names, k.String())
		}
		w.Flagged[c] = names
	}
	return w
}
