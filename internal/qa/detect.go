package qa

import (
	"math"

	"dmriqc/domain/metrics"
	"dmriqc/domain/subject"
)

// DefaultStdThreshold is the number of standard deviations around the
// population mean inside which a value is accepted.
const DefaultStdThreshold = 2.0

// Detect flags, for every column, the subjects whose value lies outside
// mean +/- k*std of the population. Undefined values are always flagged;
// an undefined std flags only undefined values.
func Detect(t *metrics.Table, pop metrics.PopulationStats, columns []string, k float64) metrics.WarningSet {
	ws := metrics.WarningSet{
		Columns: append([]string(nil), columns...),
		Flagged: make(map[string][]subject.Key, len(columns)),
	}
	rows := t.Rows()
	for _, c := range columns {
		summary := pop.Get(c)
		lo, hi := summary.Range(k)
		flagged := []subject.Key{}
		for _, r := range rows {
			if outside(r.Value(c), lo, hi) {
				flagged = append(flagged, r.Key)
			}
		}
		ws.Flagged[c] = flagged
	}
	return ws
}

func outside(v, lo, hi float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return true
	}
	if math.IsNaN(lo) || math.IsNaN(hi) {
		return false
	}
	return v < lo || v > hi
}
