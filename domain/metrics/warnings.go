package metrics

import "dmriqc/domain/subject"

// WarningSet lists, per evaluated column, the subjects outside the accepted range
type WarningSet struct {
	Columns []string
	Flagged map[string][]subject.Key
}

// NbWarnings counts distinct flagged subjects across all columns
func (w WarningSet) NbWarnings() int {
	return len(w.Subjects())
}

// Subjects returns the deduplicated union of flagged keys, first-seen order
func (w WarningSet) Subjects() []subject.Key {
	seen := make(map[subject.Key]bool)
	var out []subject.Key
	for _, c := range w.Columns {
		for _, k := range w.Flagged[c] {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

// IsFlagged reports whether key is flagged in column
func (w WarningSet) IsFlagged(column string, key subject.Key) bool {
	for _, k := range w.Flagged[column] {
		if k == key {
			return true
		}
	}
	return false
}
