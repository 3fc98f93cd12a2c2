package metrics

import (
	"fmt"
	"math"

	"dmriqc/domain/subject"
	"dmriqc/internal/errors"
)

// CollisionPolicy decides what happens when two inputs resolve to the same key
type CollisionPolicy string

const (
	// CollisionError rejects the second insert with a KEY_COLLISION error
	CollisionError CollisionPolicy = "error"
	// CollisionLastWriteWins replaces the earlier row in place and reports the conflict
	CollisionLastWriteWins CollisionPolicy = "last-write-wins"
)

// ParseCollisionPolicy validates a policy name
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(s) {
	case CollisionError, CollisionLastWriteWins:
		return CollisionPolicy(s), nil
	case "":
		return CollisionError, nil
	}
	return "", errors.Newf(errors.CodeConfigInvalid, "unknown collision policy %q", s)
}

// Conflict describes a replaced row under last-write-wins
type Conflict struct {
	Key      subject.Key
	Previous []string
	Current  []string
}

// Row is one subject's derived statistics
type Row struct {
	Key    subject.Key
	Inputs []string
	Values map[string]float64
	// Valid is false when the subject is kept in the statistics but skipped
	// in the per-subject artifact phase.
	Valid bool
}

// Value returns the value of column, NaN when missing
func (r Row) Value(column string) float64 {
	if v, ok := r.Values[column]; ok {
		return v
	}
	return math.NaN()
}

// Table is the subject x metric table of one metric group.
// Rows keep insertion order.
type Table struct {
	Group      string
	columns    []string
	rows       []Row
	index      map[subject.Key]int
	policy     CollisionPolicy
	onConflict func(Conflict)
}

// NewTable creates an empty table with a fixed column set
func NewTable(group string, columns []string, policy CollisionPolicy) *Table {
	if policy == "" {
		policy = CollisionError
	}
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{
		Group:   group,
		columns: cols,
		index:   make(map[subject.Key]int),
		policy:  policy,
	}
}

// OnConflict registers a callback invoked for every row replaced under last-write-wins
func (t *Table) OnConflict(fn func(Conflict)) {
	t.onConflict = fn
}

// Insert adds a row. Every column must be present in values.
func (t *Table) Insert(row Row) error {
	for _, c := range t.columns {
		if _, ok := row.Values[c]; !ok {
			return errors.Newf(errors.CodeInternalError, "row %s is missing column %q", row.Key, c)
		}
	}

	if i, ok := t.index[row.Key]; ok {
		if t.policy != CollisionLastWriteWins {
			return errors.Wrapf(errors.KeyCollision(row.Key.String()),
				"%s: inputs %v and %v", t.Group, t.rows[i].Inputs, row.Inputs)
		}
		if t.onConflict != nil {
			t.onConflict(Conflict{Key: row.Key, Previous: t.rows[i].Inputs, Current: row.Inputs})
		}
		t.rows[i] = row
		return nil
	}

	t.index[row.Key] = len(t.rows)
	t.rows = append(t.rows, row)
	return nil
}

// Columns returns the column names in display order
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Rows returns the rows in insertion order
func (t *Table) Rows() []Row {
	out := make([]Row, len(t.rows))
	copy(out, t.rows)
	return out
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Get returns the row for key
func (t *Table) Get(key subject.Key) (Row, bool) {
	i, ok := t.index[key]
	if !ok {
		return Row{}, false
	}
	return t.rows[i], true
}

// Column returns the values of one column in row order
func (t *Table) Column(name string) []float64 {
	out := make([]float64, len(t.rows))
	for i, r := range t.rows {
		out[i] = r.Value(name)
	}
	return out
}

// ValidRows returns the rows eligible for the per-subject artifact phase
func (t *Table) ValidRows() []Row {
	var out []Row
	for _, r := range t.rows {
		if r.Valid {
			out = append(out, r)
		}
	}
	return out
}

func (t *Table) String() string {
	return fmt.Sprintf("%s[%d subjects x %d columns]", t.Group, len(t.rows), len(t.columns))
}
