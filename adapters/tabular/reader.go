package tabular

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"dmriqc/internal/errors"
)

// Table is a parsed tab-separated file, one slice per named column
type Table struct {
	Path    string
	Headers []string
	columns map[string][]float64
}

// ReadTSV reads a tab-separated file with a header row.
// "n/a", "nan" and empty cells become NaN; any other non-numeric cell is an error.
func ReadTSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to open %s", path)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	t.Path = path
	log.Printf("[TSVReader] %s: %d columns", path, len(t.Headers))
	return t, nil
}

// Parse reads tab-separated content from r
func Parse(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.InvalidInput("empty tabular file")
	}
	if err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to read header")
	}

	t := &Table{Headers: header, columns: make(map[string][]float64, len(header))}
	for _, h := range header {
		t.columns[h] = nil
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to read row")
		}
		line++
		for i, h := range header {
			cell := ""
			if i < len(record) {
				cell = record[i]
			}
			v, err := parseCell(cell)
			if err != nil {
				return nil, errors.Newf(errors.CodeInvalidInput, "line %d column %q: %v", line, h, err)
			}
			t.columns[h] = append(t.columns[h], v)
		}
	}
	return t, nil
}

// Column returns the values of name, or an INVALID_INPUT error when absent
func (t *Table) Column(name string) ([]float64, error) {
	col, ok := t.columns[name]
	if !ok {
		return nil, errors.Newf(errors.CodeInvalidInput, "column %q not found in %s", name, t.Path)
	}
	return col, nil
}

// HasColumn reports whether name is a header
func (t *Table) HasColumn(name string) bool {
	_, ok := t.columns[name]
	return ok
}

func parseCell(cell string) (float64, error) {
	s := strings.TrimSpace(cell)
	switch strings.ToLower(s) {
	case "", "n/a", "na", "nan":
		return math.NaN(), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", cell)
	}
	return v, nil
}
