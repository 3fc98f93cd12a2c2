// Package report defines the structure handed to a report sink.
package report

import (
	"dmriqc/domain/subject"
)

// Plot is one rendered chart
type Plot struct {
	Title  string
	Column string
	SVG    []byte
}

// Screenshot is the result record of one per-subject artifact task
type Screenshot struct {
	Key   subject.Key
	Path  string
	Stats map[string]float64
}

// DisplayRow is one formatted table row
type DisplayRow struct {
	Label   string
	Cells   []string
	Flagged []bool
}

// DisplayTable is a table rendered to strings
type DisplayTable struct {
	Index   string
	Columns []string
	Rows    []DisplayRow
}

// Warnings is the display form of a metric group's warning set
type Warnings struct {
	Columns    []string
	Flagged    map[string][]string
	NbWarnings int
}

// SubjectEntry is one subject's screenshot and statistics inside a section
type SubjectEntry struct {
	Name       string
	Screenshot string
	Stats      *DisplayTable
}

// Section groups everything produced for one metric group or figure kind
type Section struct {
	Name       string
	Summary    *DisplayTable
	Population *DisplayTable
	Warnings   *Warnings
	Subjects   []SubjectEntry
}

// Report is the immutable input of a report sink
type Report struct {
	Kind         string
	Title        string
	Description  string
	SubjectCount int
	Online       bool
	Sections     []Section
	Plots        []Plot
}

// Section returns the section named name
func (r *Report) Section(name string) (Section, bool) {
	for _, s := range r.Sections {
		if s.Name == name {
			return s, true
		}
	}
	return Section{}, false
}
