package report

import (
	"dmriqc/domain/metrics"
	"dmriqc/domain/subject"
	"dmriqc/internal/errors"
)

// Report kinds
const (
	KindConfound     = "fmriprep"
	KindRegistration = "registration"
	KindTractogram   = "tractogram"
)

// MetricGroup is everything computed for one group of metric columns
type MetricGroup struct {
	Name        string
	Table       *metrics.Table
	Population  metrics.PopulationStats
	Warnings    metrics.WarningSet
	Plots       []Plot
	Screenshots []Screenshot
}

// FigureGroup is a set of per-subject figures without statistics
type FigureGroup struct {
	Name    string
	Figures []Screenshot
}

// ConfoundReport combines fMRIPrep figures and confound metrics
type ConfoundReport struct {
	SubjectCount int
	Description  string
	Figures      []FigureGroup
	Metrics      []MetricGroup
}

// RegistrationReport covers the mean-in-tissue metrics of registered images
type RegistrationReport struct {
	SubjectCount int
	Description  string
	Group        MetricGroup
}

// TractogramReport covers streamline counts and tracking screenshots
type TractogramReport struct {
	SubjectCount int
	Description  string
	Group        MetricGroup
	Online       bool
}

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeInternalError, "invalid report: "+format, args...)
}

// noRowBound lets a group hold several rows per subject, as confound groups do
// with one row per session, task and run.
const noRowBound = -1

func (g MetricGroup) validate(maxRows int, validOnly bool) error {
	if g.Name == "" {
		return invalid("metric group without a name")
	}
	if g.Table == nil {
		return invalid("%s: no table", g.Name)
	}
	if maxRows != noRowBound && g.Table.Len() > maxRows {
		return invalid("%s: %d rows for %d subjects", g.Name, g.Table.Len(), maxRows)
	}
	cols := make(map[string]bool)
	for _, c := range g.Table.Columns() {
		cols[c] = true
	}
	for _, c := range g.Population.Columns {
		if !cols[c] {
			return invalid("%s: population column %q not in table", g.Name, c)
		}
	}
	for _, c := range g.Warnings.Columns {
		if !cols[c] {
			return invalid("%s: warning column %q not in table", g.Name, c)
		}
	}
	if n := g.Warnings.NbWarnings(); n > g.Table.Len() {
		return invalid("%s: %d warnings for %d subjects", g.Name, n, g.Table.Len())
	}

	seen := make(map[subject.Key]bool, len(g.Screenshots))
	for _, s := range g.Screenshots {
		row, ok := g.Table.Get(s.Key)
		if !ok {
			return invalid("%s: screenshot for unknown subject %s", g.Name, s.Key)
		}
		if validOnly && !row.Valid {
			return invalid("%s: screenshot for excluded subject %s", g.Name, s.Key)
		}
		if s.Path == "" {
			return invalid("%s: empty screenshot path for %s", g.Name, s.Key)
		}
		if seen[s.Key] {
			return invalid("%s: duplicate screenshot for %s", g.Name, s.Key)
		}
		seen[s.Key] = true
	}
	return nil
}

func (g MetricGroup) section() Section {
	cols := g.Table.Columns()
	sec := Section{
		Name:       g.Name,
		Summary:    RenderTable(g.Table, g.Warnings),
		Population: RenderPopulation(g.Population),
		Warnings:   RenderWarnings(g.Warnings),
	}
	for _, s := range g.Screenshots {
		sec.Subjects = append(sec.Subjects, SubjectEntry{
			Name:       s.Key.String(),
			Screenshot: s.Path,
			Stats:      RenderStats(s.Key.String(), cols, s.Stats),
		})
	}
	return sec
}

func (f FigureGroup) validate() error {
	if f.Name == "" {
		return invalid("figure group without a name")
	}
	seen := make(map[subject.Key]bool, len(f.Figures))
	for _, s := range f.Figures {
		if s.Path == "" {
			return invalid("%s: empty figure path for %s", f.Name, s.Key)
		}
		if seen[s.Key] {
			return invalid("%s: duplicate figure for %s", f.Name, s.Key)
		}
		seen[s.Key] = true
	}
	return nil
}

func (f FigureGroup) section() Section {
	sec := Section{Name: f.Name}
	for _, s := range f.Figures {
		sec.Subjects = append(sec.Subjects, SubjectEntry{Name: s.Key.String(), Screenshot: s.Path})
	}
	return sec
}

// Validate checks the confound report invariants
func (r ConfoundReport) Validate() error {
	if len(r.Figures) == 0 && len(r.Metrics) == 0 {
		return invalid("fmriprep report needs figures or metrics")
	}
	names := make(map[string]bool)
	for _, f := range r.Figures {
		if err := f.validate(); err != nil {
			return err
		}
		if names[f.Name] {
			return invalid("duplicate section %q", f.Name)
		}
		names[f.Name] = true
	}
	for _, g := range r.Metrics {
		if err := g.validate(noRowBound, false); err != nil {
			return err
		}
		if names[g.Name] {
			return invalid("duplicate section %q", g.Name)
		}
		names[g.Name] = true
	}
	return nil
}

// Build validates the record and lowers it into the sink structure.
// Figure sections come first, then metric sections, each in request order.
func (r ConfoundReport) Build() (*Report, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	out := &Report{
		Kind:         KindConfound,
		Title:        "Quality Assurance fmriPrep",
		Description:  r.Description,
		SubjectCount: r.SubjectCount,
	}
	for _, f := range r.Figures {
		out.Sections = append(out.Sections, f.section())
	}
	for _, g := range r.Metrics {
		out.Sections = append(out.Sections, g.section())
		out.Plots = append(out.Plots, g.Plots...)
	}
	return out, nil
}

// Validate checks the registration report invariants
func (r RegistrationReport) Validate() error {
	return r.Group.validate(r.SubjectCount, false)
}

// Build validates the record and lowers it into the sink structure
func (r RegistrationReport) Build() (*Report, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &Report{
		Kind:         KindRegistration,
		Title:        "Quality Assurance registration",
		Description:  r.Description,
		SubjectCount: r.SubjectCount,
		Sections:     []Section{r.Group.section()},
		Plots:        append([]Plot(nil), r.Group.Plots...),
	}, nil
}

// Validate checks the tractogram report invariants; only subjects with
// streamlines may have a screenshot.
func (r TractogramReport) Validate() error {
	return r.Group.validate(r.SubjectCount, true)
}

// Build validates the record and lowers it into the sink structure
func (r TractogramReport) Build() (*Report, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &Report{
		Kind:         KindTractogram,
		Title:        "Quality Assurance tractograms",
		Description:  r.Description,
		SubjectCount: r.SubjectCount,
		Online:       r.Online,
		Sections:     []Section{r.Group.section()},
		Plots:        append([]Plot(nil), r.Group.Plots...),
	}, nil
}
