// Package html renders a report as a single static HTML page.
package html

import (
	"bufio"
	"context"
	"html/template"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomarkdown/markdown"

	"dmriqc/domain/report"
	"dmriqc/internal/errors"
	"dmriqc/ports"
)

// OnlineStylesheet is linked instead of the bundled stylesheet in online mode
const OnlineStylesheet = "https://cdn.jsdelivr.net/npm/water.css@2/out/water.min.css"

const stylesheetName = "report.css"

// Sink writes reports with html/template
type Sink struct {
	tpl *template.Template
}

var _ ports.ReportSink = (*Sink)(nil)

// NewSink parses the page template
func NewSink() *Sink {
	tpl := template.Must(template.New("report").Funcs(template.FuncMap{
		"markdown": renderMarkdown,
		"svg":      func(b []byte) template.HTML { return template.HTML(b) },
		"anchor":   anchor,
	}).Parse(pageTemplate))
	return &Sink{tpl: tpl}
}

type page struct {
	*report.Report
	Stylesheet string
}

// Write renders r to dst.ReportPath. Offline reports get their stylesheet
// written into dst.LibsDir.
func (s *Sink) Write(_ context.Context, r *report.Report, dst ports.Destination) error {
	p := page{Report: r, Stylesheet: OnlineStylesheet}
	if !r.Online {
		if err := os.MkdirAll(dst.LibsDir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create %s", dst.LibsDir)
		}
		css := filepath.Join(dst.LibsDir, stylesheetName)
		if err := os.WriteFile(css, []byte(stylesheet), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", css)
		}
		rel, err := filepath.Rel(filepath.Dir(dst.ReportPath), css)
		if err != nil {
			rel = css
		}
		p.Stylesheet = filepath.ToSlash(rel)
	}

	f, err := os.Create(dst.ReportPath)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst.ReportPath)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	if err := s.tpl.Execute(w, p); err != nil {
		return errors.Wrapf(err, "failed to render %s", dst.ReportPath)
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "failed to write %s", dst.ReportPath)
	}
	log.Printf("[HTMLSink] wrote %s (%d sections, %d plots)", dst.ReportPath, len(r.Sections), len(r.Plots))
	return nil
}

func renderMarkdown(md string) template.HTML {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	return template.HTML(markdown.ToHTML([]byte(md), nil, nil))
}

func anchor(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	return b.String()
}
