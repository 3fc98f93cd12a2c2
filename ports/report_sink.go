package ports

import (
	"context"

	"dmriqc/domain/report"
)

// Destination is where a sink writes a report
type Destination struct {
	ReportPath string
	// LibsDir receives the static assets of an offline report
	LibsDir string
}

// ReportSink renders an assembled report
type ReportSink interface {
	Write(ctx context.Context, r *report.Report, dst Destination) error
}

// TableExporter writes the tabular part of a report to a side file
type TableExporter interface {
	Export(ctx context.Context, r *report.Report, path string) error
}
