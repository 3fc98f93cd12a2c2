package app

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"dmriqc/adapters/chart"
	"dmriqc/domain/metrics"
	"dmriqc/domain/report"
	"dmriqc/internal"
	"dmriqc/internal/errors"
	"dmriqc/internal/extract"
	"dmriqc/internal/output"
	"dmriqc/internal/qa"
	"dmriqc/internal/stats"
	"dmriqc/ports"
)

// Options are the settings shared by every report kind
type Options struct {
	Workers      int                     `validate:"min=1"`
	StdThreshold float64                 `validate:"gt=0"`
	OnCollision  metrics.CollisionPolicy `validate:"oneof=error last-write-wins"`
	Overwrite    bool
	// XLSX also writes the tables to a workbook next to the report
	XLSX bool
}

// DefaultOptions runs sequentially with a two-standard-deviation band
func DefaultOptions() Options {
	return Options{Workers: 1, StdThreshold: qa.DefaultStdThreshold, OnCollision: metrics.CollisionError}
}

var validate = validator.New()

func validateRequest(req interface{}) error {
	if err := validate.Struct(req); err != nil {
		return errors.Wrap(errors.InvalidInput(err.Error()), "invalid request")
	}
	return nil
}

// groupPlan describes one metric group to compute
type groupPlan struct {
	Name           string
	Extractor      extract.Extractor
	Inputs         []extract.Input
	WarningColumns []string
	ChartColumns   []string
}

// pipeline runs the single-threaded part of a report: extraction,
// aggregation, outlier detection and charts.
type pipeline struct {
	opts   Options
	logger *internal.Logger
}

func (p pipeline) runGroup(ctx context.Context, plan groupPlan) (report.MetricGroup, error) {
	start := time.Now()
	tbl, err := extract.BuildTable(ctx, plan.Name, plan.Extractor, plan.Inputs, p.opts.OnCollision)
	if err != nil {
		return report.MetricGroup{}, err
	}

	pop := stats.Aggregate(tbl)
	warnings := qa.Detect(tbl, pop, plan.WarningColumns, p.opts.StdThreshold)
	plots, err := chart.Render(plan.Name, plan.ChartColumns, tbl, pop, p.opts.StdThreshold)
	if err != nil {
		return report.MetricGroup{}, err
	}

	p.logger.Info("group %q: %d subjects, %d warnings, %d plots in %s",
		plan.Name, tbl.Len(), warnings.NbWarnings(), len(plots), time.Since(start).Round(time.Millisecond))
	return report.MetricGroup{
		Name:       plan.Name,
		Table:      tbl,
		Population: pop,
		Warnings:   warnings,
		Plots:      plots,
	}, nil
}

// publish writes the report and, when requested, the workbook
func publish(ctx context.Context, sink ports.ReportSink, exporter ports.TableExporter, out *output.Context, opts Options, r *report.Report) error {
	dst := ports.Destination{ReportPath: out.ReportPath, LibsDir: out.LibsDir}
	if err := sink.Write(ctx, r, dst); err != nil {
		return err
	}
	if opts.XLSX && exporter != nil {
		if err := exporter.Export(ctx, r, workbookPath(out.ReportPath)); err != nil {
			return err
		}
	}
	return nil
}

func workbookPath(reportPath string) string {
	return strings.TrimSuffix(reportPath, filepath.Ext(reportPath)) + ".xlsx"
}

func checkOutputs(out *output.Context, opts Options) error {
	if opts.XLSX {
		return out.Check(workbookPath(out.ReportPath))
	}
	return out.Check()
}
