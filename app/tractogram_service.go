package app

import (
	"context"
	"time"

	"dmriqc/adapters/screenshot"
	"dmriqc/domain/report"
	"dmriqc/domain/subject"
	"dmriqc/internal"
	"dmriqc/internal/extract"
	"dmriqc/internal/inputs"
	"dmriqc/internal/output"
	"dmriqc/ports"
)

// TrackingGroup is the section name of the tractogram report
const TrackingGroup = "Tracking"

const trackingDescription = "This report counts the streamlines of every tractogram and flags " +
	"counts outside the population band. Subjects without streamlines are listed in the table " +
	"but have no screenshot."

// TractogramService builds the tractogram QC report
type TractogramService struct {
	sink     ports.ReportSink
	exporter ports.TableExporter
	logger   *internal.Logger
}

// TractogramRequest pairs each tractogram with the anatomy it was traced on
type TractogramRequest struct {
	OutputReport string   `validate:"required"`
	Tractograms  []string `validate:"min=1,dive,required"`
	T1s          []string `validate:"min=1,dive,required"`
	// Online links the stylesheet from a CDN instead of shipping it in libs/
	Online   bool
	Tracking screenshot.TrackingOptions
	Options  Options
}

// TractogramResult summarizes a finished run
type TractogramResult struct {
	RunID       string
	ReportPath  string
	Subjects    int
	Empty       int
	NbWarnings  int
	Screenshots int
	RuntimeMs   int64
}

// NewTractogramService creates a tractogram report service
func NewTractogramService(sink ports.ReportSink, exporter ports.TableExporter, logger *internal.Logger) *TractogramService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &TractogramService{sink: sink, exporter: exporter, logger: logger.With("TractogramService")}
}

// Run validates the batch, counts streamlines, renders a screenshot for every
// non-empty tractogram and writes the report.
func (s *TractogramService) Run(ctx context.Context, req TractogramRequest) (*TractogramResult, error) {
	start := time.Now()
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	lists := []inputs.List{
		{Name: "tractograms", Paths: req.Tractograms},
		{Name: "t1", Paths: req.T1s},
	}
	if err := inputs.EqualLength(lists...); err != nil {
		return nil, err
	}
	if err := inputs.Exist(false, inputs.Flatten(lists...)...); err != nil {
		return nil, err
	}
	out := output.New(req.OutputReport, req.Options.Overwrite)
	if err := checkOutputs(out, req.Options); err != nil {
		return nil, err
	}
	if err := inputs.TractogramPairs(req.Tractograms, req.T1s); err != nil {
		return nil, err
	}
	if err := out.Prepare(); err != nil {
		return nil, err
	}

	root := subject.CommonRoot(req.Tractograms)
	batch := make([]extract.Input, len(req.Tractograms))
	for i, trk := range req.Tractograms {
		batch[i] = extract.Input{
			Key: subject.Resolve(root, trk),
			Files: map[string]string{
				extract.RoleTractogram: trk,
				extract.RoleT1:         req.T1s[i],
			},
		}
	}

	p := pipeline{opts: req.Options, logger: s.logger}
	columns := []string{extract.StreamlineColumn}
	group, err := p.runGroup(ctx, groupPlan{
		Name:           TrackingGroup,
		Extractor:      extract.StreamlineExtractor{},
		Inputs:         batch,
		WarningColumns: columns,
		ChartColumns:   columns,
	})
	if err != nil {
		return nil, err
	}

	byKey := indexInputs(batch)
	valid := group.Table.ValidRows()
	tasks := make([]trackingTask, 0, len(valid))
	for _, row := range valid {
		in := byKey[row.Key]
		abs, rel := artifact(out, TrackingGroup, row.Key, ".png")
		tasks = append(tasks, trackingTask{
			Key:        row.Key,
			Group:      TrackingGroup,
			Tractogram: in.Files[extract.RoleTractogram],
			Anat:       in.Files[extract.RoleT1],
			Out:        abs,
			Rel:        rel,
			Stats:      copyStats(row.Values),
			Options:    req.Tracking,
		})
	}
	shots, err := fanOut(ctx, req.Options, group.Table, tasks, renderTracking)
	if err != nil {
		return nil, err
	}
	group.Screenshots = shots

	rec := report.TractogramReport{
		SubjectCount: len(req.Tractograms),
		Description:  trackingDescription,
		Group:        group,
		Online:       req.Online,
	}
	built, err := rec.Build()
	if err != nil {
		return nil, err
	}
	if err := publish(ctx, s.sink, s.exporter, out, req.Options, built); err != nil {
		return nil, err
	}

	res := &TractogramResult{
		RunID:       out.RunID.String(),
		ReportPath:  out.ReportPath,
		Subjects:    group.Table.Len(),
		Empty:       group.Table.Len() - len(valid),
		NbWarnings:  group.Warnings.NbWarnings(),
		Screenshots: len(shots),
		RuntimeMs:   time.Since(start).Milliseconds(),
	}
	if res.Empty > 0 {
		s.logger.Warn("%d tractograms without streamlines have no screenshot", res.Empty)
	}
	s.logger.Info("run %s wrote %s (%d subjects, %d warnings)", res.RunID, res.ReportPath, res.Subjects, res.NbWarnings)
	return res, nil
}
