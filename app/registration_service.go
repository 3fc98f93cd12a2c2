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

// RegistrationGroup is the section name of the registration report
const RegistrationGroup = "Register T1"

const registrationDescription = "This report checks the registration of the T1 onto the diffusion space. " +
	"For every subject the mean intensity of the warped T1 is measured in the white matter, " +
	"gray matter and CSF masks. Each screenshot blends the warped T1 with the RGB map."

// RegistrationService builds the registration QC report
type RegistrationService struct {
	sink     ports.ReportSink
	exporter ports.TableExporter
	logger   *internal.Logger
}

// RegistrationRequest lists one image per subject for every modality, in the
// same subject order.
type RegistrationRequest struct {
	OutputReport string   `validate:"required"`
	T1Warped     []string `validate:"min=1,dive,required"`
	RGB          []string `validate:"min=1,dive,required"`
	WM           []string `validate:"min=1,dive,required"`
	GM           []string `validate:"min=1,dive,required"`
	CSF          []string `validate:"min=1,dive,required"`
	Mosaic       screenshot.MosaicOptions
	Options      Options
}

// RegistrationResult summarizes a finished run
type RegistrationResult struct {
	RunID       string
	ReportPath  string
	Subjects    int
	NbWarnings  int
	Screenshots int
	RuntimeMs   int64
}

// NewRegistrationService creates a registration report service
func NewRegistrationService(sink ports.ReportSink, exporter ports.TableExporter, logger *internal.Logger) *RegistrationService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &RegistrationService{sink: sink, exporter: exporter, logger: logger.With("RegistrationService")}
}

func (r RegistrationRequest) lists() []inputs.List {
	return []inputs.List{
		{Name: "t1_warped", Paths: r.T1Warped},
		{Name: "rgb", Paths: r.RGB},
		{Name: "wm", Paths: r.WM},
		{Name: "gm", Paths: r.GM},
		{Name: "csf", Paths: r.CSF},
	}
}

// Run validates the batch, computes the tissue metrics, renders one mosaic
// per subject and writes the report. Nothing is written before every check
// has passed.
func (s *RegistrationService) Run(ctx context.Context, req RegistrationRequest) (*RegistrationResult, error) {
	start := time.Now()
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	lists := req.lists()
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
	if err := inputs.NiftiSets(lists...); err != nil {
		return nil, err
	}
	if err := out.Prepare(); err != nil {
		return nil, err
	}

	root := subject.CommonRoot(req.T1Warped)
	batch := make([]extract.Input, len(req.T1Warped))
	for i, t1 := range req.T1Warped {
		batch[i] = extract.Input{
			Key: subject.Resolve(root, t1),
			Files: map[string]string{
				extract.RoleScalar: t1,
				extract.RoleRGB:    req.RGB[i],
				extract.RoleWM:     req.WM[i],
				extract.RoleGM:     req.GM[i],
				extract.RoleCSF:    req.CSF[i],
			},
		}
	}

	columns := extract.TissueColumns(RegistrationGroup)
	p := pipeline{opts: req.Options, logger: s.logger}
	group, err := p.runGroup(ctx, groupPlan{
		Name:           RegistrationGroup,
		Extractor:      extract.TissueExtractor{Name: RegistrationGroup},
		Inputs:         batch,
		WarningColumns: columns[:3],
		ChartColumns:   columns[:3],
	})
	if err != nil {
		return nil, err
	}

	byKey := indexInputs(batch)
	tasks := make([]mosaicTask, 0, group.Table.Len())
	for _, row := range group.Table.Rows() {
		in := byKey[row.Key]
		abs, rel := artifact(out, RegistrationGroup, row.Key, ".png")
		tasks = append(tasks, mosaicTask{
			Key:     row.Key,
			Group:   RegistrationGroup,
			Anat:    in.Files[extract.RoleScalar],
			RGB:     in.Files[extract.RoleRGB],
			Out:     abs,
			Rel:     rel,
			Stats:   copyStats(row.Values),
			Options: req.Mosaic,
		})
	}
	shots, err := fanOut(ctx, req.Options, group.Table, tasks, renderMosaic)
	if err != nil {
		return nil, err
	}
	group.Screenshots = shots

	rec := report.RegistrationReport{
		SubjectCount: len(req.T1Warped),
		Description:  registrationDescription,
		Group:        group,
	}
	built, err := rec.Build()
	if err != nil {
		return nil, err
	}
	if err := publish(ctx, s.sink, s.exporter, out, req.Options, built); err != nil {
		return nil, err
	}

	res := &RegistrationResult{
		RunID:       out.RunID.String(),
		ReportPath:  out.ReportPath,
		Subjects:    group.Table.Len(),
		NbWarnings:  group.Warnings.NbWarnings(),
		Screenshots: len(shots),
		RuntimeMs:   time.Since(start).Milliseconds(),
	}
	s.logger.Info("run %s wrote %s (%d subjects, %d warnings)", res.RunID, res.ReportPath, res.Subjects, res.NbWarnings)
	return res, nil
}
