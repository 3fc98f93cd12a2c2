package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"dmriqc/domain/metrics"
	"dmriqc/domain/report"
	"dmriqc/domain/subject"
	"dmriqc/internal"
	"dmriqc/internal/errors"
	"dmriqc/internal/extract"
	"dmriqc/internal/inputs"
	"dmriqc/internal/output"
	"dmriqc/ports"
)

const confoundSuffix = "desc-confounds_timeseries.tsv"

const fmriprepDescription = "This report gathers the fMRIPrep figures of every subject and summarizes " +
	"the requested confound time series by their maximum, minimum and mean per run."

// FmriprepService builds the fMRIPrep QC report
type FmriprepService struct {
	sink     ports.ReportSink
	exporter ports.TableExporter
	logger   *internal.Logger
}

// FmriprepRequest selects figures and confound metrics from an fMRIPrep output tree
type FmriprepRequest struct {
	OutputReport string   `validate:"required"`
	Root         string   `validate:"required"`
	Figures      []string `validate:"dive,required"`
	Metrics      []string `validate:"dive,required"`
	// SymLink links figures into data/ instead of copying them
	SymLink bool
	Options Options
}

// FmriprepResult summarizes a finished run
type FmriprepResult struct {
	RunID      string
	ReportPath string
	Subjects   int
	Figures    int
	NbWarnings int
	RuntimeMs  int64
}

// NewFmriprepService creates an fMRIPrep report service
func NewFmriprepService(sink ports.ReportSink, exporter ports.TableExporter, logger *internal.Logger) *FmriprepService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &FmriprepService{sink: sink, exporter: exporter, logger: logger.With("FmriprepService")}
}

// Run collects the figures, summarizes the confounds and writes the report
func (s *FmriprepService) Run(ctx context.Context, req FmriprepRequest) (*FmriprepResult, error) {
	start := time.Now()
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if len(req.Figures) == 0 && len(req.Metrics) == 0 {
		return nil, errors.InvalidInput("nothing to report: give figures or metrics")
	}
	if err := inputs.Exist(true, req.Root); err != nil {
		return nil, err
	}
	out := output.New(req.OutputReport, req.Options.Overwrite)
	if err := checkOutputs(out, req.Options); err != nil {
		return nil, err
	}

	nbSubjects, err := countSubjects(req.Root)
	if err != nil {
		return nil, err
	}
	figureFiles := make([][]string, len(req.Figures))
	for i, name := range req.Figures {
		figureFiles[i], err = globSorted(filepath.Join(req.Root, "sub-*", "figures", "*"+name+"*.svg"))
		if err != nil {
			return nil, err
		}
	}
	confounds, err := globSorted(filepath.Join(req.Root, "sub-*", "ses*", "func", "*"+confoundSuffix))
	if err != nil {
		return nil, err
	}

	if err := out.Prepare(); err != nil {
		return nil, err
	}

	rec := report.ConfoundReport{SubjectCount: nbSubjects, Description: fmriprepDescription}
	nbFigures := 0
	for i, name := range req.Figures {
		group, err := s.collectFigures(out, req, name, figureFiles[i])
		if err != nil {
			return nil, err
		}
		nbFigures += len(group.Figures)
		rec.Figures = append(rec.Figures, group)
	}

	batch := make([]extract.Input, len(confounds))
	for i, f := range confounds {
		batch[i] = extract.Input{
			Key:   subject.Resolve(req.Root, f),
			Files: map[string]string{extract.RoleConfounds: f},
		}
	}
	p := pipeline{opts: req.Options, logger: s.logger}
	nbWarnings := 0
	for _, metric := range req.Metrics {
		columns := extract.ConfoundColumns(metric)
		group, err := p.runGroup(ctx, groupPlan{
			Name:           metric,
			Extractor:      extract.ConfoundExtractor{Metric: metric},
			Inputs:         batch,
			WarningColumns: columns,
			ChartColumns:   columns,
		})
		if err != nil {
			return nil, err
		}
		nbWarnings += group.Warnings.NbWarnings()
		rec.Metrics = append(rec.Metrics, group)
	}

	built, err := rec.Build()
	if err != nil {
		return nil, err
	}
	if err := publish(ctx, s.sink, s.exporter, out, req.Options, built); err != nil {
		return nil, err
	}

	res := &FmriprepResult{
		RunID:      out.RunID.String(),
		ReportPath: out.ReportPath,
		Subjects:   nbSubjects,
		Figures:    nbFigures,
		NbWarnings: nbWarnings,
		RuntimeMs:  time.Since(start).Milliseconds(),
	}
	s.logger.Info("run %s wrote %s (%d subjects, %d figures, %d confound files)",
		res.RunID, res.ReportPath, res.Subjects, res.Figures, len(confounds))
	return res, nil
}

// collectFigures places every figure of one kind into data/ and keys it by
// subject. Duplicate keys follow the collision policy.
func (s *FmriprepService) collectFigures(out *output.Context, req FmriprepRequest, name string, files []string) (report.FigureGroup, error) {
	group := report.FigureGroup{Name: name}
	index := make(map[subject.Key]int, len(files))
	for _, f := range files {
		dst := filepath.Join(out.DataDir, filepath.Base(f))
		if err := place(f, dst, req.SymLink); err != nil {
			return report.FigureGroup{}, err
		}
		shot := report.Screenshot{Key: subject.Resolve(req.Root, f), Path: out.Rel(dst)}
		if i, ok := index[shot.Key]; ok {
			if req.Options.OnCollision != metrics.CollisionLastWriteWins {
				return report.FigureGroup{}, errors.KeyCollision(shot.Key.String())
			}
			s.logger.Warn("key collision group=%q key=%s previous=%s current=%s policy=%s",
				name, shot.Key, group.Figures[i].Path, shot.Path, metrics.CollisionLastWriteWins)
			group.Figures[i] = shot
			continue
		}
		index[shot.Key] = len(group.Figures)
		group.Figures = append(group.Figures, shot)
	}
	s.logger.Debug("figures %q: %d files", name, len(group.Figures))
	return group, nil
}

func countSubjects(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to list %s", root)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() && strings.Contains(e.Name(), "sub") {
			n++
		}
	}
	return n, nil
}

func globSorted(pattern string) ([]string, error) {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, errors.Wrapf(err, "bad pattern %s", pattern)
	}
	sort.Strings(matches)
	return matches, nil
}

func place(src, dst string, symlink bool) error {
	if symlink {
		abs, err := filepath.Abs(src)
		if err != nil {
			return errors.Wrapf(err, "failed to resolve %s", src)
		}
		_ = os.Remove(dst)
		if err := os.Symlink(abs, dst); err != nil {
			return errors.Wrapf(err, "failed to link %s", src)
		}
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()
	outFile, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	if _, err := io.Copy(outFile, in); err != nil {
		outFile.Close()
		return errors.Wrapf(err, "failed to copy %s", src)
	}
	return outFile.Close()
}
