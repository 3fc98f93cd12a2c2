package app

import (
	"context"
	"fmt"

	"dmriqc/adapters/screenshot"
	"dmriqc/domain/metrics"
	"dmriqc/domain/report"
	"dmriqc/domain/subject"
	"dmriqc/internal/assemble"
	"dmriqc/internal/extract"
	"dmriqc/internal/output"
	"dmriqc/internal/pool"
)

// mosaicTask renders one subject's registration mosaic
type mosaicTask struct {
	Key     subject.Key
	Group   string
	Anat    string
	RGB     string
	Out     string
	Rel     string
	Stats   map[string]float64
	Options screenshot.MosaicOptions
}

func (t mosaicTask) TaskID() string { return fmt.Sprintf("%s/%s", t.Group, t.Key) }

func renderMosaic(_ context.Context, t mosaicTask) (report.Screenshot, error) {
	if err := screenshot.SaveMosaic(t.Out, t.Anat, t.RGB, t.Options, t.Key.String()); err != nil {
		return report.Screenshot{}, err
	}
	return report.Screenshot{Key: t.Key, Path: t.Rel, Stats: t.Stats}, nil
}

// trackingTask renders one subject's streamline overlay
type trackingTask struct {
	Key        subject.Key
	Group      string
	Tractogram string
	Anat       string
	Out        string
	Rel        string
	Stats      map[string]float64
	Options    screenshot.TrackingOptions
}

func (t trackingTask) TaskID() string { return fmt.Sprintf("%s/%s", t.Group, t.Key) }

func renderTracking(_ context.Context, t trackingTask) (report.Screenshot, error) {
	if err := screenshot.SaveTracking(t.Out, t.Tractogram, t.Anat, t.Options, t.Key.String()); err != nil {
		return report.Screenshot{}, err
	}
	return report.Screenshot{Key: t.Key, Path: t.Rel, Stats: t.Stats}, nil
}

// fanOut runs the per-subject tasks on the pool and merges the results back
// into the row order of tbl.
func fanOut[T pool.Task](ctx context.Context, opts Options, tbl *metrics.Table, tasks []T, fn pool.Func[T, report.Screenshot]) ([]report.Screenshot, error) {
	results, err := pool.Map(ctx, opts.Workers, tasks, fn)
	if err != nil {
		return nil, err
	}
	return assemble.Merge(tbl, results, opts.OnCollision)
}

func copyStats(v map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(v))
	for k, x := range v {
		out[k] = x
	}
	return out
}

// indexInputs keys the batch by subject; a later input replaces an earlier
// one, matching the last-write-wins table.
func indexInputs(batch []extract.Input) map[subject.Key]extract.Input {
	out := make(map[subject.Key]extract.Input, len(batch))
	for _, in := range batch {
		out[in.Key] = in
	}
	return out
}

func artifact(out *output.Context, group string, key subject.Key, ext string) (abs, rel string) {
	abs = out.ArtifactPath(ext, group, key.String())
	return abs, out.Rel(abs)
}
