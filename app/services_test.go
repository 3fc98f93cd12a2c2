package app

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmriqc/adapters/excel"
	"dmriqc/adapters/html"
	"dmriqc/adapters/screenshot"
	"dmriqc/internal"
	"dmriqc/internal/errors"
	"dmriqc/internal/testkit"
)

var quiet = internal.NewLogger(internal.LogLevelError)

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func registrationRequest(t *testing.T, in, outDir string, workers int) RegistrationRequest {
	t.Helper()
	req := RegistrationRequest{
		OutputReport: filepath.Join(outDir, "report.html"),
		Mosaic:       screenshot.DefaultMosaicOptions(),
		Options:      DefaultOptions(),
	}
	req.Options.Workers = workers
	for i, sub := range []string{"sub-01", "sub-02", "sub-03", "sub-04"} {
		set := testkit.Registration(t, in, sub, 100+float64(i), 60, 20)
		req.T1Warped = append(req.T1Warped, set.T1)
		req.RGB = append(req.RGB, set.RGB)
		req.WM = append(req.WM, set.WM)
		req.GM = append(req.GM, set.GM)
		req.CSF = append(req.CSF, set.CSF)
	}
	return req
}

func TestRegistrationService_SameFilesForAnyWorkerCount(t *testing.T) {
	in := t.TempDir()
	svc := NewRegistrationService(html.NewSink(), excel.Exporter{}, quiet)

	seqDir, parDir := t.TempDir(), t.TempDir()
	seq, err := svc.Run(context.Background(), registrationRequest(t, in, seqDir, 1))
	require.NoError(t, err)
	par, err := svc.Run(context.Background(), registrationRequest(t, in, parDir, 4))
	require.NoError(t, err)

	assert.Equal(t, 4, seq.Subjects)
	assert.Equal(t, 4, seq.Screenshots)
	assert.Equal(t, seq.Screenshots, par.Screenshots)
	assert.NotEqual(t, seq.RunID, par.RunID)

	seqFiles := listDir(t, filepath.Join(seqDir, "data"))
	assert.Len(t, seqFiles, 4)
	assert.Equal(t, seqFiles, listDir(t, filepath.Join(parDir, "data")))
	for _, name := range seqFiles {
		a, err := os.ReadFile(filepath.Join(seqDir, "data", name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(parDir, "data", name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}

	page, err := os.ReadFile(filepath.Join(seqDir, "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "Quality Assurance registration")
	assert.Contains(t, string(page), RegistrationGroup)
	assert.FileExists(t, filepath.Join(seqDir, "libs", "report.css"))
}

func TestRegistrationService_LengthMismatchWritesNothing(t *testing.T) {
	in, outDir := t.TempDir(), t.TempDir()
	req := registrationRequest(t, in, outDir, 1)
	req.WM = req.WM[:2]

	svc := NewRegistrationService(html.NewSink(), nil, quiet)
	_, err := svc.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInputMismatch))
	assert.Contains(t, err.Error(), "wm=2")
	assert.NoDirExists(t, filepath.Join(outDir, "data"))
	assert.NoFileExists(t, req.OutputReport)
}

func TestRegistrationService_ExistingOutputs(t *testing.T) {
	in, outDir := t.TempDir(), t.TempDir()
	req := registrationRequest(t, in, outDir, 1)
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "data"), 0o755))

	svc := NewRegistrationService(html.NewSink(), nil, quiet)
	_, err := svc.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeOutputExists))

	req.Options.Overwrite = true
	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.FileExists(t, res.ReportPath)
}

func TestRegistrationService_RejectsBadOptions(t *testing.T) {
	in, outDir := t.TempDir(), t.TempDir()
	req := registrationRequest(t, in, outDir, 1)
	req.Options.OnCollision = "ignore"

	svc := NewRegistrationService(html.NewSink(), nil, quiet)
	_, err := svc.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	assert.NoDirExists(t, filepath.Join(outDir, "data"))
}

func TestTractogramService_EmptyTractogramHasNoScreenshot(t *testing.T) {
	in, outDir := t.TempDir(), t.TempDir()
	req := TractogramRequest{
		OutputReport: filepath.Join(outDir, "report.html"),
		Tracking:     screenshot.DefaultTrackingOptions(),
		Options:      DefaultOptions(),
	}
	req.Options.Workers = 2
	req.Options.XLSX = true
	for sub, n := range map[string]int{"sub-01": 5, "sub-02": 0, "sub-03": 6} {
		trk, t1 := testkit.Tracking(t, in, sub, n)
		req.Tractograms = append(req.Tractograms, trk)
		req.T1s = append(req.T1s, t1)
	}

	svc := NewTractogramService(html.NewSink(), excel.Exporter{}, quiet)
	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Subjects)
	assert.Equal(t, 1, res.Empty)
	assert.Equal(t, 2, res.Screenshots)

	files := listDir(t, filepath.Join(outDir, "data"))
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.NotContains(t, f, "sub-02")
	}
	assert.FileExists(t, filepath.Join(outDir, "report.xlsx"))

	page, err := os.ReadFile(res.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(page), "sub-02")
}

func TestTractogramService_Online(t *testing.T) {
	in, outDir := t.TempDir(), t.TempDir()
	trk, t1 := testkit.Tracking(t, in, "sub-01", 3)
	req := TractogramRequest{
		OutputReport: filepath.Join(outDir, "report.html"),
		Tractograms:  []string{trk},
		T1s:          []string{t1},
		Online:       true,
		Tracking:     screenshot.DefaultTrackingOptions(),
		Options:      DefaultOptions(),
	}

	svc := NewTractogramService(html.NewSink(), nil, quiet)
	_, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.NoDirExists(t, filepath.Join(outDir, "libs"))

	page, err := os.ReadFile(req.OutputReport)
	require.NoError(t, err)
	assert.Contains(t, string(page), html.OnlineStylesheet)
}

func fmriprepTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	fd := map[string][]float64{
		"framewise_displacement": {0.1, 0.2, 0.3},
		"global_signal":          {10, 12, 11},
	}
	for _, sub := range []string{"sub-01", "sub-02", "sub-03"} {
		testkit.Confounds(t, root, sub, "ses-01", "task-rest", "run-01", fd)
		testkit.Figure(t, root, sub, "ses-01", "task-rest", "desc-carpetplot_bold")
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "logs"), 0o755))
	return root
}

func TestFmriprepService_FiguresAndMetrics(t *testing.T) {
	root, outDir := fmriprepTree(t), t.TempDir()
	req := FmriprepRequest{
		OutputReport: filepath.Join(outDir, "report.html"),
		Root:         root,
		Figures:      []string{"carpetplot"},
		Metrics:      []string{"framewise_displacement", "global_signal"},
		Options:      DefaultOptions(),
	}

	svc := NewFmriprepService(html.NewSink(), nil, quiet)
	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Subjects)
	assert.Equal(t, 3, res.Figures)

	files := listDir(t, filepath.Join(outDir, "data"))
	assert.Len(t, files, 3)
	for _, f := range files {
		assert.True(t, strings.HasSuffix(f, ".svg"), f)
	}

	page, err := os.ReadFile(req.OutputReport)
	require.NoError(t, err)
	body := string(page)
	assert.Contains(t, body, "Quality Assurance fmriPrep")
	assert.Contains(t, body, "Mean framewise_displacement")
	assert.Contains(t, body, "sub-01_ses-01_task-rest_run-01")
	assert.Less(t, strings.Index(body, "carpetplot"), strings.Index(body, "Max global_signal"))
}

func TestFmriprepService_SymLink(t *testing.T) {
	root, outDir := fmriprepTree(t), t.TempDir()
	req := FmriprepRequest{
		OutputReport: filepath.Join(outDir, "report.html"),
		Root:         root,
		Figures:      []string{"carpetplot"},
		SymLink:      true,
		Options:      DefaultOptions(),
	}

	svc := NewFmriprepService(html.NewSink(), nil, quiet)
	_, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	for _, f := range listDir(t, filepath.Join(outDir, "data")) {
		info, err := os.Lstat(filepath.Join(outDir, "data", f))
		require.NoError(t, err)
		assert.NotZero(t, info.Mode()&os.ModeSymlink, f)
	}
}

func TestFmriprepService_Validation(t *testing.T) {
	svc := NewFmriprepService(html.NewSink(), nil, quiet)
	outDir := t.TempDir()

	_, err := svc.Run(context.Background(), FmriprepRequest{
		OutputReport: filepath.Join(outDir, "report.html"),
		Root:         t.TempDir(),
		Options:      DefaultOptions(),
	})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))

	_, err = svc.Run(context.Background(), FmriprepRequest{
		OutputReport: filepath.Join(outDir, "report.html"),
		Root:         filepath.Join(outDir, "missing"),
		Metrics:      []string{"global_signal"},
		Options:      DefaultOptions(),
	})
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	assert.NoDirExists(t, filepath.Join(outDir, "data"))
}

func TestFmriprepService_SeveralRunsPerSubject(t *testing.T) {
	root, outDir := t.TempDir(), t.TempDir()
	for i, sub := range []string{"sub-01", "sub-02"} {
		for j, run := range []string{"run-01", "run-02"} {
			v := float64(i*2 + j)
			testkit.Confounds(t, root, sub, "ses-01", "task-rest", run, map[string][]float64{
				"framewise_displacement": {0.1 + v, 0.2 + v, 0.3 + v},
			})
		}
	}
	req := FmriprepRequest{
		OutputReport: filepath.Join(outDir, "report.html"),
		Root:         root,
		Metrics:      []string{"framewise_displacement"},
		Options:      DefaultOptions(),
	}

	svc := NewFmriprepService(html.NewSink(), nil, quiet)
	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Subjects)

	page, err := os.ReadFile(req.OutputReport)
	require.NoError(t, err)
	for _, key := range []string{
		"sub-01_ses-01_task-rest_run-01", "sub-01_ses-01_task-rest_run-02",
		"sub-02_ses-01_task-rest_run-01", "sub-02_ses-01_task-rest_run-02",
	} {
		assert.Contains(t, string(page), key)
	}
}
