// Package testkit writes small synthetic imaging batches for tests.
package testkit

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"dmriqc/adapters/nifti"
	"dmriqc/adapters/tractogram"
)

// Grid is the default fixture geometry
var Grid = [4]int{8, 8, 6, 1}

// VoxelSize is the default fixture voxel size
var VoxelSize = [3]float64{2, 2, 2}

// Confounds writes an fMRIPrep confound file under root and returns its path
func Confounds(tb testing.TB, root, sub, ses, task, run string, columns map[string][]float64) string {
	tb.Helper()
	dir := filepath.Join(root, sub, ses, "func")
	name := strings.Join(nonEmpty(sub, ses, task, run, "desc-confounds_timeseries.tsv"), "_")
	path := filepath.Join(dir, name)

	headers := make([]string, 0, len(columns))
	for h := range columns {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	var b strings.Builder
	b.WriteString(strings.Join(headers, "\t") + "\n")
	n := 0
	for _, h := range headers {
		if len(columns[h]) > n {
			n = len(columns[h])
		}
	}
	for i := 0; i < n; i++ {
		cells := make([]string, len(headers))
		for j, h := range headers {
			cells[j] = "n/a"
			if i < len(columns[h]) {
				cells[j] = fmt.Sprintf("%g", columns[h][i])
			}
		}
		b.WriteString(strings.Join(cells, "\t") + "\n")
	}
	write(tb, path, []byte(b.String()))
	return path
}

// Figure writes an fMRIPrep report figure and returns its path
func Figure(tb testing.TB, root, sub, ses, task, desc string) string {
	tb.Helper()
	name := strings.Join(nonEmpty(sub, ses, task, desc), "_") + ".svg"
	path := filepath.Join(root, sub, "figures", name)
	svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><text>%s</text></svg>`, name)
	write(tb, path, []byte(svg))
	return path
}

// Volume writes a float32 image whose voxels are given by fill
func Volume(tb testing.TB, path string, fill func(x, y, z int) float64) string {
	tb.Helper()
	v := nifti.New(Grid, VoxelSize, nifti.DTFloat32)
	each(func(x, y, z int) { v.Set(x, y, z, 0, fill(x, y, z)) })
	save(tb, v, path)
	return path
}

// Mask writes a binary uint8 mask selecting the voxels where in returns true
func Mask(tb testing.TB, path string, in func(x, y, z int) bool) string {
	tb.Helper()
	v := nifti.New(Grid, VoxelSize, nifti.DTUint8)
	each(func(x, y, z int) {
		if in(x, y, z) {
			v.Set(x, y, z, 0, 1)
		}
	})
	save(tb, v, path)
	return path
}

// RGB writes an RGB24 color map
func RGB(tb testing.TB, path string) string {
	tb.Helper()
	v := nifti.New(Grid, VoxelSize, nifti.DTRGB24)
	each(func(x, y, z int) {
		v.Set(x, y, z, 0, float64(x*255/Grid[0]))
		v.Set(x, y, z, 1, float64(y*255/Grid[1]))
		v.Set(x, y, z, 2, float64(z*255/Grid[2]))
	})
	save(tb, v, path)
	return path
}

// RegistrationSet is one subject's five registration inputs
type RegistrationSet struct {
	T1, RGB, WM, GM, CSF string
}

// Registration writes a registration input set under dir/sub. The T1 holds
// wm, gm and csf as constant intensities in the x-thirds of the grid.
func Registration(tb testing.TB, dir, sub string, wm, gm, csf float64) RegistrationSet {
	tb.Helper()
	base := filepath.Join(dir, sub)
	third := func(x int) int { return x * 3 / Grid[0] }
	set := RegistrationSet{
		T1: Volume(tb, filepath.Join(base, "t1_warped.nii.gz"), func(x, _, _ int) float64 {
			return []float64{wm, gm, csf}[third(x)]
		}),
		RGB: RGB(tb, filepath.Join(base, "rgb.nii.gz")),
		WM:  Mask(tb, filepath.Join(base, "mask_wm.nii.gz"), func(x, _, _ int) bool { return third(x) == 0 }),
		GM:  Mask(tb, filepath.Join(base, "mask_gm.nii.gz"), func(x, _, _ int) bool { return third(x) == 1 }),
		CSF: Mask(tb, filepath.Join(base, "mask_csf.nii.gz"), func(x, _, _ int) bool { return third(x) == 2 }),
	}
	return set
}

// Tracking writes a T1 and a TRK with n straight streamlines under dir/sub
// and returns their paths.
func Tracking(tb testing.TB, dir, sub string, n int) (trk, t1 string) {
	tb.Helper()
	base := filepath.Join(dir, sub)
	t1 = Volume(tb, filepath.Join(base, "t1.nii.gz"), func(x, y, z int) float64 { return float64(x + y + z) })

	ref, err := nifti.ReadHeader(t1)
	if err != nil {
		tb.Fatalf("read fixture header: %v", err)
	}
	hdr := tractogram.Header{
		Dims:      [3]int{Grid[0], Grid[1], Grid[2]},
		VoxelSize: VoxelSize,
		Affine:    ref.Affine,
	}
	lines := make([]tractogram.Streamline, n)
	for i := range lines {
		y := float64(i%Grid[1])*VoxelSize[1] + 1
		lines[i] = tractogram.Streamline{{1, y, 5}, {7, y, 5}, {13, y, 5}}
	}
	trk = filepath.Join(base, "tracking.trk")
	if err := tractogram.WriteTRK(trk, hdr, lines); err != nil {
		tb.Fatalf("write fixture tractogram: %v", err)
	}
	return trk, t1
}

func each(fn func(x, y, z int)) {
	for z := 0; z < Grid[2]; z++ {
		for y := 0; y < Grid[1]; y++ {
			for x := 0; x < Grid[0]; x++ {
				fn(x, y, z)
			}
		}
	}
}

func save(tb testing.TB, v *nifti.Volume, path string) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", path, err)
	}
	if err := v.Save(path); err != nil {
		tb.Fatalf("save %s: %v", path, err)
	}
}

func write(tb testing.TB, path string, data []byte) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		tb.Fatalf("mkdir %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
}

func nonEmpty(parts ...string) []string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
