package inputs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmriqc/adapters/nifti"
	"dmriqc/internal/errors"
	"dmriqc/internal/testkit"
)

func TestEqualLength(t *testing.T) {
	require.NoError(t, EqualLength(
		List{Name: "t1", Paths: []string{"a", "b"}},
		List{Name: "wm", Paths: []string{"c", "d"}},
	))

	err := EqualLength(
		List{Name: "t1", Paths: []string{"a", "b", "c"}},
		List{Name: "wm", Paths: []string{"d", "e"}},
	)
	require.Error(t, err)
	assert.Equal(t, errors.CodeInputMismatch, errors.GetCode(err))
	assert.Contains(t, err.Error(), "t1=3, wm=2")
}

func TestExist(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "x.nii")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	assert.NoError(t, Exist(false, file))
	assert.NoError(t, Exist(true, dir))
	assert.Error(t, Exist(false, dir))
	assert.Error(t, Exist(true, file))

	err := Exist(false, filepath.Join(dir, "missing.nii"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestNiftiSets(t *testing.T) {
	dir := t.TempDir()
	a := testkit.Registration(t, dir, "sub-01", 1, 2, 3)
	b := testkit.Registration(t, dir, "sub-02", 1, 2, 3)
	require.NoError(t, NiftiSets(
		List{Name: "t1", Paths: []string{a.T1, b.T1}},
		List{Name: "wm", Paths: []string{a.WM, b.WM}},
	))

	odd := nifti.New([4]int{4, 4, 4, 1}, [3]float64{1, 1, 1}, nifti.DTUint8)
	oddPath := filepath.Join(dir, "odd.nii")
	require.NoError(t, odd.Save(oddPath))

	err := NiftiSets(
		List{Name: "t1", Paths: []string{a.T1, b.T1}},
		List{Name: "wm", Paths: []string{a.WM, oddPath}},
	)
	require.Error(t, err)
	assert.Equal(t, errors.CodeHeaderIncompatible, errors.GetCode(err))
}

func TestTractogramPairs(t *testing.T) {
	dir := t.TempDir()
	trk, t1 := testkit.Tracking(t, dir, "sub-01", 3)
	require.NoError(t, TractogramPairs([]string{trk}, []string{t1}))

	odd := nifti.New([4]int{4, 4, 4, 1}, [3]float64{1, 1, 1}, nifti.DTFloat32)
	oddPath := filepath.Join(dir, "odd.nii")
	require.NoError(t, odd.Save(oddPath))

	err := TractogramPairs([]string{trk}, []string{oddPath})
	require.Error(t, err)
	assert.Equal(t, errors.CodeHeaderIncompatible, errors.GetCode(err))
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, Flatten(
		List{Paths: []string{"a"}},
		List{Paths: []string{"b", "c"}},
	))
}
