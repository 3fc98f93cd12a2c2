package extract

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmriqc/domain/metrics"
	"dmriqc/domain/subject"
	"dmriqc/internal/errors"
	"dmriqc/internal/testkit"
)

func TestConfoundExtractor(t *testing.T) {
	root := t.TempDir()
	path := testkit.Confounds(t, root, "sub-01", "ses-01", "task-rest", "run-01", map[string][]float64{
		"framewise_displacement": {math.NaN(), 0.2, 0.6, 0.1},
	})

	ex := ConfoundExtractor{Metric: "framewise_displacement"}
	res, err := ex.Extract(context.Background(), Input{
		Key:   subject.Resolve(root, path),
		Files: map[string]string{RoleConfounds: path},
	})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 0.6, res.Values["Max framewise_displacement"])
	assert.Equal(t, 0.1, res.Values["Min framewise_displacement"])
	assert.InDelta(t, 0.3, res.Values["Mean framewise_displacement"], 1e-12)
}

func TestConfoundExtractor_MissingColumn(t *testing.T) {
	root := t.TempDir()
	path := testkit.Confounds(t, root, "sub-01", "ses-01", "task-rest", "", map[string][]float64{"trans_x": {1}})
	_, err := ConfoundExtractor{Metric: "rot_z"}.Extract(context.Background(), Input{
		Files: map[string]string{RoleConfounds: path},
	})
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestTissueExtractor(t *testing.T) {
	set := testkit.Registration(t, t.TempDir(), "sub-01", 100, 60, 20)
	ex := TissueExtractor{Name: "Register T1"}
	res, err := ex.Extract(context.Background(), Input{
		Key: subject.Key{Subject: "sub-01"},
		Files: map[string]string{
			RoleScalar: set.T1, RoleWM: set.WM, RoleGM: set.GM, RoleCSF: set.CSF,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Values["Mean Register T1 in WM"])
	assert.Equal(t, 60.0, res.Values["Mean Register T1 in GM"])
	assert.Equal(t, 20.0, res.Values["Mean Register T1 in CSF"])
	assert.Equal(t, 100.0, res.Values["Max Register T1 in WM"])
}

func TestTissueExtractor_EmptyMask(t *testing.T) {
	dir := t.TempDir()
	set := testkit.Registration(t, dir, "sub-01", 1, 2, 3)
	empty := testkit.Mask(t, filepath.Join(dir, "empty.nii.gz"), func(_, _, _ int) bool { return false })

	res, err := TissueExtractor{Name: "T1"}.Extract(context.Background(), Input{
		Files: map[string]string{RoleScalar: set.T1, RoleWM: empty, RoleGM: set.GM, RoleCSF: set.CSF},
	})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Values["Mean T1 in WM"]))
	assert.True(t, math.IsNaN(res.Values["Max T1 in WM"]))
	assert.Equal(t, 2.0, res.Values["Mean T1 in GM"])
}

func TestStreamlineExtractor(t *testing.T) {
	dir := t.TempDir()
	full, t1 := testkit.Tracking(t, dir, "sub-01", 5)
	empty, _ := testkit.Tracking(t, dir, "sub-02", 0)

	res, err := StreamlineExtractor{}.Extract(context.Background(), Input{
		Files: map[string]string{RoleTractogram: full, RoleT1: t1},
	})
	require.NoError(t, err)
	assert.Equal(t, 5.0, res.Values[StreamlineColumn])
	assert.True(t, res.Valid)

	res, err = StreamlineExtractor{}.Extract(context.Background(), Input{
		Files: map[string]string{RoleTractogram: empty},
	})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Values[StreamlineColumn])
	assert.False(t, res.Valid)
}

func TestBuildTable(t *testing.T) {
	dir := t.TempDir()
	var in []Input
	for i, n := range []int{4, 0, 6} {
		sub := []string{"sub-01", "sub-02", "sub-03"}[i]
		trk, t1 := testkit.Tracking(t, dir, sub, n)
		in = append(in, Input{
			Key:   subject.Key{Subject: sub},
			Files: map[string]string{RoleTractogram: trk, RoleT1: t1},
		})
	}

	tbl, err := BuildTable(context.Background(), "Tracking", StreamlineExtractor{}, in, metrics.CollisionError)
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 0, 6}, tbl.Column(StreamlineColumn))
	assert.Len(t, tbl.ValidRows(), 2)

	row, ok := tbl.Get(subject.Key{Subject: "sub-01"})
	require.True(t, ok)
	assert.Equal(t, []string{in[0].Files[RoleTractogram], in[0].Files[RoleT1]}, row.Inputs)
}

func TestBuildTable_Collision(t *testing.T) {
	dir := t.TempDir()
	trk, t1 := testkit.Tracking(t, dir, "sub-01", 1)
	dup := Input{Key: subject.Key{Subject: "sub-01"}, Files: map[string]string{RoleTractogram: trk, RoleT1: t1}}

	_, err := BuildTable(context.Background(), "Tracking", StreamlineExtractor{}, []Input{dup, dup}, metrics.CollisionError)
	require.Error(t, err)
	assert.Equal(t, errors.CodeKeyCollision, errors.GetCode(err))

	tbl, err := BuildTable(context.Background(), "Tracking", StreamlineExtractor{}, []Input{dup, dup}, metrics.CollisionLastWriteWins)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Len())
}
