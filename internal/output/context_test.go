package output

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmriqc/internal/errors"
)

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	ctx := New(filepath.Join(dir, "report.html"), false)
	require.NoError(t, ctx.Check())

	require.NoError(t, os.Mkdir(ctx.DataDir, 0o755))
	err := ctx.Check()
	require.Error(t, err)
	assert.Equal(t, errors.CodeOutputExists, errors.GetCode(err))

	ctx.Overwrite = true
	assert.NoError(t, ctx.Check())
}

func TestPrepare(t *testing.T) {
	dir := t.TempDir()
	ctx := New(filepath.Join(dir, "report.html"), true)
	require.NoError(t, os.MkdirAll(ctx.DataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(ctx.DataDir, "stale.png"), []byte("x"), 0o644))
	require.NoError(t, os.MkdirAll(ctx.LibsDir, 0o755))

	require.NoError(t, ctx.Prepare())

	entries, err := os.ReadDir(ctx.DataDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(ctx.LibsDir)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, ctx.RunID.IsEmpty())
}

func TestArtifactPath(t *testing.T) {
	ctx := New("/out/report.html", false)
	p := ctx.ArtifactPath(".png", "Register T1", "sub-01_ses-01")
	assert.Equal(t, "/out/data/Register_T1__sub-01_ses-01.png", p)
	assert.Equal(t, "data/Register_T1__sub-01_ses-01.png", ctx.Rel(p))
	assert.Equal(t, p, ctx.ArtifactPath(".png", "Register T1", "sub-01_ses-01"))
}
