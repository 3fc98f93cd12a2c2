package tractogram

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dmriqc/adapters/nifti"
	"dmriqc/internal/errors"
)

func refHeader() nifti.Header {
	v := nifti.New([4]int{10, 10, 10, 1}, [3]float64{2, 2, 2}, nifti.DTFloat32)
	return v.Header
}

func trkHeaderFor(ref nifti.Header) Header {
	return Header{Dims: [3]int{ref.Dims[0], ref.Dims[1], ref.Dims[2]}, VoxelSize: ref.VoxelSize, Affine: ref.Affine}
}

func TestTRK_WriteLoadCount(t *testing.T) {
	ref := refHeader()
	path := filepath.Join(t.TempDir(), "sub-01.trk")
	lines := []Streamline{
		{{1, 1, 1}, {3, 3, 3}},
		{{5, 5, 5}, {7, 7, 7}, {9, 9, 9}},
	}
	require.NoError(t, WriteTRK(path, trkHeaderFor(ref), lines))

	n, err := Count(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	trk, err := Load(path)
	require.NoError(t, err)
	require.Len(t, trk.Streamlines, 2)
	assert.Equal(t, lines[1][2], trk.Streamlines[1][2])

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.True(t, Compatible(h, ref))

	other := nifti.New([4]int{10, 10, 12, 1}, [3]float64{2, 2, 2}, nifti.DTFloat32)
	assert.False(t, Compatible(h, other.Header))

	vox, err := trk.VoxelPoints(ref)
	require.NoError(t, err)
	assert.Equal(t, Point{0, 0, 0}, vox[0][0])
	assert.Equal(t, Point{4, 4, 4}, vox[1][2])
}

func TestTRK_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.trk")
	require.NoError(t, WriteTRK(path, trkHeaderFor(refHeader()), nil))
	n, err := Count(path)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestTCK_WriteLoad(t *testing.T) {
	ref := refHeader()
	path := filepath.Join(t.TempDir(), "sub-02.tck")
	lines := []Streamline{
		{{2, 4, 6}, {4, 4, 6}},
		{{0, 0, 0}},
		{{8, 8, 8}, {10, 10, 10}},
	}
	require.NoError(t, WriteTCK(path, lines))

	n, err := Count(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tck, err := Load(path)
	require.NoError(t, err)
	require.Len(t, tck.Streamlines, 3)
	assert.Equal(t, SpaceRASmm, tck.Header.Space)

	h, err := ReadHeader(path)
	require.NoError(t, err)
	assert.True(t, Compatible(h, ref))

	vox, err := tck.VoxelPoints(ref)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 3}, vox[0][0][:], 1e-9)
}

func TestLoad_Rejects(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(filepath.Join(dir, "bundle.vtk"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.trk")
	require.NoError(t, os.WriteFile(bad, []byte("not a track file"), 0o644))
	_, err = Count(bad)
	assert.Error(t, err)

	badTck := filepath.Join(dir, "bad.tck")
	require.NoError(t, os.WriteFile(badTck, []byte("mrtrix tracks\ncount: 1\n"), 0o644))
	_, err = ReadHeader(badTck)
	assert.Error(t, err)
}

func TestBarycentre(t *testing.T) {
	c, ok := Barycentre([]Streamline{{{0, 0, 0}, {2, 2, 2}}, {{4, 4, 4}}})
	require.True(t, ok)
	assert.Equal(t, Point{2, 2, 2}, c)

	_, ok = Barycentre(nil)
	assert.False(t, ok)
}

func TestTRK_RejectsOversizedStreamline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub-01.trk")
	require.NoError(t, WriteTRK(path, trkHeaderFor(refHeader()), []Streamline{{{1, 1, 1}, {3, 3, 3}}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	binary.LittleEndian.PutUint32(data[trkHeaderSize:], 0x7fffffff)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = Count(path)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
	_, err = Load(path)
	assert.True(t, errors.HasCode(err, errors.CodeInvalidInput))
}

func TestTCK_RejectsTruncatedBody(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub-01.tck")
	require.NoError(t, WriteTCK(path, []Streamline{{{1, 1, 1}, {2, 2, 2}}, {{3, 3, 3}, {4, 4, 4}}}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// drop the terminator, the last separator and half of the last point
	mid := filepath.Join(dir, "mid-point.tck")
	require.NoError(t, os.WriteFile(mid, data[:len(data)-12-12-6], 0o644))
	// end on a point boundary inside the second streamline
	edge := filepath.Join(dir, "open-streamline.tck")
	require.NoError(t, os.WriteFile(edge, data[:len(data)-12-12], 0o644))

	for _, p := range []string{mid, edge} {
		_, err := Count(p)
		require.Error(t, err, p)
		assert.True(t, errors.HasCode(err, errors.CodeInvalidInput), p)
	}

	// a body that stops after a complete streamline is still readable
	closed := filepath.Join(dir, "no-terminator.tck")
	require.NoError(t, os.WriteFile(closed, data[:len(data)-12], 0o644))
	n, err := Count(closed)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
