package tractogram

import (
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"dmriqc/adapters/nifti"
	"dmriqc/internal/errors"
)

// Supported file formats
const (
	FormatTRK = "trk"
	FormatTCK = "tck"
)

// Coordinate spaces of stored points
const (
	// SpaceVoxmm is voxel index times voxel size, origin at the voxel corner
	SpaceVoxmm = "voxmm"
	// SpaceRASmm is world millimetres
	SpaceRASmm = "rasmm"
)

// Point is one 3D sample of a streamline
type Point [3]float64

// Streamline is one traced fiber path
type Streamline []Point

// Header describes the reference grid a tractogram was traced on.
// TCK files carry no grid, so HasAffine is false and Dims is zero.
type Header struct {
	Format    string
	Space     string
	Dims      [3]int
	VoxelSize [3]float64
	Affine    nifti.Affine
	HasAffine bool
}

// Tractogram is a loaded streamline file
type Tractogram struct {
	Header      Header
	Streamlines []Streamline
	count       int
}

// Len returns the number of streamlines, also when loaded with Count
func (t *Tractogram) Len() int {
	return t.count
}

func format(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".trk":
		return FormatTRK, nil
	case ".tck":
		return FormatTCK, nil
	}
	return "", errors.Newf(errors.CodeInvalidInput, "unsupported tractogram format %s", path)
}

// Load reads every streamline of a .trk or .tck file
func Load(path string) (*Tractogram, error) {
	return load(path, false)
}

// Count returns the number of streamlines without keeping the point data
func Count(path string) (int, error) {
	t, err := load(path, true)
	if err != nil {
		return 0, err
	}
	return t.Len(), nil
}

func load(path string, countOnly bool) (*Tractogram, error) {
	f, err := format(path)
	if err != nil {
		return nil, err
	}
	if f == FormatTRK {
		return loadTRK(path, countOnly)
	}
	return loadTCK(path, countOnly)
}

// ReadHeader reads the reference grid of a tractogram
func ReadHeader(path string) (Header, error) {
	f, err := format(path)
	if err != nil {
		return Header{}, err
	}
	if f == FormatTCK {
		if _, err := loadTCKHeaderOnly(path); err != nil {
			return Header{}, err
		}
		return Header{Format: FormatTCK, Space: SpaceRASmm}, nil
	}
	return loadTRKHeaderOnly(path)
}

// Compatible reports whether the tractogram was traced on the grid of ref.
// TCK files have no grid and are always compatible.
func Compatible(h Header, ref nifti.Header) bool {
	if h.Format == FormatTCK {
		return true
	}
	for i := 0; i < 3; i++ {
		if h.Dims[i] != ref.Dims[i] {
			return false
		}
		if math.Abs(h.VoxelSize[i]-ref.VoxelSize[i]) > 1e-3 {
			return false
		}
	}
	if h.HasAffine {
		return nifti.AffineClose(h.Affine, ref.Affine, 1e-3)
	}
	return true
}

// VoxelPoints returns the streamlines in voxel-centre coordinates of the
// reference image described by ref.
func (t *Tractogram) VoxelPoints(ref nifti.Header) ([]Streamline, error) {
	convert, err := t.toVoxel(ref)
	if err != nil {
		return nil, err
	}
	out := make([]Streamline, len(t.Streamlines))
	for i, s := range t.Streamlines {
		vs := make(Streamline, len(s))
		for j, p := range s {
			vs[j] = convert(p)
		}
		out[i] = vs
	}
	return out, nil
}

func (t *Tractogram) toVoxel(ref nifti.Header) (func(Point) Point, error) {
	if t.Header.Space == SpaceVoxmm {
		size := t.Header.VoxelSize
		for i := range size {
			if size[i] == 0 {
				size[i] = ref.VoxelSize[i]
			}
		}
		return func(p Point) Point {
			return Point{p[0]/size[0] - 0.5, p[1]/size[1] - 0.5, p[2]/size[2] - 0.5}
		}, nil
	}

	a := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			a.Set(i, j, ref.Affine[i][j])
		}
	}
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		return nil, errors.Wrap(errors.InvalidInput(err.Error()), "reference affine is not invertible")
	}
	return func(p Point) Point {
		var q Point
		for i := 0; i < 3; i++ {
			q[i] = inv.At(i, 0)*p[0] + inv.At(i, 1)*p[1] + inv.At(i, 2)*p[2] + inv.At(i, 3)
		}
		return q
	}, nil
}

// Barycentre returns the mean of every point of every streamline
func Barycentre(streamlines []Streamline) (Point, bool) {
	var xs, ys, zs []float64
	for _, s := range streamlines {
		for _, p := range s {
			xs = append(xs, p[0])
			ys = append(ys, p[1])
			zs = append(zs, p[2])
		}
	}
	if len(xs) == 0 {
		return Point{}, false
	}
	return Point{stat.Mean(xs, nil), stat.Mean(ys, nil), stat.Mean(zs, nil)}, true
}
