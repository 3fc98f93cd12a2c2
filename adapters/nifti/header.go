package nifti

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"io"
	"math"
	"os"
	"strings"

	"dmriqc/internal/errors"
)

// NIfTI-1 datatype codes supported by the reader
const (
	DTUint8   int16 = 2
	DTInt16   int16 = 4
	DTInt32   int16 = 8
	DTFloat32 int16 = 16
	DTFloat64 int16 = 64
	DTRGB24   int16 = 128
	DTInt8    int16 = 256
	DTUint16  int16 = 512
	DTUint32  int16 = 768
)

const headerSize = 348

// rawHeader mirrors the on-disk NIfTI-1 header layout byte for byte
type rawHeader struct {
	SizeofHdr     int32
	DataType      [10]byte
	DBName        [18]byte
	Extents       int32
	SessionError  int16
	Regular       byte
	DimInfo       byte
	Dim           [8]int16
	IntentP1      float32
	IntentP2      float32
	IntentP3      float32
	IntentCode    int16
	Datatype      int16
	Bitpix        int16
	SliceStart    int16
	Pixdim        [8]float32
	VoxOffset     float32
	SclSlope      float32
	SclInter      float32
	SliceEnd      int16
	SliceCode     byte
	XYZTUnits     byte
	CalMax        float32
	CalMin        float32
	SliceDuration float32
	TOffset       float32
	GLMax         int32
	GLMin         int32
	Descrip       [80]byte
	AuxFile       [24]byte
	QformCode     int16
	SformCode     int16
	QuaternB      float32
	QuaternC      float32
	QuaternD      float32
	QOffsetX      float32
	QOffsetY      float32
	QOffsetZ      float32
	SrowX         [4]float32
	SrowY         [4]float32
	SrowZ         [4]float32
	IntentName    [16]byte
	Magic         [4]byte
}

// Affine maps voxel indices to world (RAS) millimetres
type Affine [4][4]float64

// Apply transforms a voxel coordinate
func (a Affine) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = a[i][0]*p[0] + a[i][1]*p[1] + a[i][2]*p[2] + a[i][3]
	}
	return out
}

// Header is the geometric and storage description of an image
type Header struct {
	Dims      [4]int
	VoxelSize [3]float64
	Datatype  int16
	Bitpix    int16
	VoxOffset int64
	Slope     float64
	Intercept float64
	Affine    Affine
	order     binary.ByteOrder
}

// Voxels returns the number of voxels of one frame
func (h Header) Voxels() int {
	return h.Dims[0] * h.Dims[1] * h.Dims[2]
}

// Frames returns the number of volumes, three for RGB24 images
func (h Header) Frames() int {
	if h.Datatype == DTRGB24 {
		return 3
	}
	if h.Dims[3] < 1 {
		return 1
	}
	return h.Dims[3]
}

// ReadHeader reads only the header of a .nii or .nii.gz file
func ReadHeader(path string) (Header, error) {
	rc, err := open(path)
	if err != nil {
		return Header{}, err
	}
	defer rc.Close()
	h, err := decodeHeader(rc)
	if err != nil {
		return Header{}, errors.Wrapf(err, "failed to read header of %s", path)
	}
	return h, nil
}

func decodeHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, errors.InvalidInput("truncated NIfTI header")
	}

	var order binary.ByteOrder = binary.LittleEndian
	if int32(binary.LittleEndian.Uint32(buf)) != headerSize {
		if int32(binary.BigEndian.Uint32(buf)) != headerSize {
			return Header{}, errors.InvalidInput("not a NIfTI-1 file")
		}
		order = binary.BigEndian
	}

	var raw rawHeader
	if err := binary.Read(bytes.NewReader(buf), order, &raw); err != nil {
		return Header{}, errors.Wrap(errors.InvalidInput(err.Error()), "failed to decode NIfTI header")
	}
	if raw.Dim[0] < 1 || raw.Dim[0] > 7 {
		return Header{}, errors.Newf(errors.CodeInvalidInput, "invalid dimension count %d", raw.Dim[0])
	}

	h := Header{
		Datatype:  raw.Datatype,
		Bitpix:    raw.Bitpix,
		VoxOffset: int64(raw.VoxOffset),
		Slope:     float64(raw.SclSlope),
		Intercept: float64(raw.SclInter),
		order:     order,
	}
	for i := 0; i < 4; i++ {
		h.Dims[i] = 1
		if i < int(raw.Dim[0]) && raw.Dim[i+1] > 0 {
			h.Dims[i] = int(raw.Dim[i+1])
		}
	}
	for i := 0; i < 3; i++ {
		h.VoxelSize[i] = math.Abs(float64(raw.Pixdim[i+1]))
		if h.VoxelSize[i] == 0 {
			h.VoxelSize[i] = 1
		}
	}
	if h.VoxOffset < headerSize+4 {
		h.VoxOffset = headerSize + 4
	}
	h.Affine = affineOf(&raw, h.VoxelSize)
	return h, nil
}

// affineOf prefers the sform, then the qform, then plain voxel scaling
func affineOf(raw *rawHeader, vs [3]float64) Affine {
	var a Affine
	a[3][3] = 1
	switch {
	case raw.SformCode > 0:
		for j := 0; j < 4; j++ {
			a[0][j] = float64(raw.SrowX[j])
			a[1][j] = float64(raw.SrowY[j])
			a[2][j] = float64(raw.SrowZ[j])
		}
	case raw.QformCode > 0:
		b, c, d := float64(raw.QuaternB), float64(raw.QuaternC), float64(raw.QuaternD)
		aa := 1 - (b*b + c*c + d*d)
		if aa < 1e-7 {
			n := math.Sqrt(b*b + c*c + d*d)
			b, c, d, aa = b/n, c/n, d/n, 0
		} else {
			aa = math.Sqrt(aa)
		}
		qfac := 1.0
		if raw.Pixdim[0] < 0 {
			qfac = -1
		}
		r := [3][3]float64{
			{aa*aa + b*b - c*c - d*d, 2 * (b*c - aa*d), 2 * (b*d + aa*c)},
			{2 * (b*c + aa*d), aa*aa + c*c - b*b - d*d, 2 * (c*d - aa*b)},
			{2 * (b*d - aa*c), 2 * (c*d + aa*b), aa*aa + d*d - c*c - b*b},
		}
		scale := [3]float64{vs[0], vs[1], qfac * vs[2]}
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				a[i][j] = r[i][j] * scale[j]
			}
		}
		a[0][3] = float64(raw.QOffsetX)
		a[1][3] = float64(raw.QOffsetY)
		a[2][3] = float64(raw.QOffsetZ)
	default:
		a[0][0], a[1][1], a[2][2] = vs[0], vs[1], vs[2]
	}
	return a
}

// Compatible reports whether two images share grid dimensions, voxel sizes
// and voxel-to-world transform.
func Compatible(a, b Header) bool {
	for i := 0; i < 3; i++ {
		if a.Dims[i] != b.Dims[i] {
			return false
		}
		if math.Abs(a.VoxelSize[i]-b.VoxelSize[i]) > 1e-3 {
			return false
		}
	}
	return AffineClose(a.Affine, b.Affine, 1e-3)
}

// AffineClose compares two transforms element-wise
func AffineClose(a, b Affine, tol float64) bool {
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(a[i][j]-b[i][j]) > tol {
				return false
			}
		}
	}
	return true
}

type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var first error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to open %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".gz") {
		return f, nil
	}
	gz, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to open gzip stream %s", path)
	}
	return &multiCloser{Reader: gz, closers: []io.Closer{f, gz}}, nil
}
