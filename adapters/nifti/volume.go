package nifti

import (
	"bufio"
	"compress/gzip"
	"encoding/binary"
	"io"
	"log"
	"math"
	"os"
	"strings"

	"dmriqc/internal/errors"
)

// Volume is a decoded image. Data is stored x-fastest, one frame after another,
// with the scaling slope and intercept applied.
type Volume struct {
	Header
	Data []float64
}

// Load reads the header and voxel data of a .nii or .nii.gz file
func Load(path string) (*Volume, error) {
	rc, err := open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	h, err := decodeHeader(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read header of %s", path)
	}
	if _, err := io.CopyN(io.Discard, rc, h.VoxOffset-headerSize); err != nil {
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to reach voxel data of %s", path)
	}

	data, err := decodeData(bufio.NewReader(rc), h)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read voxels of %s", path)
	}
	log.Printf("[NIfTI] loaded %s dims=%v datatype=%d", path, h.Dims, h.Datatype)
	return &Volume{Header: h, Data: data}, nil
}

func decodeData(r io.Reader, h Header) ([]float64, error) {
	n := h.Voxels()
	frames := h.Frames()
	out := make([]float64, n*frames)

	if h.Datatype == DTRGB24 {
		buf := make([]byte, n*3)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, errors.InvalidInput("truncated voxel data")
		}
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				out[c*n+i] = float64(buf[i*3+c])
			}
		}
		return out, nil
	}

	size, read := sampleReader(h.Datatype, h.order)
	if read == nil {
		return nil, errors.Newf(errors.CodeInvalidInput, "unsupported datatype %d", h.Datatype)
	}
	buf := make([]byte, len(out)*size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.InvalidInput("truncated voxel data")
	}

	slope, inter := h.Slope, h.Intercept
	scaled := slope != 0 && !math.IsNaN(slope) && !(slope == 1 && inter == 0)
	for i := range out {
		v := read(buf[i*size:])
		if scaled {
			v = v*slope + inter
		}
		out[i] = v
	}
	return out, nil
}

func sampleReader(dt int16, order binary.ByteOrder) (int, func([]byte) float64) {
	switch dt {
	case DTUint8:
		return 1, func(b []byte) float64 { return float64(b[0]) }
	case DTInt8:
		return 1, func(b []byte) float64 { return float64(int8(b[0])) }
	case DTInt16:
		return 2, func(b []byte) float64 { return float64(int16(order.Uint16(b))) }
	case DTUint16:
		return 2, func(b []byte) float64 { return float64(order.Uint16(b)) }
	case DTInt32:
		return 4, func(b []byte) float64 { return float64(int32(order.Uint32(b))) }
	case DTUint32:
		return 4, func(b []byte) float64 { return float64(order.Uint32(b)) }
	case DTFloat32:
		return 4, func(b []byte) float64 { return float64(math.Float32frombits(order.Uint32(b))) }
	case DTFloat64:
		return 8, func(b []byte) float64 { return math.Float64frombits(order.Uint64(b)) }
	}
	return 0, nil
}

// Index returns the flat offset of voxel (x, y, z) in frame t
func (v *Volume) Index(x, y, z, t int) int {
	return ((t*v.Dims[2]+z)*v.Dims[1]+y)*v.Dims[0] + x
}

// At returns the value of voxel (x, y, z) in frame t
func (v *Volume) At(x, y, z, t int) float64 {
	return v.Data[v.Index(x, y, z, t)]
}

// Frame returns the samples of volume t
func (v *Volume) Frame(t int) []float64 {
	n := v.Voxels()
	return v.Data[t*n : (t+1)*n]
}

// New builds a volume on a grid with an identity-scaled affine
func New(dims [4]int, voxelSize [3]float64, datatype int16) *Volume {
	h := Header{Dims: dims, VoxelSize: voxelSize, Datatype: datatype, Slope: 1}
	for i := range h.Dims {
		if h.Dims[i] < 1 {
			h.Dims[i] = 1
		}
	}
	h.Affine[0][0], h.Affine[1][1], h.Affine[2][2], h.Affine[3][3] = voxelSize[0], voxelSize[1], voxelSize[2], 1
	return &Volume{Header: h, Data: make([]float64, h.Voxels()*h.Frames())}
}

// Set assigns voxel (x, y, z) in frame t
func (v *Volume) Set(x, y, z, t int, value float64) {
	v.Data[v.Index(x, y, z, t)] = value
}

// Save writes the volume as little-endian NIfTI-1, gzip-compressed for .gz paths.
// Supported datatypes are uint8, int16, float32 and RGB24.
func (v *Volume) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	var w io.Writer = f
	var gz *gzip.Writer
	if strings.HasSuffix(strings.ToLower(path), ".gz") {
		gz = gzip.NewWriter(f)
		w = gz
	}
	bw := bufio.NewWriter(w)
	if err := v.encode(bw); err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (v *Volume) encode(w io.Writer) error {
	raw := rawHeader{
		SizeofHdr: headerSize,
		Regular:   'r',
		Datatype:  v.Datatype,
		VoxOffset: headerSize + 4,
		SclSlope:  1,
		SformCode: 1,
		QformCode: 0,
		Magic:     [4]byte{'n', '+', '1', 0},
	}
	ndim := 3
	if v.Datatype != DTRGB24 && v.Dims[3] > 1 {
		ndim = 4
	}
	raw.Dim[0] = int16(ndim)
	for i := 0; i < 4; i++ {
		raw.Dim[i+1] = int16(v.Dims[i])
	}
	raw.Pixdim[0] = 1
	for i := 0; i < 3; i++ {
		raw.Pixdim[i+1] = float32(v.VoxelSize[i])
	}
	for j := 0; j < 4; j++ {
		raw.SrowX[j] = float32(v.Affine[0][j])
		raw.SrowY[j] = float32(v.Affine[1][j])
		raw.SrowZ[j] = float32(v.Affine[2][j])
	}

	var put func(float64) error
	switch v.Datatype {
	case DTUint8:
		raw.Bitpix = 8
		put = func(x float64) error { _, err := w.Write([]byte{uint8(x)}); return err }
	case DTInt16:
		raw.Bitpix = 16
		put = func(x float64) error { return binary.Write(w, binary.LittleEndian, int16(x)) }
	case DTFloat32:
		raw.Bitpix = 32
		put = func(x float64) error { return binary.Write(w, binary.LittleEndian, float32(x)) }
	case DTRGB24:
		raw.Bitpix = 24
	default:
		return errors.Newf(errors.CodeInvalidInput, "cannot encode datatype %d", v.Datatype)
	}

	if err := binary.Write(w, binary.LittleEndian, &raw); err != nil {
		return err
	}
	if _, err := w.Write(make([]byte, 4)); err != nil {
		return err
	}

	if v.Datatype == DTRGB24 {
		n := v.Voxels()
		buf := make([]byte, n*3)
		for i := 0; i < n; i++ {
			for c := 0; c < 3; c++ {
				buf[i*3+c] = uint8(v.Data[c*n+i])
			}
		}
		_, err := w.Write(buf)
		return err
	}
	for _, x := range v.Data {
		if err := put(x); err != nil {
			return err
		}
	}
	return nil
}
