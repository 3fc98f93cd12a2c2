package tractogram

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"os"

	"dmriqc/internal/errors"
)

const trkHeaderSize = 1000

// trkHeader mirrors the TrackVis header layout
type trkHeader struct {
	IDString                [6]byte
	Dim                     [3]int16
	VoxelSize               [3]float32
	Origin                  [3]float32
	NScalars                int16
	ScalarName              [200]byte
	NProperties             int16
	PropertyName            [200]byte
	VoxToRAS                [4][4]float32
	Reserved                [444]byte
	VoxelOrder              [4]byte
	Pad2                    [4]byte
	ImageOrientationPatient [6]float32
	Pad1                    [2]byte
	InvertX                 byte
	InvertY                 byte
	InvertZ                 byte
	SwapXY                  byte
	SwapYZ                  byte
	SwapZX                  byte
	NCount                  int32
	Version                 int32
	HdrSize                 int32
}

func readTRKHeader(r io.Reader) (trkHeader, binary.ByteOrder, error) {
	var h trkHeader
	buf := make([]byte, trkHeaderSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return h, nil, errors.InvalidInput("truncated TRK header")
	}
	if string(buf[:5]) != "TRACK" {
		return h, nil, errors.InvalidInput("not a TRK file")
	}
	var order binary.ByteOrder = binary.LittleEndian
	if int32(order.Uint32(buf[996:])) != trkHeaderSize {
		order = binary.BigEndian
		if int32(order.Uint32(buf[996:])) != trkHeaderSize {
			return h, nil, errors.InvalidInput("invalid TRK header size")
		}
	}
	if err := binary.Read(bytes.NewReader(buf), order, &h); err != nil {
		return h, nil, errors.Wrap(errors.InvalidInput(err.Error()), "failed to decode TRK header")
	}
	return h, order, nil
}

func (h trkHeader) geometry() Header {
	g := Header{Format: FormatTRK, Space: SpaceVoxmm}
	for i := 0; i < 3; i++ {
		g.Dims[i] = int(h.Dim[i])
		g.VoxelSize[i] = float64(h.VoxelSize[i])
	}
	if h.VoxToRAS[3][3] != 0 {
		g.HasAffine = true
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				g.Affine[i][j] = float64(h.VoxToRAS[i][j])
			}
		}
	}
	return g
}

// loadTRK reads every streamline of a TrackVis file. With countOnly the
// point data is skipped and only the number of streamlines is returned.
func loadTRK(path string, countOnly bool) (*Tractogram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to open %s", path)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	h, order, err := readTRKHeader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	t := &Tractogram{Header: h.geometry()}
	info, err := f.Stat()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	remaining := info.Size() - trkHeaderSize

	stride := int64(3 + int(h.NScalars))
	props := int64(h.NProperties)
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.Wrapf(errors.InvalidInput("truncated streamline"), "failed to read %s", path)
		}
		remaining -= int64(len(lenBuf))
		m := int64(int32(order.Uint32(lenBuf[:])))
		if m < 0 {
			return nil, errors.Newf(errors.CodeInvalidInput, "negative streamline length in %s", path)
		}
		size := 4 * (m*stride + props)
		if size > remaining {
			return nil, errors.Newf(errors.CodeInvalidInput,
				"streamline of %d points exceeds the %d bytes left in %s", m, remaining, path)
		}
		remaining -= size
		t.count++
		if countOnly {
			if _, err := io.CopyN(io.Discard, r, size); err != nil {
				return nil, errors.Wrapf(errors.InvalidInput("truncated streamline"), "failed to read %s", path)
			}
			continue
		}
		body := make([]byte, size)
		if _, err := io.ReadFull(r, body); err != nil {
			return nil, errors.Wrapf(errors.InvalidInput("truncated streamline"), "failed to read %s", path)
		}
		s := make(Streamline, m)
		for p := int64(0); p < m; p++ {
			off := int(4 * p * stride)
			for c := 0; c < 3; c++ {
				s[p][c] = float64(math.Float32frombits(order.Uint32(body[off+4*c:])))
			}
		}
		t.Streamlines = append(t.Streamlines, s)
	}
	return t, nil
}

// WriteTRK writes streamlines given in voxmm space with a version 2 header
func WriteTRK(path string, hdr Header, streamlines []Streamline) error {
	var h trkHeader
	copy(h.IDString[:], "TRACK")
	for i := 0; i < 3; i++ {
		h.Dim[i] = int16(hdr.Dims[i])
		h.VoxelSize[i] = float32(hdr.VoxelSize[i])
	}
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			h.VoxToRAS[i][j] = float32(hdr.Affine[i][j])
		}
	}
	copy(h.VoxelOrder[:], "RAS")
	h.NCount = int32(len(streamlines))
	h.Version = 2
	h.HdrSize = trkHeaderSize

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return err
	}
	for _, s := range streamlines {
		if err := binary.Write(w, binary.LittleEndian, int32(len(s))); err != nil {
			return err
		}
		for _, p := range s {
			pts := [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}
			if err := binary.Write(w, binary.LittleEndian, pts); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}

func loadTRKHeaderOnly(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to open %s", path)
	}
	defer f.Close()
	h, _, err := readTRKHeader(f)
	if err != nil {
		return Header{}, errors.Wrapf(err, "failed to read %s", path)
	}
	return h.geometry(), nil
}
