package tractogram

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"dmriqc/internal/errors"
)

type tckLayout struct {
	offset int64
	order  binary.ByteOrder
	size   int
}

func readTCKHeader(r *bufio.Reader) (tckLayout, error) {
	first, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(first) != "mrtrix tracks" {
		return tckLayout{}, errors.InvalidInput("not a TCK file")
	}
	layout := tckLayout{order: binary.LittleEndian, size: 4}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return tckLayout{}, errors.InvalidInput("TCK header is not terminated by END")
		}
		line = strings.TrimSpace(line)
		if line == "END" {
			break
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case "file":
			fields := strings.Fields(value)
			if len(fields) != 2 || fields[0] != "." {
				return tckLayout{}, errors.Newf(errors.CodeInvalidInput, "unsupported TCK file entry %q", value)
			}
			off, err := strconv.ParseInt(fields[1], 10, 64)
			if err != nil {
				return tckLayout{}, errors.Newf(errors.CodeInvalidInput, "invalid TCK offset %q", fields[1])
			}
			layout.offset = off
		case "datatype":
			switch value {
			case "Float32LE":
			case "Float32BE":
				layout.order = binary.BigEndian
			case "Float64LE":
				layout.size = 8
			case "Float64BE":
				layout.size, layout.order = 8, binary.BigEndian
			default:
				return tckLayout{}, errors.Newf(errors.CodeInvalidInput, "unsupported TCK datatype %q", value)
			}
		}
	}
	if layout.offset == 0 {
		return tckLayout{}, errors.InvalidInput("TCK header has no data offset")
	}
	return layout, nil
}

// loadTCK reads an MRtrix track file. Points are in world millimetres.
func loadTCK(path string, countOnly bool) (*Tractogram, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to open %s", path)
	}
	defer f.Close()

	layout, err := readTCKHeader(bufio.NewReader(f))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if _, err := f.Seek(layout.offset, io.SeekStart); err != nil {
		return nil, errors.Wrapf(err, "failed to seek %s", path)
	}

	t := &Tractogram{Header: Header{Format: FormatTCK, Space: SpaceRASmm}}
	r := bufio.NewReader(f)
	buf := make([]byte, 3*layout.size)
	var current Streamline
	open := false
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			if err == io.EOF && !open {
				break
			}
			return nil, errors.Wrapf(errors.InvalidInput("truncated streamline"), "failed to read %s", path)
		}
		var p Point
		for c := 0; c < 3; c++ {
			b := buf[c*layout.size:]
			if layout.size == 4 {
				p[c] = float64(math.Float32frombits(layout.order.Uint32(b)))
			} else {
				p[c] = math.Float64frombits(layout.order.Uint64(b))
			}
		}
		switch {
		case math.IsInf(p[0], 0):
			return t, nil
		case math.IsNaN(p[0]):
			t.count++
			if !countOnly {
				t.Streamlines = append(t.Streamlines, current)
			}
			current = nil
			open = false
		default:
			open = true
			if !countOnly {
				current = append(current, p)
			}
		}
	}
	return t, nil
}

// WriteTCK writes streamlines in world millimetres as Float32LE
func WriteTCK(path string, streamlines []Streamline) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	// the offset line is padded so its width does not change the offset itself
	head := fmt.Sprintf("mrtrix tracks\ndatatype: Float32LE\ncount: %010d\nfile: . %06d\nEND\n", len(streamlines), 0)
	offset := len(head)
	head = fmt.Sprintf("mrtrix tracks\ndatatype: Float32LE\ncount: %010d\nfile: . %06d\nEND\n", len(streamlines), offset)

	w := bufio.NewWriter(f)
	if _, err := w.WriteString(head); err != nil {
		return err
	}
	nan := float32(math.NaN())
	inf := float32(math.Inf(1))
	for _, s := range streamlines {
		for _, p := range s {
			if err := binary.Write(w, binary.LittleEndian, [3]float32{float32(p[0]), float32(p[1]), float32(p[2])}); err != nil {
				return err
			}
		}
		if err := binary.Write(w, binary.LittleEndian, [3]float32{nan, nan, nan}); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, [3]float32{inf, inf, inf}); err != nil {
		return err
	}
	return w.Flush()
}

func loadTCKHeaderOnly(path string) (tckLayout, error) {
	f, err := os.Open(path)
	if err != nil {
		return tckLayout{}, errors.Wrapf(errors.InvalidInput(err.Error()), "failed to open %s", path)
	}
	defer f.Close()
	layout, err := readTCKHeader(bufio.NewReader(f))
	if err != nil {
		return tckLayout{}, errors.Wrapf(err, "failed to read %s", path)
	}
	return layout, nil
}
