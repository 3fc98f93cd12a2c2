package screenshot

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"

	"dmriqc/adapters/nifti"
	"dmriqc/internal/errors"
)

// MosaicOptions controls the blended axial mosaic
type MosaicOptions struct {
	Blend   float64 `validate:"gte=0,lte=1"`
	Skip    int     `validate:"min=1"`
	Columns int     `validate:"min=1"`
	Scale   int     `validate:"min=1"`
}

// DefaultMosaicOptions blends both images equally, keeps every second slice
// and lays out twelve tiles per row.
func DefaultMosaicOptions() MosaicOptions {
	return MosaicOptions{Blend: 0.5, Skip: 2, Columns: 12, Scale: 2}
}

// Mosaic blends an anatomical image with a color map on every Skip-th axial
// slice and tiles the slices Columns per row.
func Mosaic(anat, rgb *nifti.Volume, opts MosaicOptions, label string) (image.Image, error) {
	if !nifti.Compatible(anat.Header, rgb.Header) {
		return nil, errors.New(errors.CodeHeaderIncompatible, "mosaic images do not share a grid")
	}
	if opts.Skip < 1 {
		opts.Skip = 1
	}
	if opts.Columns < 1 {
		opts.Columns = 1
	}

	nx, ny, nz := anat.Dims[0], anat.Dims[1], anat.Dims[2]
	var slices []int
	for z := 0; z < nz; z += opts.Skip {
		slices = append(slices, z)
	}
	cols := opts.Columns
	if len(slices) < cols {
		cols = len(slices)
	}
	rows := (len(slices) + cols - 1) / cols

	gray := newIntensity(anat.Frame(0))
	colorScale := rgbScale(rgb)

	canvas := image.NewRGBA(image.Rect(0, 0, cols*nx, rows*ny))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	for i, z := range slices {
		ox, oy := (i%cols)*nx, (i/cols)*ny
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				g := gray.at(anat.At(x, y, z, 0))
				var px [3]uint8
				for c := 0; c < 3; c++ {
					frame := c
					if rgb.Frames() < 3 {
						frame = 0
					}
					cv := math.Max(0, math.Min(1, rgb.At(x, y, z, frame)*colorScale))
					px[c] = uint8(255 * (opts.Blend*g + (1-opts.Blend)*cv))
				}
				canvas.SetRGBA(ox+x, oy+ny-1-y, color.RGBA{R: px[0], G: px[1], B: px[2], A: 255})
			}
		}
	}
	return withLabel(upscale(canvas, opts.Scale), label), nil
}

func rgbScale(rgb *nifti.Volume) float64 {
	hi := 0.0
	for _, v := range rgb.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) && v > hi {
			hi = v
		}
	}
	if hi == 0 {
		return 0
	}
	if hi <= 1 {
		return 1
	}
	return 1 / hi
}

// SaveMosaic loads both images, renders the mosaic and writes it as PNG
func SaveMosaic(path, anatPath, rgbPath string, opts MosaicOptions, label string) error {
	anat, err := nifti.Load(anatPath)
	if err != nil {
		return err
	}
	rgb, err := nifti.Load(rgbPath)
	if err != nil {
		return err
	}
	img, err := Mosaic(anat, rgb, opts, label)
	if err != nil {
		return errors.Wrapf(err, "failed to render mosaic of %s", anatPath)
	}
	return savePNG(path, img)
}
