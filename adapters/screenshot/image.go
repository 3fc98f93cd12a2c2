// Package screenshot renders the per-subject QC images.
package screenshot

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"dmriqc/adapters/nifti"
	"dmriqc/internal/errors"
)

const labelHeight = 18

// intensity maps a volume frame to [0, 1] using its finite min and max
type intensity struct {
	lo, scale float64
}

func newIntensity(values []float64) intensity {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) || hi <= lo {
		return intensity{lo: 0, scale: 0}
	}
	return intensity{lo: lo, scale: 1 / (hi - lo)}
}

func (in intensity) at(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, (v-in.lo)*in.scale))
}

// axialGray renders slice z of frame 0 with anterior at the top
func axialGray(v *nifti.Volume, z int, in intensity) *image.RGBA {
	nx, ny := v.Dims[0], v.Dims[1]
	img := image.NewRGBA(image.Rect(0, 0, nx, ny))
	for y := 0; y < ny; y++ {
		for x := 0; x < nx; x++ {
			g := uint8(255 * in.at(v.At(x, y, z, 0)))
			img.SetRGBA(x, ny-1-y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return img
}

// upscale enlarges img by an integer factor with nearest-neighbour sampling
func upscale(img image.Image, factor int) *image.RGBA {
	if factor < 1 {
		factor = 1
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx()*factor, b.Dy()*factor))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// withLabel returns img below a dark band carrying text
func withLabel(img image.Image, text string) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+labelHeight))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.RGBA{A: 255}), image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, labelHeight, b.Dx(), b.Dy()+labelHeight), img, b.Min, draw.Src)

	face := basicfont.Face7x13
	dr := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.RGBA{R: 255, G: 255, B: 255, A: 255}),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(4), Y: fixed.I(face.Metrics().Ascent.Ceil() + 2)},
	}
	dr.DrawString(text)
	return out
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	return f.Close()
}
