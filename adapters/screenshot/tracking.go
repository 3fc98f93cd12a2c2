package screenshot

import (
	"image"
	"image/color"
	"math"

	"dmriqc/adapters/nifti"
	"dmriqc/adapters/tractogram"
)

// TrackingOptions controls the streamline overlay
type TrackingOptions struct {
	// Bundle centres the anatomical slice on the streamline barycentre
	// instead of the volume centre.
	Bundle bool
	Scale  int `validate:"min=1"`
}

// DefaultTrackingOptions uses the volume centre and a 4x enlargement
func DefaultTrackingOptions() TrackingOptions {
	return TrackingOptions{Scale: 4}
}

// Tracking projects streamlines, given in voxel coordinates of anat, onto an
// axial slice of anat. Segments are colored by their direction.
func Tracking(anat *nifti.Volume, streamlines []tractogram.Streamline, opts TrackingOptions, label string) image.Image {
	nx, ny, nz := anat.Dims[0], anat.Dims[1], anat.Dims[2]
	z := nz / 2
	if opts.Bundle {
		if c, ok := tractogram.Barycentre(streamlines); ok {
			z = clamp(int(math.Round(c[2])), 0, nz-1)
		}
	}
	scale := opts.Scale
	if scale < 1 {
		scale = 1
	}

	img := upscale(axialGray(anat, z, newIntensity(anat.Frame(0))), scale)
	plot := func(p tractogram.Point, col color.RGBA) {
		px := int(math.Floor((p[0] + 0.5) * float64(scale)))
		py := int(math.Floor((float64(ny) - 0.5 - p[1]) * float64(scale)))
		if px >= 0 && px < nx*scale && py >= 0 && py < ny*scale {
			img.SetRGBA(px, py, col)
		}
	}

	for _, s := range streamlines {
		for i := 1; i < len(s); i++ {
			a, b := s[i-1], s[i]
			col := direction(a, b)
			length := math.Sqrt(sq(b[0]-a[0]) + sq(b[1]-a[1]))
			steps := int(math.Ceil(length*float64(scale))) + 1
			for k := 0; k <= steps; k++ {
				t := float64(k) / float64(steps)
				plot(tractogram.Point{a[0] + t*(b[0]-a[0]), a[1] + t*(b[1]-a[1]), a[2] + t*(b[2]-a[2])}, col)
			}
		}
		if len(s) == 1 {
			plot(s[0], color.RGBA{R: 255, G: 255, B: 0, A: 255})
		}
	}
	return withLabel(img, label)
}

// direction maps |dx|, |dy|, |dz| of a segment to red, green, blue
func direction(a, b tractogram.Point) color.RGBA {
	d := [3]float64{math.Abs(b[0] - a[0]), math.Abs(b[1] - a[1]), math.Abs(b[2] - a[2])}
	n := math.Sqrt(d[0]*d[0] + d[1]*d[1] + d[2]*d[2])
	if n == 0 {
		return color.RGBA{R: 255, G: 255, B: 255, A: 255}
	}
	return color.RGBA{
		R: uint8(255 * d[0] / n),
		G: uint8(255 * d[1] / n),
		B: uint8(255 * d[2] / n),
		A: 255,
	}
}

// SaveTracking loads the tractogram and its anatomy, renders and writes a PNG
func SaveTracking(path, trkPath, anatPath string, opts TrackingOptions, label string) error {
	anat, err := nifti.Load(anatPath)
	if err != nil {
		return err
	}
	trk, err := tractogram.Load(trkPath)
	if err != nil {
		return err
	}
	vox, err := trk.VoxelPoints(anat.Header)
	if err != nil {
		return err
	}
	return savePNG(path, Tracking(anat, vox, opts, label))
}

func sq(x float64) float64 { return x * x }

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
