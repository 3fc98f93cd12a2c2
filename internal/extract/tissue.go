package extract

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dmriqc/adapters/nifti"
	"dmriqc/internal/errors"
)

// TissueExtractor computes the mean of a scalar map inside the white matter,
// gray matter and CSF masks, plus its maximum inside white matter.
type TissueExtractor struct {
	Name string
}

// TissueColumns returns the four derived columns for name; the three means come first
func TissueColumns(name string) []string {
	return []string{
		"Mean " + name + " in WM",
		"Mean " + name + " in GM",
		"Mean " + name + " in CSF",
		"Max " + name + " in WM",
	}
}

func (e TissueExtractor) Columns() []string { return TissueColumns(e.Name) }

func (e TissueExtractor) Roles() []string {
	return []string{RoleScalar, RoleWM, RoleGM, RoleCSF}
}

// Extract loads the scalar map and the masks. An empty mask overlap yields NaN.
func (e TissueExtractor) Extract(ctx context.Context, in Input) (Result, error) {
	paths := make(map[string]string, 4)
	for _, role := range e.Roles() {
		p, err := in.File(role)
		if err != nil {
			return Result{}, err
		}
		paths[role] = p
	}

	scalar, err := nifti.Load(paths[RoleScalar])
	if err != nil {
		return Result{}, err
	}
	values := scalar.Frame(0)

	selected := make(map[string][]float64, 3)
	for _, role := range []string{RoleWM, RoleGM, RoleCSF} {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		mask, err := nifti.Load(paths[role])
		if err != nil {
			return Result{}, err
		}
		if !nifti.Compatible(scalar.Header, mask.Header) {
			return Result{}, errors.HeaderIncompatible(paths[RoleScalar], paths[role])
		}
		selected[role] = inMask(values, mask.Frame(0))
	}

	cols := e.Columns()
	return Result{
		Values: map[string]float64{
			cols[0]: mean(selected[RoleWM]),
			cols[1]: mean(selected[RoleGM]),
			cols[2]: mean(selected[RoleCSF]),
			cols[3]: maximum(selected[RoleWM]),
		},
		Valid: true,
	}, nil
}

func inMask(values, mask []float64) []float64 {
	var out []float64
	for i, m := range mask {
		if m != 0 {
			out = append(out, values[i])
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return stat.Mean(xs, nil)
}

func maximum(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	return floats.Max(xs)
}
