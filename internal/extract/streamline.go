package extract

import (
	"context"
	"log"

	"dmriqc/adapters/tractogram"
)

// StreamlineColumn is the single column of the tracking group
const StreamlineColumn = "Nb streamlines"

// StreamlineExtractor counts the streamlines of a tractogram.
// A tractogram without streamlines stays in the statistics but is not valid
// for screenshots.
type StreamlineExtractor struct{}

func (StreamlineExtractor) Columns() []string { return []string{StreamlineColumn} }

func (StreamlineExtractor) Roles() []string {
	return []string{RoleTractogram, RoleT1}
}

func (StreamlineExtractor) Extract(_ context.Context, in Input) (Result, error) {
	path, err := in.File(RoleTractogram)
	if err != nil {
		return Result{}, err
	}
	n, err := tractogram.Count(path)
	if err != nil {
		return Result{}, err
	}
	if n == 0 {
		log.Printf("[Extract] %s has no streamlines, skipping its screenshot", path)
	}
	return Result{
		Values: map[string]float64{StreamlineColumn: float64(n)},
		Valid:  n > 0,
	}, nil
}
