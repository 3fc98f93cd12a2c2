package extract

import (
	"context"
	"log"

	"dmriqc/domain/metrics"
	"dmriqc/domain/subject"
	"dmriqc/internal/errors"
)

// Roles name the files of one subject's input set
const (
	RoleConfounds  = "confounds"
	RoleScalar     = "scalar"
	RoleRGB        = "rgb"
	RoleWM         = "wm"
	RoleGM         = "gm"
	RoleCSF        = "csf"
	RoleTractogram = "tractogram"
	RoleT1         = "t1"
)

// Input is one subject's raw files, keyed by role
type Input struct {
	Key   subject.Key
	Files map[string]string
}

// File returns the path for role or an INVALID_INPUT error
func (in Input) File(role string) (string, error) {
	p, ok := in.Files[role]
	if !ok || p == "" {
		return "", errors.Newf(errors.CodeInvalidInput, "%s: missing %s input", in.Key, role)
	}
	return p, nil
}

// Paths returns the input files in role order
func (in Input) Paths(roles ...string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if p, ok := in.Files[r]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Result is the output of one extraction
type Result struct {
	Values map[string]float64
	// Valid is false for subjects excluded from the per-subject artifact phase
	Valid bool
}

// Extractor computes the scalar metrics of one subject
type Extractor interface {
	Columns() []string
	Roles() []string
	Extract(ctx context.Context, in Input) (Result, error)
}

// BuildTable runs ex over every input in enumeration order and collects the rows
func BuildTable(ctx context.Context, group string, ex Extractor, inputs []Input, policy metrics.CollisionPolicy) (*metrics.Table, error) {
	tbl := metrics.NewTable(group, ex.Columns(), policy)
	tbl.OnConflict(func(c metrics.Conflict) {
		log.Printf("[Extract] key collision group=%q key=%s previous=%v current=%v policy=%s",
			group, c.Key, c.Previous, c.Current, metrics.CollisionLastWriteWins)
	})

	for _, in := range inputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := ex.Extract(ctx, in)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: extraction failed for %s", group, in.Key)
		}
		row := metrics.Row{
			Key:    in.Key,
			Inputs: in.Paths(ex.Roles()...),
			Values: res.Values,
			Valid:  res.Valid,
		}
		if err := tbl.Insert(row); err != nil {
			return nil, err
		}
	}
	log.Printf("[Extract] %s: %d rows, %d valid", group, tbl.Len(), len(tbl.ValidRows()))
	return tbl, nil
}
