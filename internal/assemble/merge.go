// Package assemble merges per-subject worker results back into table order.
package assemble

import (
	"log"

	"dmriqc/domain/metrics"
	"dmriqc/domain/report"
	"dmriqc/domain/subject"
	"dmriqc/internal/errors"
)

// Merge re-keys worker results by subject and returns them in the row order
// of tbl. A duplicate key fails under CollisionError and replaces the earlier
// result, with a logged conflict, under CollisionLastWriteWins. Results for
// subjects missing from tbl are rejected.
func Merge(tbl *metrics.Table, results []report.Screenshot, policy metrics.CollisionPolicy) ([]report.Screenshot, error) {
	byKey := make(map[subject.Key]report.Screenshot, len(results))
	for _, r := range results {
		if _, ok := tbl.Get(r.Key); !ok {
			return nil, errors.Newf(errors.CodeInternalError, "%s: result for unknown subject %s", tbl.Group, r.Key)
		}
		if prev, dup := byKey[r.Key]; dup {
			if policy != metrics.CollisionLastWriteWins {
				return nil, errors.Wrapf(errors.KeyCollision(r.Key.String()), "%s: results %s and %s", tbl.Group, prev.Path, r.Path)
			}
			log.Printf("[Merge] key collision group=%q key=%s previous=%s current=%s policy=%s",
				tbl.Group, r.Key, prev.Path, r.Path, policy)
		}
		byKey[r.Key] = r
	}

	out := make([]report.Screenshot, 0, len(byKey))
	for _, row := range tbl.Rows() {
		if r, ok := byKey[row.Key]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}
