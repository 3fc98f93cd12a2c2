// Package inputs holds the checks run on a batch before any processing starts.
package inputs

import (
	"fmt"
	"os"
	"strings"

	"dmriqc/adapters/nifti"
	"dmriqc/adapters/tractogram"
	"dmriqc/internal/errors"
)

// List is one named modality list of a batch
type List struct {
	Name  string
	Paths []string
}

// EqualLength fails when the lists do not all have the same number of entries
func EqualLength(lists ...List) error {
	if len(lists) == 0 {
		return nil
	}
	n := len(lists[0].Paths)
	for _, l := range lists[1:] {
		if len(l.Paths) != n {
			parts := make([]string, len(lists))
			for i, x := range lists {
				parts[i] = fmt.Sprintf("%s=%d", x.Name, len(x.Paths))
			}
			return errors.Newf(errors.CodeInputMismatch,
				"not the same number of images in input (%s)", strings.Join(parts, ", "))
		}
	}
	return nil
}

// Exist fails on the first path that is missing or of the wrong kind
func Exist(dirs bool, paths ...string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return errors.Newf(errors.CodeInvalidInput, "input %s does not exist", p)
		}
		if info.IsDir() != dirs {
			if dirs {
				return errors.Newf(errors.CodeInvalidInput, "input %s is not a directory", p)
			}
			return errors.Newf(errors.CodeInvalidInput, "input %s is a directory", p)
		}
	}
	return nil
}

// Flatten concatenates every list in order
func Flatten(lists ...List) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l.Paths...)
	}
	return out
}

// NiftiSets checks that the i-th image of every list shares the geometry of
// the i-th image of the first list.
func NiftiSets(lists ...List) error {
	if len(lists) < 2 {
		return nil
	}
	for i, ref := range lists[0].Paths {
		refHdr, err := nifti.ReadHeader(ref)
		if err != nil {
			return err
		}
		for _, l := range lists[1:] {
			h, err := nifti.ReadHeader(l.Paths[i])
			if err != nil {
				return err
			}
			if !nifti.Compatible(refHdr, h) {
				return errors.HeaderIncompatible(ref, l.Paths[i])
			}
		}
	}
	return nil
}

// TractogramPairs checks every tractogram against the anatomy it was traced on
func TractogramPairs(tractograms, anatomy []string) error {
	for i, trk := range tractograms {
		th, err := tractogram.ReadHeader(trk)
		if err != nil {
			return err
		}
		ah, err := nifti.ReadHeader(anatomy[i])
		if err != nil {
			return err
		}
		if !tractogram.Compatible(th, ah) {
			return errors.HeaderIncompatible(trk, anatomy[i])
		}
	}
	return nil
}
