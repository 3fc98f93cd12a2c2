// Package output owns the files a report run writes.
package output

import (
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dmriqc/domain/core"
	"dmriqc/internal/errors"
)

const (
	// DataDirName holds every generated artifact of a run
	DataDirName = "data"
	// LibsDirName holds the stylesheet of an offline report
	LibsDirName = "libs"
)

// Context is the output state of one run. It is created before any artifact
// is written and passed to every component that writes one.
type Context struct {
	RunID      core.RunID
	ReportPath string
	Root       string
	DataDir    string
	LibsDir    string
	Overwrite  bool
}

// New lays out the outputs next to the report file
func New(reportPath string, overwrite bool) *Context {
	root := filepath.Dir(reportPath)
	return &Context{
		RunID:      core.RunID(core.NewID()),
		ReportPath: reportPath,
		Root:       root,
		DataDir:    filepath.Join(root, DataDirName),
		LibsDir:    filepath.Join(root, LibsDirName),
		Overwrite:  overwrite,
	}
}

// Check fails when an output already exists and overwrite is off
func (c *Context) Check(extra ...string) error {
	if c.Overwrite {
		return nil
	}
	for _, p := range append([]string{c.ReportPath, c.DataDir, c.LibsDir}, extra...) {
		if _, err := os.Stat(p); err == nil {
			return errors.OutputExists(p)
		}
	}
	return nil
}

// Prepare recreates an empty data directory and removes a stale libs directory
func (c *Context) Prepare() error {
	if err := os.RemoveAll(c.DataDir); err != nil {
		return errors.Wrapf(err, "failed to clear %s", c.DataDir)
	}
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", c.DataDir)
	}
	if err := os.RemoveAll(c.LibsDir); err != nil {
		return errors.Wrapf(err, "failed to remove %s", c.LibsDir)
	}
	log.Printf("[Output] run %s writing into %s", c.RunID, c.DataDir)
	return nil
}

var unsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// ArtifactPath returns the data-directory path of a named artifact.
// The name only depends on its parts, so reruns produce the same file set.
func (c *Context) ArtifactPath(ext string, parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.Trim(unsafe.ReplaceAllString(p, "_"), "_"); s != "" {
			clean = append(clean, s)
		}
	}
	return filepath.Join(c.DataDir, strings.Join(clean, "__")+ext)
}

// Rel returns path relative to the report directory, as linked from the report
func (c *Context) Rel(path string) string {
	rel, err := filepath.Rel(c.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}
