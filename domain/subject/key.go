package subject

import (
	"path/filepath"
	"strings"
)

// Key identifies one subject acquisition inside a batch
type Key struct {
	Subject string `json:"subject"`
	Session string `json:"session"`
	Task    string `json:"task"`
	Run     string `json:"run,omitempty"`
}

// String joins the non-empty components with an underscore
func (k Key) String() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{k.Subject, k.Session, k.Task, k.Run} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "_")
}

// HasRun reports whether a run component was parsed
func (k Key) HasRun() bool {
	return k.Run != ""
}

// IsEmpty reports whether no component could be derived
func (k Key) IsEmpty() bool {
	return k.String() == ""
}

// Parse derives a key from a path relative to the batch root.
//
// The first path segment is the subject. The file name split on "_" carries
// the session at index 1, the task at index 2 and a run candidate at index 3;
// the run candidate is dropped unless it contains "run". Paths that do not
// follow the convention produce a partial key rather than an error.
func Parse(relPath string) Key {
	clean := filepath.ToSlash(filepath.Clean(relPath))
	segments := strings.Split(clean, "/")

	var k Key
	for _, s := range segments {
		if s != "" && s != "." && s != ".." {
			k.Subject = s
			break
		}
	}

	tokens := strings.Split(segments[len(segments)-1], "_")
	k.Session = token(tokens, 1)
	k.Task = token(tokens, 2)
	if run := token(tokens, 3); strings.Contains(run, "run") {
		k.Run = run
	}
	return k
}

// Resolve parses path relative to root. A path outside root is parsed as given.
func Resolve(root, path string) Key {
	if root == "" {
		return Parse(path)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Parse(path)
	}
	return Parse(rel)
}

// CommonRoot returns the deepest directory shared by every path.
// Flat modality lists are keyed relative to it so the distinguishing part of
// each path becomes the subject segment.
func CommonRoot(paths []string) string {
	if len(paths) == 0 {
		return ""
	}
	split := func(p string) []string {
		return strings.Split(filepath.ToSlash(filepath.Dir(filepath.Clean(p))), "/")
	}
	common := split(paths[0])
	for _, p := range paths[1:] {
		segs := split(p)
		n := 0
		for n < len(common) && n < len(segs) && common[n] == segs[n] {
			n++
		}
		common = common[:n]
	}
	if len(common) == 0 {
		return ""
	}
	joined := strings.Join(common, "/")
	if joined == "" {
		return "/"
	}
	return filepath.FromSlash(joined)
}

func token(tokens []string, i int) string {
	if i < len(tokens) {
		return tokens[i]
	}
	return ""
}
