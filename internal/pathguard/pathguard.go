// Package pathguard decides whether a filesystem path stays inside a root directory.
package pathguard

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

const (
	doubleDot             = ".."
	doubleDotDirSeparator = doubleDot + string(filepath.Separator)
)

type Guard struct {
	followSymlinks bool
}

// New returns a guard for paths on fs. Symlinks are only followed on the OS filesystem,
// every other afero backend is checked lexically.
func New(fs afero.Fs) *Guard {
	_, onOS := fs.(*afero.OsFs)

	return &Guard{followSymlinks: onOS}
}

// IsSafePath checks candidate against root on the OS filesystem.
func IsSafePath(root, candidate string) bool {
	return New(afero.NewOsFs()).IsSafePath(root, candidate)
}

// IsSafePath reports whether candidate resolves to root or to a path beneath it.
func (g *Guard) IsSafePath(root, candidate string) bool {
	if root == "" || candidate == "" || HasParentSegment(candidate) {
		return false
	}

	resolvedRoot, err := g.resolve(root)
	if err != nil {
		return false
	}

	resolvedCandidate, err := g.resolve(candidate)
	if err != nil {
		return false
	}

	return isWithin(resolvedCandidate, resolvedRoot)
}

// HasParentSegment reports whether p has a ".." element, with either separator style.
func HasParentSegment(p string) bool {
	for _, segment := range strings.FieldsFunc(p, func(r rune) bool { return r == '/' || r == '\\' }) {
		if segment == doubleDot {
			return true
		}
	}

	return false
}

func isWithin(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}

	return !(rel == doubleDot || strings.HasPrefix(rel, doubleDotDirSeparator))
}

func (g *Guard) resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}

	if !g.followSymlinks {
		return abs, nil
	}

	return evalExisting(abs)
}

// evalExisting resolves symlinks of the longest existing prefix of abs and appends the rest,
// so directories that are about to be created can be checked too.
func evalExisting(abs string) (string, error) {
	existing := abs
	var rest []string

	for {
		resolved, err := filepath.EvalSymlinks(existing)
		if err == nil {
			return filepath.Join(append([]string{resolved}, rest...)...), nil
		}

		if !os.IsNotExist(err) {
			return "", err
		}

		parent := filepath.Dir(existing)
		if parent == existing {
			return abs, nil
		}

		rest = append([]string{filepath.Base(existing)}, rest...)
		existing = parent
	}
}
