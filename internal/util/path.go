package util

import (
	"fmt"
	"path/filepath"
	"strings"
)

// PublicPath returns file relative to baseDir in slash form with a leading slash,
// e.g. /data/notes/semester-1/cse/ds/notes-01.pdf.
func PublicPath(baseDir, file string) (string, error) {
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", err
	}

	abs, err := filepath.Abs(file)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}

	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside of %s", file, baseDir)
	}

	return "/" + rel, nil
}
