package util

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var asciiFolding = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFilename turns a client supplied name into a single lowercase path component
// made of [a-z0-9.-]. It never contains a separator or a ".." segment and may be empty.
func SanitizeFilename(name string) string {
	folded, _, err := transform.String(asciiFolding, name)
	if err != nil {
		folded = name
	}

	var (
		b       strings.Builder
		pending bool
		lastDot bool
	)

	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pending && b.Len() > 0 && !lastDot {
				b.WriteByte('-')
			}
			b.WriteRune(r)
			pending, lastDot = false, false
		case r == '.':
			if !lastDot {
				b.WriteByte('.')
			}
			pending, lastDot = false, true
		case r == '-', r == '_', r == '/', r == '\\', unicode.IsSpace(r):
			pending = true
		}
	}

	return strings.Trim(b.String(), ".-")
}

// FormatKB renders a byte count as whole kilobytes, rounded down.
func FormatKB(size int64) string {
	return fmt.Sprintf("%dKB", size/1024)
}
