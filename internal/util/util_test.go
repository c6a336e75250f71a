package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "Scenario 1: Spaces and case", input: "Notes 01.pdf", expected: "notes-01.pdf"},
		{name: "Scenario 2: Traversal segments", input: "../../etc/passwd.pdf", expected: "etc-passwd.pdf"},
		{name: "Scenario 3: Windows separators", input: `..\..\boot.ini.pdf`, expected: "boot.ini.pdf"},
		{name: "Scenario 4: Leading dots", input: "...hidden.pdf", expected: "hidden.pdf"},
		{name: "Scenario 5: Control and null bytes", input: "a\x00b\x07c.pdf", expected: "abc.pdf"},
		{name: "Scenario 6: Accents folded", input: "Résumé Élève.pdf", expected: "resume-eleve.pdf"},
		{name: "Scenario 7: Underscores and punctuation", input: "unit_1 (final)!.PDF", expected: "unit-1-final.pdf"},
		{name: "Scenario 8: Dot runs", input: "a..b.pdf", expected: "a.b.pdf"},
		{name: "Scenario 9: Nothing legal", input: "../..//", expected: ""},
		{name: "Scenario 10: Only symbols", input: "@#$%", expected: ""},
		{name: "Scenario 11: Subject name slug", input: "Data Structures", expected: "data-structures"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, SanitizeFilename(tc.input))
		})
	}
}

func TestSanitizeFilenameProperties(t *testing.T) {
	inputs := []string{
		"../x.pdf", "..", ".", "/", `\`, "a/../b", "....//....//x", "x/..", " .. ", "..pdf", "a-..-b",
	}

	for _, input := range inputs {
		out := SanitizeFilename(input)
		require.NotContains(t, out, "/", input)
		require.NotContains(t, out, `\`, input)
		require.NotEqual(t, "..", out, input)
		require.NotContains(t, out, "..", input)
		require.False(t, strings.HasPrefix(out, "."), input)
	}

	require.NotEmpty(t, SanitizeFilename("../x"))
}

func TestFormatKB(t *testing.T) {
	require.Equal(t, "0KB", FormatKB(1023))
	require.Equal(t, "2KB", FormatKB(2048))
	require.Equal(t, "2KB", FormatKB(3071))
}

func TestGetIDFromString(t *testing.T) {
	a := "/data/notes/a.pdf"
	b := "/data/notes/b.pdf"

	require.Equal(t, GetIDFromString(&a), GetIDFromString(&a))
	require.NotEqual(t, GetIDFromString(&a), GetIDFromString(&b))
	require.Len(t, GetIDFromString(&a), 40)
}

func TestPublicPath(t *testing.T) {
	p, err := PublicPath("/srv", "/srv/data/notes/semester-1/cse/ds/notes-01.pdf")
	require.NoError(t, err)
	require.Equal(t, "/data/notes/semester-1/cse/ds/notes-01.pdf", p)

	p, err = PublicPath(".", "data/notes/a.pdf")
	require.NoError(t, err)
	require.Equal(t, "/data/notes/a.pdf", p)

	_, err = PublicPath("/srv/data", "/srv/other/a.pdf")
	require.Error(t, err)
}
