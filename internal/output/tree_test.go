package output

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/jgivc/notehub/internal/entity"
	"github.com/stretchr/testify/require"
)

func TestCatalogTree(t *testing.T) {
	var c entity.Catalog
	require.NoError(t, json.Unmarshal([]byte(`{"semesters": [
		{"id": 1, "branches": [{"id": "cse", "subjects": [
			{"id": "ds", "name": "Data Structures", "materials": [
				{"title": "Notes", "path": "/data/notes/semester-1/cse/data-structures/notes.pdf", "size": "2KB", "uploadDate": "2026-03-14"}
			]},
			{"id": "os", "name": ""}
		]}]},
		{"id": "2", "branches": []}
	]}`), &c))

	out := CatalogTree(&c, "notes")
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	require.Equal(t, "notes", lines[0])
	require.Len(t, lines, 7)
	require.Contains(t, lines[1], "semester-1")
	require.Contains(t, lines[2], "cse")
	require.Contains(t, lines[3], "ds (Data Structures)")
	require.Contains(t, lines[4], "Notes [2KB, 2026-03-14] /data/notes/semester-1/cse/data-structures/notes.pdf")
	require.True(t, strings.HasSuffix(lines[5], "os"))
	require.Contains(t, lines[6], "semester-2")
}

func TestCatalogTreeEmpty(t *testing.T) {
	out := CatalogTree(&entity.Catalog{}, "notes")
	require.Equal(t, "notes", strings.TrimSpace(out))
}
