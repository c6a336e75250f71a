// Package testutil builds fixtures shared by package tests.
package testutil

import (
	"bytes"
	"fmt"
	"strings"
)

// PDF returns a valid PDF document with the given number of pages, each holding a filled blue square.
// The document is padded with a comment line until it is at least minSize bytes long.
func PDF(pages, minSize int) []byte {
	pad := 0
	for {
		data := buildPDF(pages, pad)
		if len(data) >= minSize {
			return data
		}
		pad += minSize - len(data)
	}
}

func buildPDF(pages, pad int) []byte {
	// 1: catalog, 2: pages, then a page and its content stream per page.
	objects := make([]string, 0, 2+2*pages)
	kids := make([]string, 0, pages)
	for i := 0; i < pages; i++ {
		kids = append(kids, fmt.Sprintf("%d 0 R", 3+2*i))
	}

	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages),
	)

	for i := 0; i < pages; i++ {
		content := fmt.Sprintf("0 0 1 rg %d 100 300 300 re f", 100+i)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> /Contents %d 0 R >>", 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	if pad > 0 {
		buf.WriteString("%")
		buf.WriteString(strings.Repeat("0", pad))
		buf.WriteString("\n")
	}

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}
