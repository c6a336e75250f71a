package mdadapter

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
	"go.abhg.dev/goldmark/frontmatter"
)

type mdAdapter struct {
	md  goldmark.Markdown
	log *slog.Logger
}

func NewMDAdapter(log *slog.Logger) *mdAdapter {
	return &mdAdapter{
		md: goldmark.New(
			goldmark.WithExtensions(
				&frontmatter.Extender{},
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
				html.WithXHTML(),
			),
		),
		log: log.With(slog.String("item", "MDAdapter")),
	}
}

// ToHTML renders a material description. Leading frontmatter is dropped and raw HTML is omitted.
func (a *mdAdapter) ToHTML(src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", nil
	}

	var buf bytes.Buffer

	ctx := parser.NewContext()
	if err := a.md.Convert([]byte(src), &buf, parser.WithContext(ctx)); err != nil {
		return "", fmt.Errorf("cannot render description: %w", err)
	}

	if fm := frontmatter.Get(ctx); fm != nil {
		var meta map[string]any
		if err := fm.Decode(&meta); err != nil {
			a.log.Debug("Cannot decode description frontmatter", slog.Any("error", err))
		} else {
			a.log.Debug("Description frontmatter skipped", slog.Int("keys", len(meta)))
		}
	}

	return strings.TrimSpace(buf.String()), nil
}
