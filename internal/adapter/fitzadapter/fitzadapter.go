package fitzadapter

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/gen2brain/go-fitz"
	"github.com/jgivc/notehub/internal/common"
)

const baseDPI = 72

type fitzAdapter struct {
	log *slog.Logger
}

func NewFitzAdapter(log *slog.Logger) *fitzAdapter {
	return &fitzAdapter{
		log: log.With(slog.String("item", "FitzAdapter")),
	}
}

// RenderFirstPage rasterizes page 0 of the PDF in data. A scale of 1 renders at 72 DPI.
func (a *fitzAdapter) RenderFirstPage(ctx context.Context, data []byte, scale float64) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open document: %w", common.ErrRenderError, err)
	}
	defer func() {
		if err := doc.Close(); err != nil {
			a.log.Warn("Cannot close document", slog.Any("error", err))
		}
	}()

	if doc.NumPage() < 1 {
		return nil, fmt.Errorf("%w: document has no pages", common.ErrRenderError)
	}

	img, err := doc.ImageDPI(0, baseDPI*scale)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot render first page: %w", common.ErrRenderError, err)
	}

	return img, nil
}
