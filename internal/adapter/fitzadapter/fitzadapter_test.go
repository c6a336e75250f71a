package fitzadapter

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/testutil"
	"github.com/stretchr/testify/require"
)

func newAdapter() *fitzAdapter {
	return NewFitzAdapter(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRenderFirstPage(t *testing.T) {
	img, err := newAdapter().RenderFirstPage(context.Background(), testutil.PDF(2, 0), 1.5)
	require.NoError(t, err)

	// 612x792 points at 108 DPI
	require.InDelta(t, 918, img.Bounds().Dx(), 1)
	require.InDelta(t, 1188, img.Bounds().Dy(), 1)
}

func TestRenderFirstPageCorrupt(t *testing.T) {
	_, err := newAdapter().RenderFirstPage(context.Background(), []byte("not a pdf at all"), 1.5)
	require.ErrorIs(t, err, common.ErrRenderError)
}

func TestRenderFirstPageNoPages(t *testing.T) {
	img, err := newAdapter().RenderFirstPage(context.Background(), testutil.PDF(0, 0), 1.5)
	require.Nil(t, img)
	require.True(t, errors.Is(err, common.ErrRenderError), "got %v", err)
}

func TestRenderFirstPageCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newAdapter().RenderFirstPage(ctx, testutil.PDF(1, 0), 1)
	require.ErrorIs(t, err, context.Canceled)
}
