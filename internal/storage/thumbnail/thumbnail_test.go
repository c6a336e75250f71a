package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/chai2010/webp"
	"github.com/jgivc/notehub/internal/adapter/fitzadapter"
	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/config"
	"github.com/jgivc/notehub/internal/entity"
	"github.com/jgivc/notehub/internal/testutil"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const (
	cacheRoot  = "/srv/data/thumbnails"
	sourcePath = "/data/notes/semester-1/cse/ds/notes-01.pdf"
	sourceFile = "/srv/data/notes/semester-1/cse/ds/notes-01.pdf"
)

var errNoPages = errors.New("document has no pages")

type mapResolver map[string]string

func (m mapResolver) Resolve(publicPath string) (string, error) {
	if publicPath == "" {
		return "", common.ErrEmptyPath
	}

	if file, ok := m[publicPath]; ok {
		return file, nil
	}

	return "", common.ErrNotFound
}

type countingRenderer struct {
	calls atomic.Int32
	page  image.Image
	err   error
}

func (r *countingRenderer) RenderFirstPage(_ context.Context, _ []byte, _ float64) (image.Image, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}

	return r.page, nil
}

func solid(w, h int, c color.Color) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}

	return img
}

func thumbnailConfig() *config.ThumbnailConfig {
	cfg := &config.Config{}
	cfg.SetDefaults()

	return &cfg.Thumbnails
}

func newCache(t *testing.T, cfg *config.ThumbnailConfig, renderer Renderer) (afero.Fs, *thumbnailCache) {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, sourceFile, []byte("%PDF-1.4"), 0o644))

	resolver := mapResolver{sourcePath: sourceFile}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return fs, NewThumbnailCacheWithFS(fs, cacheRoot, cfg, resolver, renderer, log)
}

func TestPathFor(t *testing.T) {
	_, cache := newCache(t, thumbnailConfig(), &countingRenderer{})

	p := cache.PathFor(sourcePath, "png")
	require.Equal(t, p, cache.PathFor(sourcePath, "png"))
	require.NotEqual(t, p, cache.PathFor(sourcePath, "webp"))
	require.NotEqual(t, p, cache.PathFor(sourcePath+"x", "png"))
	require.True(t, strings.HasPrefix(p, cacheRoot+"/"))
	require.True(t, strings.HasSuffix(p, ".png"))
}

func TestURLFor(t *testing.T) {
	_, cache := newCache(t, thumbnailConfig(), &countingRenderer{})

	u, err := url.Parse(cache.URLFor("/data/notes/a b&c.pdf", "webp"))
	require.NoError(t, err)
	require.Equal(t, URLPath, u.Path)
	require.Equal(t, "/data/notes/a b&c.pdf", u.Query().Get("path"))
	require.Equal(t, "webp", u.Query().Get("format"))
}

func TestGenerateRendersOnce(t *testing.T) {
	renderer := &countingRenderer{page: solid(612, 792, color.RGBA{B: 255, A: 255})}
	fs, cache := newCache(t, thumbnailConfig(), renderer)
	ctx := context.Background()

	first, err := cache.Generate(ctx, sourcePath, "")
	require.NoError(t, err)
	require.False(t, first.Cached)
	require.Equal(t, "png", first.Format)

	data, err := afero.ReadFile(fs, first.Path)
	require.NoError(t, err)

	second, err := cache.Generate(ctx, sourcePath, "png")
	require.NoError(t, err)
	require.True(t, second.Cached)
	require.Equal(t, first.Path, second.Path)
	require.Equal(t, int32(1), renderer.calls.Load())

	again, err := afero.ReadFile(fs, second.Path)
	require.NoError(t, err)
	require.Equal(t, data, again)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, Width, Height), img.Bounds())
}

func TestGenerateWithoutCaching(t *testing.T) {
	cfg := thumbnailConfig()
	disabled := false
	cfg.CacheEnabled = &disabled

	renderer := &countingRenderer{page: solid(100, 100, color.Black)}
	_, cache := newCache(t, cfg, renderer)

	for i := 0; i < 2; i++ {
		thumb, err := cache.Generate(context.Background(), sourcePath, "png")
		require.NoError(t, err)
		require.False(t, thumb.Cached)
	}
	require.Equal(t, int32(2), renderer.calls.Load())
}

func TestGenerateWebP(t *testing.T) {
	renderer := &countingRenderer{page: solid(300, 300, color.RGBA{R: 255, A: 255})}
	fs, cache := newCache(t, thumbnailConfig(), renderer)

	thumb, err := cache.Generate(context.Background(), sourcePath, "webp")
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(thumb.Path, ".webp"))

	data, err := afero.ReadFile(fs, thumb.Path)
	require.NoError(t, err)

	img, err := webp.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, Width, img.Bounds().Dx())
	require.Equal(t, Height, img.Bounds().Dy())
}

func TestGenerateFailures(t *testing.T) {
	testCases := []struct {
		name      string
		source    string
		format    string
		renderErr error
		wantError error
	}{
		{name: "Scenario 1: Source is not on record", source: "/data/notes/absent.pdf", format: "png", wantError: common.ErrSourceNotFound},
		{name: "Scenario 2: Zero page document", source: sourcePath, format: "png", renderErr: errNoPages, wantError: common.ErrRenderError},
		{name: "Scenario 3: Unknown format", source: sourcePath, format: "gif", wantError: common.ErrUnsupportedFormat},
		{name: "Scenario 4: Empty path", source: "", format: "png", wantError: common.ErrEmptyPath},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			renderer := &countingRenderer{page: solid(10, 10, color.Black), err: tc.renderErr}
			fs, cache := newCache(t, thumbnailConfig(), renderer)

			_, err := cache.Generate(context.Background(), tc.source, tc.format)
			require.ErrorIs(t, err, tc.wantError)

			exists, _ := afero.Exists(fs, cache.PathFor(tc.source, tc.format))
			require.False(t, exists, "no cache file must be created")
		})
	}
}

func TestGenerateZeroPageDocument(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	fs, cache := newCache(t, thumbnailConfig(), fitzadapter.NewFitzAdapter(log))
	require.NoError(t, afero.WriteFile(fs, sourceFile, testutil.PDF(0, 0), 0o644))

	_, err := cache.Generate(context.Background(), sourcePath, "png")
	require.ErrorIs(t, err, common.ErrRenderError)

	entries, err := afero.Glob(fs, cacheRoot+"/*")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestGenerateSourceFileMissing(t *testing.T) {
	fs, cache := newCache(t, thumbnailConfig(), &countingRenderer{page: solid(10, 10, color.Black)})
	require.NoError(t, fs.Remove(sourceFile))

	_, err := cache.Generate(context.Background(), sourcePath, "png")
	require.ErrorIs(t, err, common.ErrSourceNotFound)
}

func TestFit(t *testing.T) {
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}

	testCases := []struct {
		name   string
		src    image.Image
		inside image.Point
		blank  image.Point
	}{
		{name: "Scenario 1: Wide page is letterboxed", src: solid(400, 100, color.Black), inside: image.Point{X: 100, Y: 140}, blank: image.Point{X: 100, Y: 10}},
		{name: "Scenario 2: Tall page is pillarboxed", src: solid(100, 1000, color.Black), inside: image.Point{X: 100, Y: 140}, blank: image.Point{X: 10, Y: 140}},
		{name: "Scenario 3: Small page is not upscaled", src: solid(50, 50, color.Black), inside: image.Point{X: 100, Y: 140}, blank: image.Point{X: 70, Y: 140}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			out := Fit(tc.src)
			require.Equal(t, image.Rect(0, 0, Width, Height), out.Bounds())
			require.Equal(t, white, out.RGBAAt(tc.blank.X, tc.blank.Y))
			require.NotEqual(t, white, out.RGBAAt(tc.inside.X, tc.inside.Y))
		})
	}
}

func TestDelete(t *testing.T) {
	renderer := &countingRenderer{page: solid(10, 10, color.Black)}
	fs, cache := newCache(t, thumbnailConfig(), renderer)
	ctx := context.Background()

	for _, format := range entity.ThumbnailFormats {
		_, err := cache.Generate(ctx, sourcePath, format)
		require.NoError(t, err)
	}

	require.NoError(t, cache.Delete(sourcePath))
	require.NoError(t, cache.Delete(sourcePath))

	for _, format := range entity.ThumbnailFormats {
		exists, _ := afero.Exists(fs, cache.PathFor(sourcePath, format))
		require.False(t, exists)
	}
}

func TestSweepOrphans(t *testing.T) {
	fs, cache := newCache(t, thumbnailConfig(), &countingRenderer{})

	removed, err := cache.SweepOrphans(nil)
	require.NoError(t, err)
	require.Equal(t, 0, removed, "missing cache root is not an error")

	live := []string{"/data/notes/a.pdf", "/data/notes/b.pdf"}
	for _, p := range append(live, "/data/notes/gone.pdf") {
		for _, format := range entity.ThumbnailFormats {
			require.NoError(t, afero.WriteFile(fs, cache.PathFor(p, format), []byte("img"), 0o644))
		}
	}

	removed, err = cache.SweepOrphans(live)
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	for _, p := range live {
		exists, _ := afero.Exists(fs, cache.PathFor(p, "png"))
		require.True(t, exists)
	}

	removed, err = cache.SweepOrphans(live)
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}
