package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chai2010/webp"
	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/config"
	"github.com/jgivc/notehub/internal/entity"
	"github.com/jgivc/notehub/internal/util"
	"github.com/spf13/afero"
	"golang.org/x/image/draw"
)

const (
	Width  = 200
	Height = 280

	URLPath = "/api/thumbnail"
)

// SourceResolver maps a public document path to the file it may be read from.
type SourceResolver interface {
	Resolve(publicPath string) (string, error)
}

// Renderer rasterizes the first page of a document.
type Renderer interface {
	RenderFirstPage(ctx context.Context, data []byte, scale float64) (image.Image, error)
}

type thumbnailCache struct {
	fs       afero.Fs
	root     string
	cfg      *config.ThumbnailConfig
	resolver SourceResolver
	renderer Renderer
	log      *slog.Logger
}

func NewThumbnailCache(root string, cfg *config.ThumbnailConfig, resolver SourceResolver, renderer Renderer, log *slog.Logger) *thumbnailCache {
	return NewThumbnailCacheWithFS(afero.NewOsFs(), root, cfg, resolver, renderer, log)
}

func NewThumbnailCacheWithFS(fs afero.Fs, root string, cfg *config.ThumbnailConfig, resolver SourceResolver, renderer Renderer, log *slog.Logger) *thumbnailCache {
	return &thumbnailCache{
		fs:       fs,
		root:     root,
		cfg:      cfg,
		resolver: resolver,
		renderer: renderer,
		log:      log.With(slog.String("item", "ThumbnailCache")),
	}
}

// PathFor returns the cache location of the sourcePath thumbnail in format.
func (c *thumbnailCache) PathFor(sourcePath, format string) string {
	return filepath.Join(c.root, util.GetIDFromString(&sourcePath)+"."+format)
}

// URLFor returns the retrieval URL of the thumbnail.
func (c *thumbnailCache) URLFor(sourcePath, format string) string {
	q := url.Values{}
	q.Set("path", sourcePath)
	q.Set("format", format)

	return URLPath + "?" + q.Encode()
}

// Generate makes sure the thumbnail of sourcePath exists in format and returns where it is.
// An empty format selects the configured default.
func (c *thumbnailCache) Generate(ctx context.Context, sourcePath, format string) (*entity.Thumbnail, error) {
	if format == "" {
		format = c.cfg.DefaultFormat
	}

	if !slices.Contains(entity.ThumbnailFormats, format) {
		return nil, fmt.Errorf("%w: %s", common.ErrUnsupportedFormat, format)
	}

	file, err := c.resolver.Resolve(sourcePath)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", common.ErrSourceNotFound, sourcePath)
		}

		return nil, err
	}

	thumb := &entity.Thumbnail{
		SourcePath: sourcePath,
		Format:     format,
		Path:       c.PathFor(sourcePath, format),
	}

	log := c.log.With(slog.String("source", sourcePath), slog.String("format", format))

	if c.cfg.Caching() {
		if ok, _ := afero.Exists(c.fs, thumb.Path); ok {
			thumb.Cached = true

			return thumb, nil
		}
	}

	data, err := afero.ReadFile(c.fs, file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", common.ErrSourceNotFound, sourcePath)
		}

		return nil, fmt.Errorf("%w: cannot read %s: %w", common.ErrRenderError, file, err)
	}

	page, err := c.renderer.RenderFirstPage(ctx, data, c.cfg.Scale)
	if err != nil {
		log.Warn("Cannot render thumbnail", slog.Any("error", err))

		return nil, fmt.Errorf("%w: %w", common.ErrRenderError, err)
	}

	var buf bytes.Buffer
	if err := c.encode(&buf, Fit(page), format); err != nil {
		return nil, fmt.Errorf("%w: cannot encode %s: %w", common.ErrRenderError, format, err)
	}

	if err := c.fs.MkdirAll(c.root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: cannot create cache root: %w", common.ErrStorage, err)
	}

	if err := afero.WriteFile(c.fs, thumb.Path, buf.Bytes(), 0o644); err != nil {
		log.Error("Cannot write thumbnail", slog.Any("error", err))

		return nil, fmt.Errorf("%w: cannot write thumbnail: %w", common.ErrStorage, err)
	}

	log.Debug("Thumbnail rendered", slog.String("path", thumb.Path))

	return thumb, nil
}

// Open returns the cached image of thumb.
func (c *thumbnailCache) Open(thumb *entity.Thumbnail) (afero.File, error) {
	f, err := c.fs.Open(thumb.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open thumbnail: %w", common.ErrStorage, err)
	}

	return f, nil
}

// Delete removes the thumbnails of sourcePath in every format. Missing entries are ignored.
func (c *thumbnailCache) Delete(sourcePath string) error {
	for _, format := range entity.ThumbnailFormats {
		if err := c.fs.Remove(c.PathFor(sourcePath, format)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: cannot delete thumbnail: %w", common.ErrStorage, err)
		}
	}

	return nil
}

// SweepOrphans deletes every cached file whose hash does not belong to one of livePaths
// and returns how many were removed.
func (c *thumbnailCache) SweepOrphans(livePaths []string) (int, error) {
	if ok, _ := afero.DirExists(c.fs, c.root); !ok {
		return 0, nil
	}

	live := make(map[string]struct{}, len(livePaths))
	for _, p := range livePaths {
		live[util.GetIDFromString(&p)] = struct{}{}
	}

	entries, err := afero.ReadDir(c.fs, c.root)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot list cache root: %w", common.ErrStorage, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if _, ok := live[strings.TrimSuffix(name, filepath.Ext(name))]; ok {
			continue
		}

		if err := c.fs.Remove(filepath.Join(c.root, name)); err != nil && !os.IsNotExist(err) {
			c.log.Error("Cannot delete orphan", slog.String("name", name), slog.Any("error", err))

			continue
		}
		removed++
	}

	if removed > 0 {
		c.log.Info("Orphan thumbnails removed", slog.Int("count", removed))
	}

	return removed, nil
}

func (c *thumbnailCache) encode(buf *bytes.Buffer, img image.Image, format string) error {
	switch format {
	case entity.ThumbnailFormatWebP:
		return webp.Encode(buf, img, &webp.Options{Quality: c.cfg.WebPQuality})
	default:
		enc := png.Encoder{CompressionLevel: png.BestCompression}

		return enc.Encode(buf, img)
	}
}

// Fit scales src down to fit the Width x Height box, keeping its aspect ratio,
// and centres it on an opaque white canvas of exactly that size. Smaller pages are not upscaled.
func Fit(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	b := src.Bounds()
	if b.Empty() {
		return dst
	}

	ratio := min(float64(Width)/float64(b.Dx()), float64(Height)/float64(b.Dy()), 1)
	w := max(int(float64(b.Dx())*ratio+0.5), 1)
	h := max(int(float64(b.Dy())*ratio+0.5), 1)

	x0 := (Width - w) / 2
	y0 := (Height - h) / 2
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), src, b, draw.Over, nil)

	return dst
}
