package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/entity"
	"github.com/spf13/afero"
)

const (
	tempFilePattern = ".catalog-*.tmp"
	catalogFileMode = 0o644
)

// catalogRepository keeps the catalog in one JSON file. Update serializes read-modify-write
// cycles; Save replaces the file with a fully written temporary copy.
type catalogRepository struct {
	mu       sync.Mutex
	fs       afero.Fs
	fileName string
	log      *slog.Logger
}

func NewCatalogRepository(fileName string, log *slog.Logger) *catalogRepository {
	return NewCatalogRepositoryWithFS(afero.NewOsFs(), fileName, log)
}

func NewCatalogRepositoryWithFS(fs afero.Fs, fileName string, log *slog.Logger) *catalogRepository {
	return &catalogRepository{
		fs:       fs,
		fileName: fileName,
		log:      log.With(slog.String("item", "CatalogRepository")),
	}
}

func (r *catalogRepository) Load(ctx context.Context) (*entity.Catalog, error) {
	data, err := afero.ReadFile(r.fs, r.fileName)
	if err != nil {
		r.log.Error("Cannot read catalog", slog.String("path", r.fileName), slog.Any("error", err))

		return nil, fmt.Errorf("%w: cannot read %s: %w", common.ErrCatalogUnreadable, r.fileName, err)
	}

	var c entity.Catalog
	if err := json.Unmarshal(data, &c); err != nil {
		r.log.Error("Cannot parse catalog", slog.String("path", r.fileName), slog.Any("error", err))

		return nil, fmt.Errorf("%w: cannot parse %s: %w", common.ErrCatalogUnreadable, r.fileName, err)
	}

	return &c, nil
}

func (r *catalogRepository) Save(ctx context.Context, c *entity.Catalog) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrCatalogWrite, err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("%w: cannot encode catalog: %w", common.ErrCatalogWrite, err)
	}

	if err := r.replace(buf.Bytes()); err != nil {
		r.log.Error("Cannot write catalog", slog.String("path", r.fileName), slog.Any("error", err))

		return fmt.Errorf("%w: %w", common.ErrCatalogWrite, err)
	}

	return nil
}

// Update runs fn on a freshly loaded catalog and saves the result when fn succeeds.
// Concurrent updates are applied one after another.
func (r *catalogRepository) Update(ctx context.Context, fn func(c *entity.Catalog) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.Load(ctx)
	if err != nil {
		return err
	}

	if err := fn(c); err != nil {
		return err
	}

	return r.Save(ctx, c)
}

// View runs fn on a freshly loaded catalog while holding the update lock. Nothing is saved.
// fn sees the catalog together with every file written by a finished Update.
func (r *catalogRepository) View(ctx context.Context, fn func(c *entity.Catalog) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, err := r.Load(ctx)
	if err != nil {
		return err
	}

	return fn(c)
}

func (r *catalogRepository) replace(data []byte) error {
	dir := filepath.Dir(r.fileName)
	if err := r.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("cannot create catalog dir %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(r.fs, dir, tempFilePattern)
	if err != nil {
		return fmt.Errorf("cannot create temp file: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = r.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("cannot write temp file: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("cannot sync temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("cannot close temp file: %w", err)
	}

	if err := r.fs.Chmod(tmpName, catalogFileMode); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("cannot chmod temp file: %w", err)
	}

	if err := r.fs.Rename(tmpName, r.fileName); err != nil {
		return fmt.Errorf("cannot replace %s: %w", r.fileName, err)
	}
	success = true

	return nil
}
