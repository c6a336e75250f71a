package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/config"
	"github.com/jgivc/notehub/internal/entity"
	"github.com/jgivc/notehub/internal/pathguard"
	"github.com/jgivc/notehub/internal/util"
	"github.com/spf13/afero"
)

const (
	serviceName = "download"
)

type CounterRepository interface {
	FirstDownload(ctx context.Context, clientID, id string) (bool, error)
	IncCounter(ctx context.Context, id string) (int64, error)
}

type downloadService struct {
	fs          afero.Fs
	guard       *pathguard.Guard
	baseDir     string
	storageRoot string
	extensions  []string
	repo        CounterRepository
	log         *slog.Logger
}

func NewDownloadService(cfg *config.Config, repo CounterRepository, log *slog.Logger) *downloadService {
	return NewDownloadServiceWithFS(afero.NewOsFs(), cfg, repo, log)
}

func NewDownloadServiceWithFS(fs afero.Fs, cfg *config.Config, repo CounterRepository, log *slog.Logger) *downloadService {
	extensions := make([]string, 0, len(cfg.Storage.Extensions))
	for _, ext := range cfg.Storage.Extensions {
		extensions = append(extensions, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}

	return &downloadService{
		fs:          fs,
		guard:       pathguard.New(fs),
		baseDir:     cfg.BaseDir,
		storageRoot: cfg.StorageRoot(),
		extensions:  extensions,
		repo:        repo,
		log:         log.With(slog.String("service", serviceName)),
	}
}

// Resolve authorizes publicPath and returns the stored file it names. Checks run in order:
// empty path, traversal markers, containment under the storage root, existence, extension.
func (d *downloadService) Resolve(publicPath string) (string, error) {
	if publicPath == "" {
		d.log.Warn("Download attempt without path")

		return "", common.ErrEmptyPath
	}

	clean := strings.TrimLeft(publicPath, "/")
	if pathguard.HasParentSegment(publicPath) || rooted(clean) {
		d.log.Warn("Path traversal attempt detected", slog.String("path", publicPath))

		return "", fmt.Errorf("%w: %s", common.ErrTraversal, publicPath)
	}

	file := filepath.Join(d.baseDir, filepath.FromSlash(clean))
	if !d.guard.IsSafePath(d.storageRoot, file) {
		d.log.Warn("Unauthorized file access attempt", slog.String("path", publicPath))

		return "", fmt.Errorf("%w: %s", common.ErrContainment, publicPath)
	}

	info, err := d.fs.Stat(file)
	if err != nil || info.IsDir() {
		if err == nil || os.IsNotExist(err) {
			d.log.Warn("File not found", slog.String("path", publicPath))

			return "", fmt.Errorf("%w: %s", common.ErrNotFound, publicPath)
		}

		d.log.Error("Cannot stat file", slog.String("path", publicPath), slog.Any("error", err))

		return "", fmt.Errorf("%w: cannot stat %s: %w", common.ErrStorage, publicPath, err)
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(file), "."))
	if !slices.Contains(d.extensions, ext) {
		d.log.Warn("Attempt to download disallowed file", slog.String("path", publicPath))

		return "", fmt.Errorf("%w: %s", common.ErrDisallowedExtension, publicPath)
	}

	return file, nil
}

// Download authorizes publicPath and counts the download for clientID.
func (d *downloadService) Download(ctx context.Context, clientID, publicPath string) (*entity.Download, error) {
	file, err := d.Resolve(publicPath)
	if err != nil {
		return nil, err
	}

	info, err := d.fs.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot stat %s: %w", common.ErrStorage, publicPath, err)
	}

	download := &entity.Download{
		PublicPath: publicPath,
		FilePath:   file,
		Name:       filepath.Base(file),
		Size:       info.Size(),
	}

	download.Counter = d.count(ctx, clientID, publicPath)

	d.log.Info("File downloaded", slog.String("path", publicPath), slog.Int64("counter", download.Counter))

	return download, nil
}

// Open returns the file of an authorized download.
func (d *downloadService) Open(download *entity.Download) (afero.File, error) {
	f, err := d.fs.Open(download.FilePath)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open %s: %w", common.ErrStorage, download.PublicPath, err)
	}

	return f, nil
}

// count never fails a download: counter errors are logged and reported as 0.
func (d *downloadService) count(ctx context.Context, clientID, publicPath string) int64 {
	if d.repo == nil {
		return 0
	}

	id := util.GetIDFromString(&publicPath)

	first, err := d.repo.FirstDownload(ctx, clientID, id)
	if err != nil {
		d.log.Error("Cannot check unique download", slog.String("id", id), slog.Any("error", err))

		return 0
	}

	if !first {
		return 0
	}

	counter, err := d.repo.IncCounter(ctx, id)
	if err != nil {
		d.log.Error("Cannot increment counter", slog.String("id", id), slog.Any("error", err))

		return 0
	}

	return counter
}

// rooted reports whether p still carries a root anchor: a backslash or a drive letter.
func rooted(p string) bool {
	if strings.HasPrefix(p, "/") || strings.HasPrefix(p, `\`) || strings.ContainsRune(p, 0) {
		return true
	}

	return len(p) >= 2 && p[1] == ':' && ((p[0] >= 'a' && p[0] <= 'z') || (p[0] >= 'A' && p[0] <= 'Z'))
}
