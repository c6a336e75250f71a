package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/jgivc/notehub/internal/common"
	"github.com/jgivc/notehub/internal/config"
	"github.com/jgivc/notehub/internal/entity"
	"github.com/jgivc/notehub/internal/util"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v2"
)

const (
	serviceName = "maintenance"
)

type CatalogRepository interface {
	Load(ctx context.Context) (*entity.Catalog, error)
	View(ctx context.Context, fn func(c *entity.Catalog) error) error
}

type ThumbnailCache interface {
	Generate(ctx context.Context, sourcePath, format string) (*entity.Thumbnail, error)
	SweepOrphans(livePaths []string) (int, error)
}

type CounterRepository interface {
	Prune(ctx context.Context, liveIDs []string) (int, error)
}

type CounterService interface {
	GetCounters(ctx context.Context, materials []*entity.Material) ([]*entity.MaterialCounter, error)
}

type MaintenanceService struct {
	running     atomic.Bool
	fs          afero.Fs
	baseDir     string
	storageRoot string
	extensions  []string
	workers     int
	catalog     CatalogRepository
	thumbs      ThumbnailCache
	counterRepo CounterRepository
	counters    CounterService
	log         *slog.Logger
}

func NewMaintenanceService(cfg *config.Config, catalog CatalogRepository, thumbs ThumbnailCache,
	counterRepo CounterRepository, counters CounterService, log *slog.Logger) *MaintenanceService {
	return NewMaintenanceServiceWithFS(afero.NewOsFs(), cfg, catalog, thumbs, counterRepo, counters, log)
}

func NewMaintenanceServiceWithFS(fs afero.Fs, cfg *config.Config, catalog CatalogRepository, thumbs ThumbnailCache,
	counterRepo CounterRepository, counters CounterService, log *slog.Logger) *MaintenanceService {
	return &MaintenanceService{
		fs:          fs,
		baseDir:     cfg.BaseDir,
		storageRoot: cfg.StorageRoot(),
		extensions:  normalizeExtensions(cfg.Storage.Extensions),
		workers:     cfg.Thumbnails.Workers,
		catalog:     catalog,
		thumbs:      thumbs,
		counterRepo: counterRepo,
		counters:    counters,
		log:         log.With(slog.String("item", "MaintenanceService")),
	}
}

// Sweep removes orphan thumbnails and stale counters and reports stored files no material refers to.
// The files are deleted only when removeFiles is set.
func (m *MaintenanceService) Sweep(ctx context.Context, removeFiles bool) (*entity.SweepReport, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, common.ErrMaintenanceAlreadyRunning
	}
	defer m.running.Store(false)

	report := &entity.SweepReport{}

	// Uploads write their file before the catalog is saved, so the walk runs under the catalog lock.
	err := m.catalog.View(ctx, func(c *entity.Catalog) error {
		paths := c.MaterialPaths()

		var err error
		report.Thumbnails, err = m.thumbs.SweepOrphans(paths)
		if err != nil {
			m.log.Error("Cannot sweep thumbnails", slog.Any("error", err))

			return fmt.Errorf("cannot sweep thumbnails: %w", err)
		}

		if m.counterRepo != nil {
			ids := make([]string, 0, len(paths))
			for _, p := range paths {
				ids = append(ids, util.GetIDFromString(&p))
			}

			report.Counters, err = m.counterRepo.Prune(ctx, ids)
			if err != nil {
				m.log.Error("Cannot prune counters", slog.Any("error", err))

				return fmt.Errorf("cannot prune counters: %w", err)
			}
		}

		report.OrphanFiles, err = m.reconcile(paths, removeFiles)

		return err
	})
	if err != nil {
		return nil, err
	}
	report.FilesRemoved = removeFiles && len(report.OrphanFiles) > 0

	m.log.Info("Sweep done",
		slog.Int("thumbnails", report.Thumbnails),
		slog.Int("counters", report.Counters),
		slog.Int("orphan_files", len(report.OrphanFiles)))

	return report, nil
}

// ReconcileMaterials lists stored files under the storage root that no material refers to,
// deleting them when remove is set.
func (m *MaintenanceService) ReconcileMaterials(ctx context.Context, remove bool) ([]string, error) {
	if !m.running.CompareAndSwap(false, true) {
		return nil, common.ErrMaintenanceAlreadyRunning
	}
	defer m.running.Store(false)

	var orphans []string
	err := m.catalog.View(ctx, func(c *entity.Catalog) error {
		var err error
		orphans, err = m.reconcile(c.MaterialPaths(), remove)

		return err
	})
	if err != nil {
		return nil, err
	}

	return orphans, nil
}

// DumpCounters writes the download counter of every material to fileName as YAML.
func (m *MaintenanceService) DumpCounters(ctx context.Context, fileName string) error {
	c, err := m.catalog.Load(ctx)
	if err != nil {
		return err
	}

	counters, err := m.counters.GetCounters(ctx, c.Materials())
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(counters)
	if err != nil {
		return fmt.Errorf("cannot marshal counters: %w", err)
	}

	if err := afero.WriteFile(m.fs, fileName, data, 0o644); err != nil {
		m.log.Error("Cannot write counters", slog.String("file", fileName), slog.Any("error", err))

		return fmt.Errorf("cannot write counters: %w", err)
	}

	m.log.Info("Counters dumped", slog.String("file", fileName), slog.Int("count", len(counters)))

	return nil
}

func (m *MaintenanceService) reconcile(livePaths []string, remove bool) ([]string, error) {
	if ok, _ := afero.DirExists(m.fs, m.storageRoot); !ok {
		return []string{}, nil
	}

	live := make(map[string]struct{}, len(livePaths))
	for _, p := range livePaths {
		live[p] = struct{}{}
	}

	orphans := []string{}
	err := afero.Walk(m.fs, m.storageRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			return nil
		}

		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
		if !slices.Contains(m.extensions, ext) {
			return nil
		}

		publicPath, err := util.PublicPath(m.baseDir, path)
		if err != nil {
			return err
		}

		if _, ok := live[publicPath]; ok {
			return nil
		}

		orphans = append(orphans, publicPath)

		if remove {
			if err := m.fs.Remove(path); err != nil {
				m.log.Error("Cannot delete orphan file", slog.String("path", path), slog.Any("error", err))

				return err
			}
			m.log.Info("Orphan file removed", slog.String("path", publicPath))
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: cannot reconcile materials: %w", common.ErrStorage, err)
	}

	return orphans, nil
}

func normalizeExtensions(exts []string) []string {
	res := make([]string, 0, len(exts))
	for _, ext := range exts {
		res = append(res, strings.ToLower(strings.TrimPrefix(ext, ".")))
	}

	return res
}
