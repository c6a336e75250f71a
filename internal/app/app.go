package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jgivc/notehub/internal/adapter/converter"
	"github.com/jgivc/notehub/internal/adapter/fitzadapter"
	"github.com/jgivc/notehub/internal/adapter/mdadapter"
	"github.com/jgivc/notehub/internal/config"
	httphandler "github.com/jgivc/notehub/internal/handler/http"
	"github.com/jgivc/notehub/internal/output"
	"github.com/jgivc/notehub/internal/repository/catalog"
	"github.com/jgivc/notehub/internal/repository/counter"
	srvcounter "github.com/jgivc/notehub/internal/service/counter"
	srvdownload "github.com/jgivc/notehub/internal/service/download"
	"github.com/jgivc/notehub/internal/service/maintenance"
	"github.com/jgivc/notehub/internal/service/upload"
	"github.com/jgivc/notehub/internal/storage/thumbnail"
	"github.com/redis/go-redis/v9"
)

const (
	sweepTimeout = 5 * time.Minute
	dumpTimeout  = 5 * time.Second
	treeTimeout  = 5 * time.Second
)

type counterRepository interface {
	FirstDownload(ctx context.Context, clientID, id string) (bool, error)
	IncCounter(ctx context.Context, id string) (int64, error)
	GetCounters(ctx context.Context, ids []string) (map[string]int64, error)
	Prune(ctx context.Context, liveIDs []string) (int, error)
	Close() error
}

type App struct {
	cfgPath     string
	cfg         *config.Config
	srv         *http.Server
	counters    counterRepository
	maintenance *maintenance.MaintenanceService
	log         *slog.Logger
}

func New(cfgPath string) *App {
	return &App{
		cfgPath: cfgPath,
	}
}

func (a *App) init() {
	if a.cfg != nil {
		return
	}

	a.cfg = config.MustLoad(a.cfgPath)

	lo := &slog.HandlerOptions{}
	switch a.cfg.LogLevel {
	case config.LogLevelInfo:
		lo.Level = slog.LevelInfo
	case config.LogLevelWarn:
		lo.Level = slog.LevelWarn
	case config.LogLevelError:
		lo.Level = slog.LevelError
	case config.LogLevelDebug:
		lo.Level = slog.LevelDebug
	default:
		panic("unknown log level")
	}
	a.log = slog.New(slog.NewTextHandler(os.Stderr, lo))
}

func (a *App) Start() {
	a.init()
	log := a.log

	repo, err := a.counterRepository()
	if err != nil {
		panic(err)
	}
	a.counters = repo

	catalogRepo := catalog.NewCatalogRepository(a.cfg.CatalogFileName(), log)
	dSrv := srvdownload.NewDownloadService(a.cfg, repo, log)
	thumbs := thumbnail.NewThumbnailCache(a.cfg.ThumbnailRoot(), &a.cfg.Thumbnails, dSrv, fitzadapter.NewFitzAdapter(log), log)

	var conv upload.Converter
	if a.cfg.Converter.Enabled {
		conv = converter.NewOfficeConverter(&a.cfg.Converter, log)
	}

	validator := upload.NewValidator(a.cfg.Storage.MaxFileSize, a.cfg.AllowedExtensions(), log)
	uSrv := upload.NewUploadService(a.cfg, validator, catalogRepo, thumbs, mdadapter.NewMDAdapter(log), conv, log)
	cSrv := srvcounter.NewCounterService(repo, catalogRepo, log)
	a.maintenance = maintenance.NewMaintenanceService(a.cfg, catalogRepo, thumbs, repo, cSrv, log)

	router := httphandler.NewRouter(a.cfg.Storage.MaxFileSize, &httphandler.Services{
		Upload:      uSrv,
		Download:    dSrv,
		Thumbnails:  thumbs,
		Counters:    cSrv,
		Maintenance: a.maintenance,
	}, log)

	a.srv = &http.Server{
		Addr:    a.cfg.Listen,
		Handler: router,
	}

	go func() {
		log.Info("Start listen", slog.String("addr", a.cfg.Listen), slog.String("url", a.cfg.URL))

		if err := a.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Could not serve", slog.String("listen_addr", a.cfg.Listen), slog.Any("error", err))
			os.Exit(2)
		}
	}()
}

// counterRepository picks redis when a URL is configured and the embedded badger store otherwise.
func (a *App) counterRepository() (counterRepository, error) {
	window := a.cfg.Counter.UniqueWindow

	if a.cfg.Counter.RedisURL == "" {
		return counter.NewBadgerRepository(a.cfg.BadgerDir(), window, a.log)
	}

	opt, err := redis.ParseURL(a.cfg.Counter.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse redis url: %w", err)
	}

	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		return nil, fmt.Errorf("cannot connect to redis: %w", err)
	}

	return counter.NewRedisRepository(rdb, window, a.log), nil
}

func (a *App) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	report, err := a.maintenance.Sweep(ctx, false)
	if err != nil {
		a.log.Error("Cannot sweep", slog.Any("error", err))

		return
	}

	a.log.Info("Sweep done", slog.Int("thumbnails", report.Thumbnails), slog.Int("counters", report.Counters),
		slog.Int("orphan_files", len(report.OrphanFiles)))

	rendered, err := a.maintenance.Warm(ctx, "")
	if err != nil {
		a.log.Error("Cannot warm thumbnails", slog.Any("error", err))

		return
	}

	a.log.Info("Warm done", slog.Int("rendered", rendered))
}

func (a *App) Dump() {
	ctx, cancel := context.WithTimeout(context.Background(), dumpTimeout)
	defer cancel()

	if err := a.maintenance.DumpCounters(ctx, a.cfg.Counter.DumpFileName); err != nil {
		a.log.Error("Cannot dump counters", slog.Any("error", err))
	}
}

// Tree prints the catalog and returns without starting the server.
func (a *App) Tree() error {
	a.init()

	ctx, cancel := context.WithTimeout(context.Background(), treeTimeout)
	defer cancel()

	c, err := catalog.NewCatalogRepository(a.cfg.CatalogFileName(), a.log).Load(ctx)
	if err != nil {
		return err
	}

	fmt.Print(output.CatalogTree(c, a.cfg.CatalogFileName()))

	return nil
}

func (a *App) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if err := a.srv.Shutdown(ctx); err != nil {
		a.log.Error("Cannot shutdown server", slog.Any("error", err))
	}

	if err := a.counters.Close(); err != nil {
		a.log.Error("Cannot close counter repository", slog.Any("error", err))
	}
}
