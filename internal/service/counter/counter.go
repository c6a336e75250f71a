package counter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jgivc/notehub/internal/entity"
	"github.com/jgivc/notehub/internal/repository/catalog"
	"github.com/jgivc/notehub/internal/util"
)

const (
	serviceName = "counter"
)

type CounterRepository interface {
	GetCounters(ctx context.Context, ids []string) (map[string]int64, error)
}

type CatalogRepository interface {
	Load(ctx context.Context) (*entity.Catalog, error)
}

type counterService struct {
	repo    CounterRepository
	catalog CatalogRepository
	log     *slog.Logger
}

func NewCounterService(repo CounterRepository, catalog CatalogRepository, log *slog.Logger) *counterService {
	return &counterService{
		repo:    repo,
		catalog: catalog,
		log:     log.With(slog.String("service", serviceName)),
	}
}

// GetMaterialCounter returns the download counter of the material registered at publicPath.
func (c *counterService) GetMaterialCounter(ctx context.Context, publicPath string) (*entity.MaterialCounter, error) {
	cat, err := c.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}

	_, m, err := catalog.FindMaterial(cat, publicPath)
	if err != nil {
		return nil, err
	}

	counters, err := c.GetCounters(ctx, []*entity.Material{m})
	if err != nil {
		return nil, err
	}

	return counters[0], nil
}

// GetCounters returns one counter per material, in the same order.
func (c *counterService) GetCounters(ctx context.Context, materials []*entity.Material) ([]*entity.MaterialCounter, error) {
	result := make([]*entity.MaterialCounter, 0, len(materials))
	ids := make([]string, 0, len(materials))
	for _, m := range materials {
		id := util.GetIDFromString(&m.Path)
		ids = append(ids, id)
		result = append(result, &entity.MaterialCounter{ID: id, Title: m.Title, Path: m.Path})
	}

	counters, err := c.repo.GetCounters(ctx, ids)
	if err != nil {
		c.log.Error("Cannot get download counters", slog.Int("count", len(ids)), slog.Any("error", err))

		return nil, fmt.Errorf("cannot get download counters: %w", err)
	}

	for _, mc := range result {
		mc.Counter = counters[mc.ID]
	}

	return result, nil
}
