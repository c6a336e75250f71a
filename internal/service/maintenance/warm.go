package maintenance

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jgivc/notehub/internal/common"
)

type warmResult struct {
	path   string
	cached bool
}

// Warm renders the missing thumbnails of every material in format with the configured number of workers.
// It returns how many were rendered. Materials that cannot be rendered are logged and skipped.
func (m *MaintenanceService) Warm(ctx context.Context, format string) (int, error) {
	if !m.running.CompareAndSwap(false, true) {
		return 0, common.ErrMaintenanceAlreadyRunning
	}
	defer m.running.Store(false)

	c, err := m.catalog.Load(ctx)
	if err != nil {
		return 0, err
	}

	paths := c.MaterialPaths()
	if len(paths) == 0 {
		return 0, nil
	}

	in := make(chan string, len(paths))
	out := make(chan warmResult, len(paths))

	for _, p := range paths {
		in <- p
	}
	close(in)

	workers := max(m.workers, 1)

	var wg sync.WaitGroup
	wg.Add(workers)
	for n := 0; n < workers; n++ {
		go m.worker(ctx, n, format, in, out, &wg)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	rendered := 0
	for res := range out {
		if !res.cached {
			rendered++
		}
	}

	m.log.Info("Thumbnails warmed", slog.Int("materials", len(paths)), slog.Int("rendered", rendered))

	return rendered, ctx.Err()
}

func (m *MaintenanceService) worker(ctx context.Context, n int, format string, in chan string, out chan warmResult, wg *sync.WaitGroup) {
	defer wg.Done()

	log := m.log.With(slog.Int("worker_id", n))
	log.Debug("Started")

	for path := range in {
		if ctx.Err() != nil {
			log.Info("Interrupted")

			return
		}

		thumb, err := m.thumbs.Generate(ctx, path, format)
		if err != nil {
			log.Warn("Cannot render thumbnail", slog.String("path", path), slog.Any("error", err))

			continue
		}

		select {
		case <-ctx.Done():
			log.Info("Interrupted")

			return
		case out <- warmResult{path: path, cached: thumb.Cached}:
		}
	}

	log.Debug("Done")
}
