package counter

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const redisURLEnv = "NOTEHUB_TEST_REDIS_URL"

type repository interface {
	FirstDownload(ctx context.Context, clientID, id string) (bool, error)
	IncCounter(ctx context.Context, id string) (int64, error)
	GetCounters(ctx context.Context, ids []string) (map[string]int64, error)
	Prune(ctx context.Context, liveIDs []string) (int, error)
	Close() error
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newBadger(t *testing.T, window time.Duration) repository {
	t.Helper()

	repo, err := NewBadgerRepository("", window, discard())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, repo.Close()) })

	return repo
}

func newRedis(t *testing.T, window time.Duration) repository {
	t.Helper()

	url, ok := os.LookupEnv(redisURLEnv)
	if !ok {
		t.Skipf("%s is not set", redisURLEnv)
	}

	opt, err := redis.ParseURL(url)
	require.NoError(t, err)

	cl := redis.NewClient(opt)
	ctx := context.Background()
	require.NoError(t, cl.Ping(ctx).Err())
	require.NoError(t, cl.Del(ctx, KeyFileStats).Err())

	repo := NewRedisRepository(cl, window, discard())
	t.Cleanup(func() {
		cl.Del(context.Background(), KeyFileStats)
		require.NoError(t, repo.Close())
	})

	return repo
}

func TestRepositories(t *testing.T) {
	backends := []struct {
		name string
		new  func(t *testing.T, window time.Duration) repository
	}{
		{name: "badger", new: newBadger},
		{name: "redis", new: newRedis},
	}

	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			t.Run("Counters", func(t *testing.T) { testCounters(t, b.new(t, 0)) })
			t.Run("Concurrent increments", func(t *testing.T) { testConcurrent(t, b.new(t, 0)) })
			t.Run("Unique window", func(t *testing.T) { testUniqueWindow(t, b.new(t, time.Hour)) })
			t.Run("Prune", func(t *testing.T) { testPrune(t, b.new(t, 0)) })
		})
	}
}

func testCounters(t *testing.T, repo repository) {
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		counter, err := repo.IncCounter(ctx, "a")
		require.NoError(t, err)
		require.Equal(t, int64(i), counter)
	}

	_, err := repo.IncCounter(ctx, "b")
	require.NoError(t, err)

	counters, err := repo.GetCounters(ctx, []string{"a", "b", "never"})
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"a": 3, "b": 1, "never": 0}, counters)

	counters, err = repo.GetCounters(ctx, nil)
	require.NoError(t, err)
	require.Empty(t, counters)
}

func testConcurrent(t *testing.T, repo repository) {
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncCounter(ctx, "hot")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	counters, err := repo.GetCounters(ctx, []string{"hot"})
	require.NoError(t, err)
	require.Equal(t, int64(n), counters["hot"])
}

func testUniqueWindow(t *testing.T, repo repository) {
	ctx := context.Background()
	client := uuid.NewString()

	first, err := repo.FirstDownload(ctx, client, "a")
	require.NoError(t, err)
	require.True(t, first)

	first, err = repo.FirstDownload(ctx, client, "a")
	require.NoError(t, err)
	require.False(t, first)

	first, err = repo.FirstDownload(ctx, client, "b")
	require.NoError(t, err)
	require.True(t, first)

	first, err = repo.FirstDownload(ctx, "", "a")
	require.NoError(t, err)
	require.True(t, first, "anonymous clients are always counted")
}

func testPrune(t *testing.T, repo repository) {
	ctx := context.Background()

	for _, id := range []string{"keep", "drop1", "drop2"} {
		_, err := repo.IncCounter(ctx, id)
		require.NoError(t, err)
	}

	removed, err := repo.Prune(ctx, []string{"keep"})
	require.NoError(t, err)
	require.Equal(t, 2, removed)

	counters, err := repo.GetCounters(ctx, []string{"keep", "drop1"})
	require.NoError(t, err)
	require.Equal(t, map[string]int64{"keep": 1, "drop1": 0}, counters)

	removed, err = repo.Prune(ctx, []string{"keep"})
	require.NoError(t, err)
	require.Equal(t, 0, removed)
}
