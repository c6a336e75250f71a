package counter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	KeyFileStats      = "fs" // HASH. Maps the stable hash of a material path to its download counter. HINCRBY fs {id} 1
	KeyUniqueDownload = "dl" // STRING. dl:{client}:{id}, set via SETNX with EX to count one download per client within the window.

	KeySeparator = ":"

	ScanCount = 1000
)

type redisRepository struct {
	cl     *redis.Client
	window time.Duration
	log    *slog.Logger
}

func NewRedisRepository(cl *redis.Client, window time.Duration, log *slog.Logger) *redisRepository {
	return &redisRepository{
		cl:     cl,
		window: window,
		log:    log.With(slog.String("item", "RedisCounterRepository")),
	}
}

// FirstDownload reports whether clientID has not downloaded id within the unique window yet.
func (r *redisRepository) FirstDownload(ctx context.Context, clientID, id string) (bool, error) {
	if r.window <= 0 || clientID == "" {
		return true, nil
	}

	res, err := r.cl.SetNX(ctx, getKey(KeyUniqueDownload, clientID, id), "1", r.window).Result()
	if err != nil {
		return false, fmt.Errorf("cannot check download of %s: %w", id, err)
	}

	return res, nil
}

func (r *redisRepository) IncCounter(ctx context.Context, id string) (int64, error) {
	counter, err := r.cl.HIncrBy(ctx, KeyFileStats, id, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("cannot increment file %s counter: %w", id, err)
	}

	return counter, nil
}

// GetCounters returns the counter of every id, 0 for ids never downloaded.
func (r *redisRepository) GetCounters(ctx context.Context, ids []string) (map[string]int64, error) {
	counters := make(map[string]int64, len(ids))
	if len(ids) == 0 {
		return counters, nil
	}

	pipe := r.cl.Pipeline()
	for _, id := range ids {
		pipe.HGet(ctx, KeyFileStats, id)
	}

	cmds, err := pipe.Exec(ctx)
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cannot exec pipe: %w", err)
	}

	for i, cmd := range cmds {
		var counter int64
		val, err := cmd.(*redis.StringCmd).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				r.log.Error("Cannot get file counter", slog.String("file_id", ids[i]), slog.Any("error", err))
			}
		} else {
			counter, err = strconv.ParseInt(val, 10, 64)
			if err != nil {
				r.log.Error("Cannot convert counter value", slog.String("file_id", ids[i]), slog.Any("error", err))
				counter = 0
			}
		}

		counters[ids[i]] = counter
	}

	return counters, nil
}

// Prune drops the counters of ids missing from liveIDs and returns how many were dropped.
func (r *redisRepository) Prune(ctx context.Context, liveIDs []string) (int, error) {
	live := make(map[string]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}

	var (
		cursor uint64
		stale  []string
	)

	for {
		fields, nextCursor, err := r.cl.HScan(ctx, KeyFileStats, cursor, "*", ScanCount).Result()
		if err != nil {
			return 0, fmt.Errorf("error scanning counters: %w", err)
		}

		// HSCAN returns field, value pairs
		for i := 0; i+1 < len(fields); i += 2 {
			if _, ok := live[fields[i]]; !ok {
				stale = append(stale, fields[i])
			}
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	if len(stale) == 0 {
		return 0, nil
	}

	if _, err := r.cl.HDel(ctx, KeyFileStats, stale...).Result(); err != nil {
		return 0, fmt.Errorf("cannot delete counters: %w", err)
	}

	r.log.Info("Stale counters removed", slog.Int("count", len(stale)))

	return len(stale), nil
}

func (r *redisRepository) Close() error {
	return r.cl.Close()
}

func getKey(keys ...string) string {
	return strings.Join(keys, KeySeparator)
}
