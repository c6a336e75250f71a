package counter

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// badgerRepository keeps counters in an embedded store when no redis server is configured.
type badgerRepository struct {
	mu     sync.Mutex
	db     *badger.DB
	window time.Duration
	log    *slog.Logger
}

// NewBadgerRepository opens the store in dir. An empty dir keeps everything in memory.
func NewBadgerRepository(dir string, window time.Duration, log *slog.Logger) (*badgerRepository, error) {
	log = log.With(slog.String("item", "BadgerCounterRepository"))

	opts := badger.DefaultOptions(dir).WithLogger(&badgerLogger{log: log})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("cannot open counter store: %w", err)
	}

	return &badgerRepository{
		db:     db,
		window: window,
		log:    log,
	}, nil
}

func (r *badgerRepository) FirstDownload(ctx context.Context, clientID, id string) (bool, error) {
	if r.window <= 0 || clientID == "" {
		return true, nil
	}

	key := []byte(getKey(KeyUniqueDownload, clientID, id))
	first := false

	err := r.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			first = false

			return nil
		}

		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		first = true

		return txn.SetEntry(badger.NewEntry(key, []byte{1}).WithTTL(r.window))
	})
	if err != nil {
		return false, fmt.Errorf("cannot check download of %s: %w", id, err)
	}

	return first, nil
}

func (r *badgerRepository) IncCounter(ctx context.Context, id string) (int64, error) {
	key := counterKey(id)
	var counter int64

	err := r.update(ctx, func(txn *badger.Txn) error {
		current, err := readCounter(txn, key)
		if err != nil {
			return err
		}
		counter = current + 1

		return txn.Set(key, encodeCounter(counter))
	})
	if err != nil {
		return 0, fmt.Errorf("cannot increment file %s counter: %w", id, err)
	}

	return counter, nil
}

func (r *badgerRepository) GetCounters(ctx context.Context, ids []string) (map[string]int64, error) {
	counters := make(map[string]int64, len(ids))

	err := r.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			counter, err := readCounter(txn, counterKey(id))
			if err != nil {
				return err
			}
			counters[id] = counter
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cannot get counters: %w", err)
	}

	return counters, nil
}

func (r *badgerRepository) Prune(ctx context.Context, liveIDs []string) (int, error) {
	live := make(map[string]struct{}, len(liveIDs))
	for _, id := range liveIDs {
		live[id] = struct{}{}
	}

	prefix := []byte(KeyFileStats + KeySeparator)
	var stale [][]byte

	err := r.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, ok := live[strings.TrimPrefix(string(key), string(prefix))]; !ok {
				stale = append(stale, key)
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("error scanning counters: %w", err)
	}

	if len(stale) == 0 {
		return 0, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wb := r.db.NewWriteBatch()
	defer wb.Cancel()

	for _, key := range stale {
		if err := wb.Delete(key); err != nil {
			return 0, fmt.Errorf("cannot delete counters: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("cannot delete counters: %w", err)
	}

	r.log.Info("Stale counters removed", slog.Int("count", len(stale)))

	return len(stale), nil
}

func (r *badgerRepository) Close() error {
	return r.db.Close()
}

// update runs read-modify-write transactions one at a time so increments never conflict.
func (r *badgerRepository) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.db.Update(fn)
}

func counterKey(id string) []byte {
	return []byte(getKey(KeyFileStats, id))
}

func readCounter(txn *badger.Txn, key []byte) (int64, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil
		}

		return 0, err
	}

	var counter int64
	err = item.Value(func(val []byte) error {
		if len(val) != 8 {
			return fmt.Errorf("malformed counter value of %d bytes", len(val))
		}
		counter = int64(binary.BigEndian.Uint64(val))

		return nil
	})

	return counter, err
}

func encodeCounter(counter int64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(counter))

	return buf
}

type badgerLogger struct {
	log *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}
