// Package history persists delivered dictation results for re-copying.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"go.aimuz.me/murmur/internal/types"
)

// DefaultTTL is how long entries are kept when no retention is configured.
const DefaultTTL = 7 * 24 * time.Hour

// ErrNotFound is returned when an entry does not exist or has expired.
var ErrNotFound = errors.New("history: entry not found")

const (
	entryPrefix = "entry/"
	idPrefix    = "id/"
	gcInterval  = 10 * time.Minute
)

// Store is a badger-backed history of results, ordered by creation time.
type Store struct {
	db   *badger.DB
	now  func() time.Time
	stop chan struct{}
	wg   sync.WaitGroup
}

// Open opens or creates a store at path. An empty path keeps everything in memory.
func Open(path string) (*Store, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}

	s := &Store{db: db, now: time.Now, stop: make(chan struct{})}
	if path != "" {
		s.wg.Add(1)
		go s.gcLoop()
	}
	return s, nil
}

func (s *Store) gcLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// Returns ErrNoRewrite when there is nothing to collect.
			for s.db.RunValueLogGC(0.5) == nil {
			}
		}
	}
}

// Close flushes and closes the store.
func (s *Store) Close() error {
	close(s.stop)
	s.wg.Wait()
	return s.db.Close()
}

func entryKey(createdAt int64, id string) []byte {
	return fmt.Appendf(nil, "%s%020d/%s", entryPrefix, createdAt, id)
}

// Add stores r and returns the created entry. Entries expire after ttl;
// ttl <= 0 uses DefaultTTL.
func (s *Store) Add(r types.Result, ttl time.Duration) (types.HistoryEntry, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now := s.now()
	e := types.HistoryEntry{
		ID:        uuid.NewString(),
		Result:    r,
		CreatedAt: now.UnixMilli(),
	}

	data, err := json.Marshal(e)
	if err != nil {
		return types.HistoryEntry{}, fmt.Errorf("marshal entry: %w", err)
	}
	key := entryKey(now.UnixNano(), e.ID)

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(badger.NewEntry(key, data).WithTTL(ttl)); err != nil {
			return err
		}
		return txn.SetEntry(badger.NewEntry([]byte(idPrefix+e.ID), key).WithTTL(ttl))
	})
	if err != nil {
		return types.HistoryEntry{}, fmt.Errorf("store entry: %w", err)
	}
	return e, nil
}

// Get returns the entry with id.
func (s *Store) Get(id string) (types.HistoryEntry, error) {
	var e types.HistoryEntry
	err := s.db.View(func(txn *badger.Txn) error {
		ref, err := txn.Get([]byte(idPrefix + id))
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.HistoryEntry{}, ErrNotFound
	}
	if err != nil {
		return types.HistoryEntry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]types.HistoryEntry, error) {
	entries := []types.HistoryEntry{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// In reverse mode Seek lands on the last key <= the seek key.
		seek := append([]byte(entryPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			var e types.HistoryEntry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				slog.Warn("skip corrupt history entry", "key", string(it.Item().Key()), "error", err)
				continue
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Delete removes the entry with id.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		ref, err := txn.Get([]byte(idPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		key, err := ref.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := txn.Delete(key); err != nil {
			return err
		}
		return txn.Delete([]byte(idPrefix + id))
	})
}

// Clear removes every entry.
func (s *Store) Clear() error {
	if err := s.db.DropPrefix([]byte(entryPrefix), []byte(idPrefix)); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
