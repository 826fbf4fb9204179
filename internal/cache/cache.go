// Package cache stores completed debate results keyed by request
// fingerprint. A repeat debate over an equivalent request within the TTL is
// served from here with zero provider invocations. Expiry is checked on
// read, so a stale entry is never served even if eviction lags; eviction
// itself is lazy.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/debate"
	"github.com/parleyhq/parley/internal/perrors"
	"github.com/parleyhq/parley/internal/store"
)

// DefaultTTL is how long a cached debate result stays eligible.
const DefaultTTL = 5 * time.Minute

// Entry is one cached debate outcome.
type Entry struct {
	Fingerprint string        `json:"fingerprint"`
	Session     debate.Record `json:"session"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl_ns"`
}

// Expired reports whether the entry is past its TTL at the given time.
func (e *Entry) Expired(now time.Time) bool {
	return now.Sub(e.CreatedAt) >= e.TTL
}

// Stats summarizes cache contents at a point in time.
type Stats struct {
	Total   int `json:"total"`
	Valid   int `json:"valid"`
	Expired int `json:"expired"`
}

// Store is a file-backed TTL cache of debate results. A single mutex guards
// the read-evict-write sequence per store, giving last-write-wins semantics
// for concurrent puts on the same fingerprint.
type Store struct {
	mu         sync.Mutex
	fs         *store.FileStore
	defaultTTL time.Duration
	now        func() time.Time
}

// New creates a cache over the given document store. A non-positive ttl
// falls back to DefaultTTL.
func New(fs *store.FileStore, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		fs:         fs,
		defaultTTL: ttl,
		now:        time.Now,
	}
}

// Get returns the cached entry for a fingerprint if one exists and is still
// within its TTL. Expired entries are evicted on the spot and reported as
// absent. Corrupt entries are treated the same way.
func (s *Store) Get(ctx context.Context, fingerprint string) (*Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var entry Entry
	err := s.fs.LoadJSON(ctx, cacheKey(fingerprint), &entry)
	if perrors.Is(err, store.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		if !perrors.IsRetryable(err) {
			// Unreadable entry: drop it rather than poison every lookup.
			_ = s.fs.Delete(ctx, cacheKey(fingerprint))
			return nil, false, nil
		}
		return nil, false, err
	}

	if entry.Expired(s.now()) {
		_ = s.fs.Delete(ctx, cacheKey(fingerprint))
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put stores a completed session record under its fingerprint. A zero ttl
// uses the store default. Last write wins.
func (s *Store) Put(ctx context.Context, fingerprint string, rec debate.Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	entry := Entry{
		Fingerprint: fingerprint,
		Session:     rec,
		CreatedAt:   s.now().UTC(),
		TTL:         ttl,
	}
	return s.fs.SaveJSON(ctx, cacheKey(fingerprint), entry)
}

// ClearExpired removes every expired entry and returns how many were
// evicted.
func (s *Store) ClearExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.fs.List(ctx, "cache")
	if err != nil {
		return 0, err
	}

	now := s.now()
	removed := 0
	for _, key := range keys {
		var entry Entry
		if err := s.fs.LoadJSON(ctx, key, &entry); err != nil {
			// Corrupt or vanished entry counts as evictable.
			if s.fs.Delete(ctx, key) == nil {
				removed++
			}
			continue
		}
		if entry.Expired(now) {
			if s.fs.Delete(ctx, key) == nil {
				removed++
			}
		}
	}
	return removed, nil
}

// Clear removes all entries and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.fs.List(ctx, "cache")
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, key := range keys {
		if s.fs.Delete(ctx, key) == nil {
			removed++
		}
	}
	return removed, nil
}

// CacheStats counts total, valid, and expired entries without evicting.
func (s *Store) CacheStats(ctx context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys, err := s.fs.List(ctx, "cache")
	if err != nil {
		return Stats{}, err
	}

	now := s.now()
	stats := Stats{Total: len(keys)}
	for _, key := range keys {
		var entry Entry
		if err := s.fs.LoadJSON(ctx, key, &entry); err != nil {
			stats.Expired++
			continue
		}
		if entry.Expired(now) {
			stats.Expired++
		} else {
			stats.Valid++
		}
	}
	return stats, nil
}

func cacheKey(fingerprint string) string {
	return "cache/" + fingerprint + ".json"
}
