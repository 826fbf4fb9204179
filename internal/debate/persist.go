package debate

import (
	"context"
	"fmt"

	"github.com/parleyhq/parley/internal/perrors"
	"github.com/parleyhq/parley/internal/store"
)

// Sessions is the file-backed Store implementation. Records live under
// sessions/<id>.json in the underlying document store; writes go through
// the store's bounded retry so a transient filesystem error does not kill
// a debate mid-transition.
type Sessions struct {
	fs    *store.FileStore
	retry store.RetryPolicy
}

// NewSessions creates a session store over the given document store.
func NewSessions(fs *store.FileStore) *Sessions {
	return &Sessions{fs: fs, retry: store.DefaultRetryPolicy()}
}

// SaveSession persists a session record durably.
func (s *Sessions) SaveSession(ctx context.Context, rec Record) error {
	return store.WithRetry(ctx, s.retry, func() error {
		return s.fs.SaveJSON(ctx, sessionKey(rec.ID), rec)
	})
}

// LoadSession retrieves a session record by ID.
func (s *Sessions) LoadSession(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.fs.LoadJSON(ctx, sessionKey(id), &rec)
	if perrors.Is(err, store.ErrNotFound) {
		return Record{}, perrors.NewSessionError("no such session", perrors.ErrSessionNotFound).
			WithSessionID(id)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// ListSessions returns the IDs of all persisted sessions.
func (s *Sessions) ListSessions(ctx context.Context) ([]string, error) {
	keys, err := s.fs.List(ctx, "sessions")
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(keys))
	for _, k := range keys {
		var id string
		if _, err := fmt.Sscanf(k, "sessions/%s", &id); err == nil {
			if len(id) > 5 && id[len(id)-5:] == ".json" {
				ids = append(ids, id[:len(id)-5])
			}
		}
	}
	return ids, nil
}

// DeleteSession removes a persisted session record.
func (s *Sessions) DeleteSession(ctx context.Context, id string) error {
	err := s.fs.Delete(ctx, sessionKey(id))
	if perrors.Is(err, store.ErrNotFound) {
		return perrors.NewSessionError("no such session", perrors.ErrSessionNotFound).
			WithSessionID(id)
	}
	return err
}

func sessionKey(id string) string {
	return "sessions/" + id + ".json"
}
