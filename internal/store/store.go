// Package store provides durable key-addressed document storage for the
// engine. Each key maps to a file under a base directory, written atomically
// so a document is never observable in a partially-written state. Session
// records, cache entries, and decision packs all persist through this layer.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/parleyhq/parley/internal/perrors"
)

// ErrNotFound indicates that no document exists for the given key.
var ErrNotFound = perrors.New("key not found")

// FileStore is a file-backed key-value document store. Keys use "/" as path
// separators and map to files under the base directory.
type FileStore struct {
	baseDir string
	mu      sync.RWMutex
}

// NewFileStore creates a FileStore rooted at the given directory, creating
// it if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, perrors.NewStorageError("failed to create store directory", err).WithOp("init")
	}
	return &FileStore{baseDir: baseDir}, nil
}

// BaseDir returns the root directory of the store.
func (fs *FileStore) BaseDir() string {
	return fs.baseDir
}

// Save persists data under key using an atomic write. The document is
// durable before Save returns.
func (fs *FileStore) Save(ctx context.Context, key string, data []byte) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	path := fs.keyToPath(key)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return perrors.NewStorageError("failed to create directory", err).WithOp("save").WithKey(key)
	}

	if err := atomicWriteFile(path, data, 0644); err != nil {
		return perrors.NewStorageError("atomic write failed", err).WithOp("save").WithKey(key)
	}
	return nil
}

// Load retrieves the document stored under key.
func (fs *FileStore) Load(ctx context.Context, key string) ([]byte, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.keyToPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, perrors.NewStorageError("failed to read document", err).WithOp("load").WithKey(key)
	}
	return data, nil
}

// Delete removes the document stored under key.
func (fs *FileStore) Delete(ctx context.Context, key string) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.keyToPath(key)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return perrors.NewStorageError("failed to delete document", err).WithOp("delete").WithKey(key)
	}
	return nil
}

// List returns all keys with the given prefix, in filesystem walk order.
func (fs *FileStore) List(ctx context.Context, prefix string) ([]string, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	searchDir := fs.baseDir
	if prefix != "" {
		searchDir = filepath.Join(fs.baseDir, prefix)
	}

	var keys []string
	err := filepath.Walk(searchDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(fs.baseDir, path)
			if err != nil {
				return err
			}
			key := filepath.ToSlash(rel)
			if prefix == "" || strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
		return nil
	})

	if err != nil {
		return nil, perrors.NewStorageError("failed to list keys", err).WithOp("list").WithKey(prefix)
	}
	return keys, nil
}

// Exists checks if a key exists without loading its data.
func (fs *FileStore) Exists(ctx context.Context, key string) (bool, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	_, err := os.Stat(fs.keyToPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, perrors.NewStorageError("failed to stat document", err).WithOp("exists").WithKey(key)
	}
	return true, nil
}

// SaveJSON marshals v and persists it under key.
func (fs *FileStore) SaveJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return perrors.NewStorageError("failed to marshal document", err).
			WithOp("save").WithKey(key).WithRetryable(false)
	}
	return fs.Save(ctx, key, data)
}

// LoadJSON loads the document under key and unmarshals it into v.
func (fs *FileStore) LoadJSON(ctx context.Context, key string, v any) error {
	data, err := fs.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return perrors.NewStorageError("failed to unmarshal document", err).
			WithOp("load").WithKey(key).WithRetryable(false)
	}
	return nil
}

// keyToPath converts a storage key to a filesystem path, flattening any
// traversal components so keys cannot escape the base directory.
func (fs *FileStore) keyToPath(key string) string {
	parts := strings.Split(key, "/")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" || p == "." || p == ".." {
			continue
		}
		clean = append(clean, p)
	}
	return filepath.Join(fs.baseDir, filepath.Join(clean...))
}

// atomicWriteFile writes data to a temporary file in the target directory,
// syncs it, then renames it over the destination. The destination is never
// observable half-written.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}

// RetryPolicy bounds retries for transient storage failures.
type RetryPolicy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Backoff is the delay before the first retry; each subsequent retry
	// doubles it.
	Backoff time.Duration
}

// DefaultRetryPolicy returns the policy used for session writes: three
// attempts with a 50ms initial backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, Backoff: 50 * time.Millisecond}
}

// WithRetry runs op, retrying on retryable errors per the policy. The final
// error is returned once attempts are exhausted or the context is done.
func WithRetry(ctx context.Context, policy RetryPolicy, op func() error) error {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}

	var err error
	backoff := policy.Backoff
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if err = op(); err == nil {
			return nil
		}
		if !perrors.IsRetryable(err) {
			return err
		}
	}
	return err
}
