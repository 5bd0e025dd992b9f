// Package infra provides adapters for the engine's external ports.
package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quietloop/driftd/internal/domain"
)

// FileStore implements domain.SnapshotStore with one JSON file per
// site-day key. Writes are atomic (temp write + rename) so a crash
// mid-write never leaves a corrupt snapshot behind.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

// pathFor maps a key to a file name, replacing anything unsafe.
func (s *FileStore) pathFor(key string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.' || r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, key)
	return filepath.Join(s.dir, safe+".json")
}

// Get returns the snapshot for key, or (nil, nil) if absent.
func (s *FileStore) Get(ctx context.Context, key string) (*domain.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.pathFor(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("corrupt snapshot for %q: %w", key, err)
	}
	return &snap, nil
}

// Set writes the snapshot atomically.
func (s *FileStore) Set(ctx context.Context, key string, snap domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}

	path := s.pathFor(key)

	// Write to temp file first (unique per process to avoid race)
	tmpPath := fmt.Sprintf("%s.%d.tmp", path, os.Getpid())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return err
	}
	return nil
}

// Ensure FileStore implements domain.SnapshotStore.
var _ domain.SnapshotStore = (*FileStore)(nil)
