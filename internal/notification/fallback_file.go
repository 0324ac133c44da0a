package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one JSON file per failed message in a directory. It is
// the store of last resort when no database is configured.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore creates the directory if needed and returns a store over it.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create fallback dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

// Save writes f atomically via a temp file and rename.
func (s *FileStore) Save(_ context.Context, f FailedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(f)
}

func (s *FileStore) write(f FailedMessage) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fallback record: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create fallback file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write fallback file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close fallback file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(f.ID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename fallback file: %w", err)
	}
	return nil
}

func (s *FileStore) read(id string) (FailedMessage, error) {
	var f FailedMessage
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return f, ErrFallbackNotFound
		}
		return f, fmt.Errorf("read fallback file: %w", err)
	}
	if err := json.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("decode fallback file %s: %w", id, err)
	}
	return f, nil
}

// List returns up to limit records below maxAttempts, oldest first.
func (s *FileStore) List(_ context.Context, limit, maxAttempts int) ([]FailedMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read fallback dir: %w", err)
	}

	out := []FailedMessage{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		f, err := s.read(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return nil, err
		}
		if maxAttempts > 0 && f.Attempts >= maxAttempts {
			continue
		}
		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordAttempt increments the attempt counter of a record.
func (s *FileStore) RecordAttempt(_ context.Context, id, lastErr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.read(id)
	if err != nil {
		return err
	}
	f.Attempts++
	f.LastError = lastErr
	f.UpdatedAt = time.Now().UTC()
	return s.write(f)
}

// Delete removes a record.
func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrFallbackNotFound
		}
		return fmt.Errorf("delete fallback file: %w", err)
	}
	return nil
}

var _ FallbackStore = (*FileStore)(nil)
