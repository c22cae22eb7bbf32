package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore appends entries as JSON lines to a local file.
type FileStore struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
}

// OpenFileStore opens (or creates) path in append-only mode.
func OpenFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("audit: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit: open log file: %w", err)
	}
	return &FileStore{file: f, encoder: json.NewEncoder(f)}, nil
}

// Append writes one line per entry.
func (s *FileStore) Append(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("audit: file store closed")
	}
	if err := s.encoder.Encode(entry); err != nil {
		return fmt.Errorf("audit: write log file: %w", err)
	}
	return nil
}

// Close flushes and closes the file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Sync()
	if cerr := s.file.Close(); err == nil {
		err = cerr
	}
	s.file = nil
	return err
}

// MultiStore fans each entry out to every store, continuing past failures. It reports the
// first error seen.
type MultiStore struct {
	stores []Store
}

// NewMultiStore combines stores; nil stores are skipped.
func NewMultiStore(stores ...Store) *MultiStore {
	kept := make([]Store, 0, len(stores))
	for _, s := range stores {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &MultiStore{stores: kept}
}

// Append writes to every store.
func (m *MultiStore) Append(ctx context.Context, entry Entry) error {
	var firstErr error
	for _, s := range m.stores {
		if err := s.Append(ctx, entry); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
