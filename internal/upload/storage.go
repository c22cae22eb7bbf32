package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrObjectExists is returned when a write would replace an existing object.
var ErrObjectExists = errors.New("upload: object already exists")

// BlobStorage persists upload bytes under validator-generated relative paths. Write must never
// replace an existing object and must not leave a partial object at path on failure.
type BlobStorage interface {
	Write(ctx context.Context, path string, r io.Reader) error
	ReadBack(ctx context.Context, path string) (io.ReadCloser, error)
	Delete(ctx context.Context, path string) error
}

// TempDirName is the directory under the storage root that holds in-flight writes.
const TempDirName = ".tmp"

const (
	dirPerm  os.FileMode = 0o750
	filePerm os.FileMode = 0o600
)

// FilesystemStorage stores uploads under a root directory.
type FilesystemStorage struct {
	root string
}

// NewFilesystemStorage prepares root and its temp directory.
func NewFilesystemStorage(root string) (*FilesystemStorage, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("upload: storage root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, TempDirName), dirPerm); err != nil {
		return nil, fmt.Errorf("upload: create storage root: %w", err)
	}
	return &FilesystemStorage{root: root}, nil
}

// Root returns the storage root directory.
func (s *FilesystemStorage) Root() string {
	return s.root
}

// Write streams r to a temp file, syncs it, restricts its mode and links it into place. The
// link fails if path already exists, so nothing is ever overwritten.
func (s *FilesystemStorage) Write(ctx context.Context, path string, r io.Reader) (err error) {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), dirPerm); err != nil {
		return fmt.Errorf("upload: create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Join(s.root, TempDirName), "upload-*.tmp")
	if err != nil {
		return fmt.Errorf("upload: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// The temp name is always removed; on success the data lives on under full.
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, contextReader{ctx: ctx, r: r}); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("upload: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("upload: fsync: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("upload: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("upload: close temp file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Link(tmpPath, full); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrObjectExists
		}
		return fmt.Errorf("upload: place file: %w", err)
	}
	return nil
}

// ReadBack opens the stored object.
func (s *FilesystemStorage) ReadBack(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("upload: open: %w", err)
	}
	return f, nil
}

// Delete removes the stored object. A missing object is not an error.
func (s *FilesystemStorage) Delete(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("upload: delete: %w", err)
	}
	return nil
}

// SweepTemp removes temp files older than maxAge and reports how many were deleted.
func (s *FilesystemStorage) SweepTemp(ctx context.Context, now time.Time, maxAge time.Duration) (int, error) {
	dir := filepath.Join(s.root, TempDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("upload: read temp dir: %w", err)
	}
	removed := 0
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < maxAge {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err == nil {
			removed++
		}
	}
	return removed, nil
}

// resolve maps a relative storage path to an absolute one inside root.
func (s *FilesystemStorage) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) || strings.Contains(path, "\\") {
		return "", fmt.Errorf("upload: invalid storage path %q", path)
	}
	cleaned := filepath.Clean(filepath.FromSlash(path))
	if cleaned != filepath.FromSlash(path) || cleaned == "." || strings.HasPrefix(cleaned, "..") || strings.HasPrefix(cleaned, TempDirName) {
		return "", fmt.Errorf("upload: invalid storage path %q", path)
	}
	return filepath.Join(s.root, cleaned), nil
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var _ BlobStorage = (*FilesystemStorage)(nil)
