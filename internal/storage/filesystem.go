package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotExist is returned when a requested artifact is absent.
var ErrNotExist = errors.New("storage: artifact not found")

// FileStore keeps artifacts in one flat directory on the local filesystem.
// Source photos, generated images and videos each get their own store.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// Path returns the absolute-or-relative filesystem path of name.
func (s *FileStore) Path(name string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	clean, err := sanitizeName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, clean), nil
}

// Write persists data under name and returns the canonical name.
func (s *FileStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	full, err := s.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return filepath.Base(full), nil
}

// Read returns the bytes stored under name.
func (s *FileStore) Read(name string) ([]byte, error) {
	full, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, name)
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read file: %w", err)
	}
	return data, nil
}

// Exists reports whether name is a regular file in the store.
func (s *FileStore) Exists(name string) bool {
	full, err := s.Path(name)
	if err != nil {
		return false
	}
	info, err := os.Stat(full)
	return err == nil && info.Mode().IsRegular()
}

// LatestMatching returns the most recently modified file whose name matches
// the glob pattern, or ErrNotExist when nothing matches.
func (s *FileStore) LatestMatching(pattern string) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return "", fmt.Errorf("storage: bad pattern: %w", err)
	}
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return "", fmt.Errorf("storage: list directory: %w", err)
	}
	var (
		latest  string
		latestT time.Time
	)
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if ok, _ := filepath.Match(pattern, entry.Name()); !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestT) {
			latest, latestT = entry.Name(), info.ModTime()
		}
	}
	if latest == "" {
		return "", fmt.Errorf("%w: %s", ErrNotExist, pattern)
	}
	return latest, nil
}

// sanitizeName normalizes a key and refuses anything that is not a bare file
// name inside the store.
func sanitizeName(name string) (string, error) {
	cleaned, err := sanitizeKey(name)
	if err != nil {
		return "", err
	}
	if strings.Contains(cleaned, "/") {
		return "", errors.New("storage: nested keys are not allowed")
	}
	return cleaned, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}
