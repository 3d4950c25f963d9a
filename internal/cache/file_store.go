package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileExtension = ".json"

// FileStore keeps one JSON file per key in a directory.
type FileStore struct {
	rootDir string
}

// NewFileStore creates the cache directory if it does not exist yet.
func NewFileStore(cacheDirectory string) (*FileStore, error) {
	if err := os.MkdirAll(cacheDirectory, 0755); err != nil {
		return nil, fmt.Errorf("os.MkdirAll > %w", err)
	}
	return &FileStore{
		rootDir: cacheDirectory,
	}, nil
}

func (f *FileStore) filePath(key string) string {
	return filepath.Join(f.rootDir, url.PathEscape(key)+fileExtension)
}

func (f *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	file, err := os.Open(f.filePath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("os.Open > %w", err)
	}
	defer func() {
		_ = file.Close()
	}()

	contents, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll > %w", err)
	}
	return contents, nil
}

// Set writes through a temporary file so that readers never see a partial entry.
func (f *FileStore) Set(_ context.Context, key string, value []byte) error {
	file, err := os.CreateTemp(f.rootDir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("os.CreateTemp > %w", err)
	}
	tmpPath := file.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	if _, err := file.Write(value); err != nil {
		_ = file.Close()
		return fmt.Errorf("file.Write > %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("file.Close > %w", err)
	}
	if err := os.Rename(tmpPath, f.filePath(key)); err != nil {
		return fmt.Errorf("os.Rename > %w", err)
	}
	return nil
}

func (f *FileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(f.filePath(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("os.Remove > %w", err)
	}
	return nil
}

func (f *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	files, err := os.ReadDir(f.rootDir)
	if err != nil {
		return nil, fmt.Errorf("os.ReadDir > %w", err)
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasSuffix(name, fileExtension) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileExtension))
		if err != nil {
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
