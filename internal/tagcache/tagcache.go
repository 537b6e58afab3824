// Package tagcache persists the most recently built image tag between CI runs.
// The file lives in a directory the CI provider caches, so the next build can
// pull the previous image and reuse its layers.
package tagcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xa1bed0/cipipe/internal/logs"
)

const lockTimeout = 5 * time.Second

type Cache struct {
	path string
	mu   FSMutex
}

// Open prepares the cache file name inside dir, creating dir if needed.
func Open(dir, name string) (*Cache, error) {
	if dir == "" || name == "" {
		return nil, errors.New("tag cache directory and file name are required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create tag cache dir: %w", err)
	}
	path := filepath.Join(dir, name)
	return &Cache{path: path, mu: NewFSMutex(path + ".lock")}, nil
}

func (c *Cache) Path() string {
	return c.path
}

// Read returns the cached tag. A missing or blank file reports ok == false.
func (c *Cache) Read() (tag string, ok bool, err error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read tag cache: %w", err)
	}
	tag = strings.TrimSpace(string(data))
	return tag, tag != "", nil
}

// Write replaces the cached tag. Concurrent writers on the same cache are
// serialized through a lock file and readers never see a partial file.
func (c *Cache) Write(ctx context.Context, tag string) error {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return errors.New("refusing to cache an empty tag")
	}

	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	if err := c.mu.Lock(lockCtx); err != nil {
		return err
	}
	defer c.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(c.path), filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write tag cache: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(tag + "\n"); err != nil {
		tmp.Close()
		return fmt.Errorf("write tag cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write tag cache: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return fmt.Errorf("write tag cache: %w", err)
	}

	logs.Debugf("tag cache %s now holds %s", c.path, tag)
	return nil
}

// Clear removes the cached tag. Clearing an empty cache is not an error.
func (c *Cache) Clear() error {
	err := os.Remove(c.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear tag cache: %w", err)
	}
	return nil
}
