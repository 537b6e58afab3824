package tagcache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestReadMissingAndBlank(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "nested"), "old_docker_tag")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if tag, ok, err := c.Read(); err != nil || ok || tag != "" {
		t.Fatalf("missing file: got (%q, %v, %v)", tag, ok, err)
	}

	if err := os.WriteFile(c.Path(), []byte(" \n\t"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := c.Read(); err != nil || ok {
		t.Fatalf("blank file should read as missing, got ok=%v err=%v", ok, err)
	}
}

func TestWriteReadClear(t *testing.T) {
	c, err := Open(t.TempDir(), "old_docker_tag")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()

	if err := c.Write(ctx, "quay.io/org/app-build:abc-dev"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := c.Write(ctx, "quay.io/org/app-build:def-dev\n"); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	raw, err := os.ReadFile(c.Path())
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != "quay.io/org/app-build:def-dev\n" {
		t.Fatalf("unexpected file content %q", raw)
	}

	tag, ok, err := c.Read()
	if err != nil || !ok || tag != "quay.io/org/app-build:def-dev" {
		t.Fatalf("Read: got (%q, %v, %v)", tag, ok, err)
	}

	if _, err := os.Stat(c.Path() + ".lock"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("lock file should be released, stat err=%v", err)
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear on empty cache: %v", err)
	}
	if _, ok, _ := c.Read(); ok {
		t.Fatal("cache should be empty after Clear")
	}
}

func TestWriteRejectsEmptyTag(t *testing.T) {
	c, err := Open(t.TempDir(), "tag")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Write(context.Background(), "  "); err == nil {
		t.Fatal("expected error for empty tag")
	}
}

func TestWriteWaitsForHeldLock(t *testing.T) {
	c, err := Open(t.TempDir(), "tag")
	if err != nil {
		t.Fatal(err)
	}

	held := NewFSMutex(c.Path() + ".lock")
	if err := held.Lock(context.Background()); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := c.Write(ctx, "img:1"); !errors.Is(err, ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout, got %v", err)
	}

	held.Unlock()
	if err := c.Write(context.Background(), "img:1"); err != nil {
		t.Fatalf("Write after unlock: %v", err)
	}
}

func TestStaleLockIsBroken(t *testing.T) {
	c, err := Open(t.TempDir(), "tag")
	if err != nil {
		t.Fatal(err)
	}

	lock := c.Path() + ".lock"
	if err := os.WriteFile(lock, []byte("1\n0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * lockStaleAfter)
	if err := os.Chtimes(lock, old, old); err != nil {
		t.Fatal(err)
	}

	if err := c.Write(context.Background(), "img:2"); err != nil {
		t.Fatalf("Write with stale lock: %v", err)
	}
}
