package tagcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

const (
	lockStaleAfter = 10 * time.Minute
	lockRetryDelay = 50 * time.Millisecond
)

// ErrLockTimeout is returned when the lock file stays held past the deadline.
var ErrLockTimeout = errors.New("tag cache is locked by another process")

type FSMutex interface {
	Lock(ctx context.Context) error
	Unlock()
}

type fsMutex struct {
	lockPath string
	locked   bool
}

func NewFSMutex(lockPath string) FSMutex {
	return &fsMutex{lockPath: lockPath}
}

func (mu *fsMutex) Lock(ctx context.Context) error {
	for {
		f, err := os.OpenFile(mu.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			_, _ = fmt.Fprintf(f, "%d\n%d\n", os.Getpid(), time.Now().Unix())
			_ = f.Close()
			mu.locked = true
			return nil
		}
		if !errors.Is(err, os.ErrExist) {
			return err
		}

		info, statErr := os.Stat(mu.lockPath)
		if statErr != nil {
			// released between the two calls
			if errors.Is(statErr, os.ErrNotExist) {
				continue
			}
			return statErr
		}
		if time.Since(info.ModTime()) > lockStaleAfter {
			_ = os.Remove(mu.lockPath)
			continue
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", ErrLockTimeout, mu.lockPath)
		case <-time.After(lockRetryDelay):
		}
	}
}

func (mu *fsMutex) Unlock() {
	if !mu.locked {
		return
	}
	_ = os.Remove(mu.lockPath)
	mu.locked = false
}
