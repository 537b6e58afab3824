package ui

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// RunLogFile is the on-disk log of one run. Logger writes one line per call,
// each gets a timestamp here. The file is fsynced on an interval so a CI
// runner that uploads it after a crash still sees the last lines.
type RunLogFile struct {
	mu    sync.Mutex
	f     *os.File
	dirty bool
	now   func() time.Time

	stop      chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

func OpenRunLog(path string, syncEvery time.Duration) (*RunLogFile, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open run log: %w", err)
	}
	if syncEvery <= 0 {
		syncEvery = 200 * time.Millisecond
	}

	r := &RunLogFile{
		f:       f,
		now:     time.Now,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go r.syncLoop(syncEvery)
	return r, nil
}

func (r *RunLogFile) syncLoop(every time.Duration) {
	defer close(r.stopped)

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			_ = r.Sync()
		case <-r.stop:
			return
		}
	}
}

func (r *RunLogFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := fmt.Fprintf(r.f, "[%s] %s", r.now().Format(timestampLayout), p); err != nil {
		return 0, err
	}
	r.dirty = true
	return len(p), nil
}

// Sync flushes the file if anything was written since the last sync.
func (r *RunLogFile) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.dirty {
		return nil
	}
	r.dirty = false
	return r.f.Sync()
}

func (r *RunLogFile) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stop)
		<-r.stopped
		if err = r.Sync(); err != nil {
			_ = r.f.Close()
			return
		}
		err = r.f.Close()
	})
	return err
}
