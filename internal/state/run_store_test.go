package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func openTestStore(t *testing.T) *RunStore {
	t.Helper()

	store, err := OpenRunStore(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenRunStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunStoreRecordAndList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	records := []JobRecord{
		{RunID: "r1", Job: "build", Image: "img:1", Status: JobSuccess, StartedAt: base, Duration: 90 * time.Second},
		{RunID: "r1", Job: "test", Image: "img:1", Status: JobFailed, Error: "exit 1", StartedAt: base.Add(2 * time.Minute), Duration: 30 * time.Second},
		{RunID: "r1", Job: "docs", Image: "img:1", Status: JobCanceled, StartedAt: base.Add(2 * time.Minute), Duration: time.Second},
		{RunID: "r2", Job: "build", Image: "img:2", Status: JobSuccess, StartedAt: base.Add(time.Hour), Duration: time.Minute},
	}
	for _, rec := range records {
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	latest, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if diff := cmp.Diff([]JobRecord{records[3], records[2]}, latest); diff != "" {
		t.Fatalf("List mismatch (-want +got):\n%s", diff)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List all: %v", err)
	}
	if len(all) != len(records) {
		t.Fatalf("expected %d records, got %d", len(records), len(all))
	}

	run, err := store.ListRun(ctx, "r1")
	if err != nil {
		t.Fatalf("ListRun: %v", err)
	}
	if diff := cmp.Diff(records[:3], run); diff != "" {
		t.Fatalf("ListRun mismatch (-want +got):\n%s", diff)
	}
}

func TestRunStoreDeleteBefore(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Millisecond)
	for i, age := range []time.Duration{48 * time.Hour, 2 * time.Hour, 0} {
		rec := JobRecord{RunID: "r", Job: "build", Image: "img", Status: JobSuccess, StartedAt: now.Add(-age)}
		rec.Job += string(rune('a' + i))
		if err := store.Record(ctx, rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	n, err := store.DeleteBefore(ctx, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 deleted row, got %d", n)
	}

	left, err := store.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 2 {
		t.Fatalf("expected 2 rows left, got %d", len(left))
	}
}

func TestOpenRunStoreCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	store, err := OpenRunStore(context.Background(), path)
	if err != nil {
		t.Fatalf("OpenRunStore: %v", err)
	}
	if err := store.Record(context.Background(), JobRecord{RunID: "r", Job: "build", Image: "img", Status: JobSuccess}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenRunStore(context.Background(), path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	rows, err := reopened.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected the record to survive a reopen, got %d rows", len(rows))
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
