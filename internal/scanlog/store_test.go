package scanlog

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	runID, err := store.BeginRun(ctx, []string{"/library/movies"}, "balanced")
	if err != nil {
		t.Fatal(err)
	}

	rec := GroupRecord{
		RunID:      runID,
		Method:     "hash",
		Score:      1.0,
		KeepPath:   "/library/movies/a.mkv",
		LoserPaths: []string{"/library/movies/a-copy.mkv"},
		LoserBytes: 4 << 30,
	}
	if err := store.RecordGroup(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, runID, 120, 1, 4<<30, StatusCompleted); err != nil {
		t.Fatal(err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs = %d", len(runs))
	}
	run := runs[0]
	if run.ID != runID || run.Status != StatusCompleted || run.FilesScanned != 120 {
		t.Fatalf("run = %+v", run)
	}
	if len(run.Roots) != 1 || run.Roots[0] != "/library/movies" {
		t.Fatalf("roots = %v", run.Roots)
	}
	if run.FinishedAt.IsZero() || run.FinishedAt.Before(run.StartedAt) {
		t.Fatalf("timestamps: started=%v finished=%v", run.StartedAt, run.FinishedAt)
	}

	groups, err := store.GroupsForRun(ctx, runID)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("groups = %d", len(groups))
	}
	got := groups[0]
	if got.KeepPath != rec.KeepPath || got.LoserBytes != rec.LoserBytes || len(got.LoserPaths) != 1 {
		t.Fatalf("group = %+v", got)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.BeginRun(ctx, []string{"/a"}, "fast")
	if err != nil {
		t.Fatal(err)
	}
	second, err := store.BeginRun(ctx, []string{"/b"}, "fast")
	if err != nil {
		t.Fatal(err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs = %d", len(runs))
	}
	if runs[0].ID != second || runs[1].ID != first {
		t.Fatalf("order: %s then %s", runs[0].ID, runs[1].ID)
	}

	latest, ok, err := store.LatestRun(ctx)
	if err != nil || !ok {
		t.Fatalf("latest: ok=%v err=%v", ok, err)
	}
	if latest.ID != second {
		t.Fatalf("latest = %s, want %s", latest.ID, second)
	}
}

func TestReopenPreservesHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.db")
	ctx := context.Background()

	store, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.BeginRun(ctx, []string{"/library"}, "thorough"); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	runs, err := reopened.ListRuns(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("runs after reopen = %d", len(runs))
	}
}
