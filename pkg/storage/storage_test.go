package storage

import (
	"os"
	"testing"
	"time"

	"github.com/drewrad8/strategos/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBoltStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendAndReadHistoryInOrder(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	if err := s.AppendHistory("w1", 1, []byte("a"), now); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if err := s.AppendHistory("w1", 2, []byte("b"), now); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if err := s.AppendHistory("w1", 3, []byte("c"), now); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	entries, err := s.History("w1", 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, want := range []string{"a", "b", "c"} {
		if string(entries[i].Bytes) != want {
			t.Errorf("entry %d: expected %q, got %q", i, want, entries[i].Bytes)
		}
	}
}

func TestHistoryRespectsOffsetAndLimit(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	for i := uint64(1); i <= 5; i++ {
		if err := s.AppendHistory("w1", i, []byte{byte('0' + i)}, now); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	entries, err := s.History("w1", 2, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Seq != 3 || entries[1].Seq != 4 {
		t.Errorf("expected seqs [3 4], got [%d %d]", entries[0].Seq, entries[1].Seq)
	}
}

func TestHistoryIsolatedByWorker(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	if err := s.AppendHistory("w1", 1, []byte("one"), now); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}
	if err := s.AppendHistory("w2", 1, []byte("two"), now); err != nil {
		t.Fatalf("AppendHistory: %v", err)
	}

	entries, err := s.History("w1", 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(entries) != 1 || string(entries[0].Bytes) != "one" {
		t.Fatalf("expected only w1's entry, got %+v", entries)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := newTestStore(t)
	cp := &types.Checkpoint{
		ID:          "cp1",
		Label:       "build-api",
		Project:     "strategos",
		WorkerID:    "deadbeef",
		CreatedAt:   time.Now(),
		FinalHealth: types.HealthHealthy,
	}
	if err := s.SaveCheckpoint(cp); err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	got, err := s.GetCheckpoint("cp1")
	if err != nil {
		t.Fatalf("GetCheckpoint: %v", err)
	}
	if got.Label != "build-api" {
		t.Errorf("expected label %q, got %q", "build-api", got.Label)
	}

	all, err := s.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 checkpoint, got %d", len(all))
	}
}

func TestGetCheckpointNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetCheckpoint("missing"); err == nil {
		t.Error("expected error for missing checkpoint")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	workers := []*types.Worker{
		{ID: "abcd1234", Label: "worker-a", RalphToken: "secret-token"},
	}
	if err := SaveSnapshot(dir, workers); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := LoadSnapshot(dir)
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 1 || got[0].ID != "abcd1234" {
		t.Fatalf("expected round-tripped worker abcd1234, got %+v", got)
	}
	if got[0].RalphToken != "secret-token" {
		t.Error("expected snapshot to preserve RalphToken for internal restart recovery")
	}
}

func TestLoadSnapshotMissingFileReturnsNil(t *testing.T) {
	got, err := LoadSnapshot(t.TempDir())
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil workers for missing snapshot, got %+v", got)
	}
}

func TestReflectionQueryFiltersAndOrders(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	low := &Reflection{ID: "r1", TaskType: "code", ProjectID: "p1", Importance: 0.4, CreatedAt: now}
	high := &Reflection{ID: "r2", TaskType: "code", ProjectID: "p1", Importance: 0.9, CreatedAt: now.Add(-time.Hour)}
	tooLow := &Reflection{ID: "r3", TaskType: "code", ProjectID: "p1", Importance: 0.1, CreatedAt: now}
	otherProject := &Reflection{ID: "r4", TaskType: "code", ProjectID: "p2", Importance: 0.9, CreatedAt: now}
	for _, r := range []*Reflection{low, high, tooLow, otherProject} {
		if err := s.SaveReflection(r); err != nil {
			t.Fatalf("SaveReflection: %v", err)
		}
	}

	got, err := s.QueryReflections("code", "p1", 0.3, 3)
	if err != nil {
		t.Fatalf("QueryReflections: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 reflections above threshold, got %d", len(got))
	}
	if got[0].ID != "r2" {
		t.Errorf("expected highest-importance reflection first, got %q", got[0].ID)
	}
}

func TestReinforceReflectionIncreasesImportance(t *testing.T) {
	s := newTestStore(t)
	r := &Reflection{ID: "r1", TaskType: "code", ProjectID: "p1", Importance: 0.5, CreatedAt: time.Now()}
	if err := s.SaveReflection(r); err != nil {
		t.Fatalf("SaveReflection: %v", err)
	}

	if err := s.ReinforceReflection("r1", 0.1); err != nil {
		t.Fatalf("ReinforceReflection: %v", err)
	}

	got, err := s.QueryReflections("code", "p1", 0, 10)
	if err != nil {
		t.Fatalf("QueryReflections: %v", err)
	}
	if len(got) != 1 || got[0].Importance < 0.59 {
		t.Fatalf("expected reinforced importance ~0.6, got %+v", got)
	}
}

func TestLoadSnapshotRejectsNewerSchemaVersion(t *testing.T) {
	dir := t.TempDir()
	if err := SaveSnapshot(dir, nil); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	// Manually bump the on-disk schema version past what this binary
	// understands and confirm LoadSnapshot refuses it.
	path := snapshotPath(dir)
	raw := []byte(`{"schemaVersion": 999, "workers": []}`)
	if err := os.WriteFile(path, raw, 0600); err != nil {
		t.Fatalf("os.WriteFile: %v", err)
	}

	_, err := LoadSnapshot(dir)
	if err == nil {
		t.Fatal("expected error for unsupported schema version")
	}
	if _, ok := err.(*ErrUnsupportedSnapshotVersion); !ok {
		t.Errorf("expected *ErrUnsupportedSnapshotVersion, got %T: %v", err, err)
	}
}
