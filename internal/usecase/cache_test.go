package usecase

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"clipfind/internal/domain"
)

func TestDiffFindsNewImages(t *testing.T) {
	manager, _ := newTestManager(t)
	folder := t.TempDir()
	writePNG(t, filepath.Join(folder, "a.png"), 1)
	writePNG(t, filepath.Join(folder, "b.png"), 2)

	pending, err := manager.Diff([]string{folder}, testModel)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending images, got %d", len(pending))
	}
}

func TestDiffIdempotent(t *testing.T) {
	manager, _ := newTestManager(t)
	folder := t.TempDir()
	writePNG(t, filepath.Join(folder, "a.png"), 1)
	writePNG(t, filepath.Join(folder, "b.png"), 2)

	first, err := manager.Diff([]string{folder}, testModel)
	if err != nil {
		t.Fatal(err)
	}
	second, err := manager.Diff([]string{folder}, testModel)
	if err != nil {
		t.Fatal(err)
	}

	if len(first) != len(second) {
		t.Fatalf("expected identical pending sets, got %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("pending sets differ at %d: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestCommitThenLoad(t *testing.T) {
	manager, _ := newTestManager(t)
	folder := t.TempDir()
	writePNG(t, filepath.Join(folder, "a.png"), 1)

	pending, err := manager.Diff([]string{folder}, testModel)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending image, got %d", len(pending))
	}

	rec := domain.EmbeddingRecord{
		Path:        pending[0].Path,
		Fingerprint: pending[0].Fingerprint,
		Vector:      unitVec(0),
		CreatedAt:   time.Now(),
	}
	if err := manager.Commit(testModel, []domain.EmbeddingRecord{rec}); err != nil {
		t.Fatal(err)
	}

	snap, err := manager.Load(testModel)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", snap.Len())
	}
	got, ok := snap.Lookup(pending[0].Path)
	if !ok {
		t.Fatal("expected committed record in snapshot")
	}
	if got.Fingerprint != pending[0].Fingerprint {
		t.Errorf("expected fingerprint %s, got %s", pending[0].Fingerprint, got.Fingerprint)
	}

	// Committed record is no longer pending.
	pending, err = manager.Diff([]string{folder}, testModel)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("expected empty pending set after commit, got %d", len(pending))
	}
}

func TestCommitIdempotent(t *testing.T) {
	manager, _ := newTestManager(t)

	rec := domain.EmbeddingRecord{
		Path:        "/x/a.png",
		Fingerprint: "f1",
		Vector:      unitVec(0),
		CreatedAt:   time.Now(),
	}
	for i := 0; i < 3; i++ {
		if err := manager.Commit(testModel, []domain.EmbeddingRecord{rec}); err != nil {
			t.Fatal(err)
		}
	}

	snap, err := manager.Load(testModel)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 1 {
		t.Errorf("expected 1 record after repeated commits, got %d", snap.Len())
	}
}

func TestFingerprintChangeInvalidates(t *testing.T) {
	manager, _ := newTestManager(t)
	folder := t.TempDir()
	path := filepath.Join(folder, "a.png")
	writePNG(t, path, 1)

	pending, err := manager.Diff([]string{folder}, testModel)
	if err != nil {
		t.Fatal(err)
	}
	oldFP := pending[0].Fingerprint
	rec := domain.EmbeddingRecord{Path: path, Fingerprint: oldFP, Vector: unitVec(0), CreatedAt: time.Now()}
	if err := manager.Commit(testModel, []domain.EmbeddingRecord{rec}); err != nil {
		t.Fatal(err)
	}

	// Rewrite the file; a different seed produces different bytes, and the
	// mtime moves regardless.
	time.Sleep(5 * time.Millisecond)
	writePNG(t, path, 99)

	pending, err = manager.Diff([]string{folder}, testModel)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected changed file in pending set, got %d entries", len(pending))
	}
	if pending[0].Fingerprint == oldFP {
		t.Error("expected a new fingerprint for the rewritten file")
	}

	renewed := domain.EmbeddingRecord{Path: path, Fingerprint: pending[0].Fingerprint, Vector: unitVec(1), CreatedAt: time.Now()}
	if err := manager.Commit(testModel, []domain.EmbeddingRecord{renewed}); err != nil {
		t.Fatal(err)
	}

	snap, err := manager.Load(testModel)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 1 {
		t.Fatalf("expected the new record to supersede, got %d records", snap.Len())
	}
	got, _ := snap.Lookup(path)
	if got.Fingerprint != pending[0].Fingerprint {
		t.Errorf("expected new fingerprint, got %s", got.Fingerprint)
	}
}

func TestPruneRemovesExactlyTheStale(t *testing.T) {
	manager, _ := newTestManager(t)
	folder := t.TempDir()
	kept := filepath.Join(folder, "kept.png")
	deleted := filepath.Join(folder, "deleted.png")
	writePNG(t, kept, 1)
	writePNG(t, deleted, 2)

	records := []domain.EmbeddingRecord{
		{Path: kept, Fingerprint: "f1", Vector: unitVec(0), CreatedAt: time.Now()},
		{Path: deleted, Fingerprint: "f2", Vector: unitVec(1), CreatedAt: time.Now()},
		{Path: "/elsewhere/outside.png", Fingerprint: "f3", Vector: unitVec(2), CreatedAt: time.Now()},
	}
	if err := manager.Commit(testModel, records); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(deleted); err != nil {
		t.Fatal(err)
	}

	removed, err := manager.Prune([]string{folder}, testModel)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 records pruned, got %d", removed)
	}

	snap, err := manager.Load(testModel)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 1 {
		t.Fatalf("expected 1 surviving record, got %d", snap.Len())
	}
	if _, ok := snap.Lookup(kept); !ok {
		t.Error("expected the kept record to survive prune")
	}
}

func TestCorruptStoreTreatedAsEmpty(t *testing.T) {
	manager, cacheDir := newTestManager(t)

	dbPath := filepath.Join(cacheDir, string(testModel)+".db")
	if err := os.WriteFile(dbPath, []byte("definitely not a bolt database"), 0600); err != nil {
		t.Fatal(err)
	}

	snap, err := manager.Load(testModel)
	if err != nil {
		t.Fatalf("corrupt store must not fail the load: %v", err)
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty snapshot, got %d records", snap.Len())
	}

	// The store is writable again after recovery.
	rec := domain.EmbeddingRecord{Path: "/a.png", Fingerprint: "f1", Vector: unitVec(0), CreatedAt: time.Now()}
	if err := manager.Commit(testModel, []domain.EmbeddingRecord{rec}); err != nil {
		t.Fatalf("expected store usable after recovery: %v", err)
	}
}

func TestClear(t *testing.T) {
	manager, _ := newTestManager(t)

	rec := domain.EmbeddingRecord{Path: "/a.png", Fingerprint: "f1", Vector: unitVec(0), CreatedAt: time.Now()}
	if err := manager.Commit(testModel, []domain.EmbeddingRecord{rec}); err != nil {
		t.Fatal(err)
	}
	if err := manager.Clear(testModel); err != nil {
		t.Fatal(err)
	}

	snap, err := manager.Load(testModel)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Len() != 0 {
		t.Errorf("expected empty snapshot after clear, got %d", snap.Len())
	}
}
