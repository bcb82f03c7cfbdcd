package usecase

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"clipfind/internal/domain"
	"clipfind/internal/port"
)

// CacheManager is the single source of truth for which images have valid
// embeddings. It owns the record store: commits serialize behind a mutex,
// and readers always get the snapshot of the last completed commit.
type CacheManager struct {
	store   port.RecordStore
	scanner port.FolderScanner

	mu         sync.RWMutex
	snapshots  map[domain.Model]*domain.Snapshot
	generation uint64
}

func NewCacheManager(store port.RecordStore, scanner port.FolderScanner) *CacheManager {
	return &CacheManager{
		store:     store,
		scanner:   scanner,
		snapshots: make(map[domain.Model]*domain.Snapshot),
	}
}

// Load returns the current snapshot for a model, reading the persisted
// store on first use. A corrupt store is discarded and treated as empty so
// the next diff schedules a full recompute; it never crashes the caller.
func (m *CacheManager) Load(model domain.Model) (*domain.Snapshot, error) {
	m.mu.RLock()
	if snap, ok := m.snapshots[model]; ok {
		m.mu.RUnlock()
		return snap, nil
	}
	m.mu.RUnlock()

	records, err := m.store.Load(model)
	if errors.Is(err, domain.ErrCorruptStore) {
		if err := m.store.Discard(model); err != nil {
			return nil, fmt.Errorf("failed to discard corrupt store: %w", err)
		}
		records = nil
	} else if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap, ok := m.snapshots[model]; ok {
		return snap, nil
	}
	m.generation++
	snap := domain.NewSnapshot(model, records, m.generation)
	m.snapshots[model] = snap
	return snap, nil
}

// Diff compares the folder set against the store and returns the images
// that need (re)computation: no record, or a changed fingerprint. It never
// invokes the embedding provider.
func (m *CacheManager) Diff(folders []string, model domain.Model) ([]domain.PendingImage, error) {
	files, err := m.scanner.Scan(folders)
	if err != nil {
		return nil, err
	}
	snap, err := m.Load(model)
	if err != nil {
		return nil, err
	}

	var pending []domain.PendingImage
	for _, fi := range files {
		fp, err := m.scanner.Fingerprint(fi)
		if err != nil {
			continue // file vanished between walk and stat
		}
		if rec, ok := snap.Lookup(fi.Path); ok && rec.Fingerprint == fp {
			continue
		}
		pending = append(pending, domain.PendingImage{Path: fi.Path, Fingerprint: fp})
	}
	return pending, nil
}

// Commit merges records into the store with replace-by-key semantics and
// swaps in a fresh snapshot. Safe to call repeatedly with overlapping
// batches; committing an identical batch twice is a no-op for readers.
func (m *CacheManager) Commit(model domain.Model, records []domain.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	if _, err := m.Load(model); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	prev := m.snapshots[model]

	if err := m.store.Put(model, records); err != nil {
		return err
	}

	merged := make([]domain.EmbeddingRecord, 0, prev.Len()+len(records))
	replaced := make(map[string]bool, len(records))
	for _, rec := range records {
		replaced[rec.Path] = true
	}
	for _, rec := range prev.Records() {
		if !replaced[rec.Path] {
			merged = append(merged, rec)
		}
	}
	merged = append(merged, records...)

	m.generation++
	m.snapshots[model] = domain.NewSnapshot(model, merged, m.generation)
	return nil
}

// Prune removes records whose path is outside the folder set or no longer
// exists on disk, and returns the number removed.
func (m *CacheManager) Prune(folders []string, model domain.Model) (int, error) {
	files, err := m.scanner.Scan(folders)
	if err != nil {
		return 0, err
	}
	if _, err := m.Load(model); err != nil {
		return 0, err
	}

	inFolders := make(map[string]bool, len(files))
	for _, fi := range files {
		inFolders[fi.Path] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	snap := m.snapshots[model]

	var stale []string
	for _, rec := range snap.Records() {
		if !inFolders[rec.Path] {
			stale = append(stale, rec.Path)
			continue
		}
		if _, err := os.Stat(rec.Path); err != nil {
			stale = append(stale, rec.Path)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	if err := m.store.Delete(model, stale); err != nil {
		return 0, err
	}

	staleSet := make(map[string]bool, len(stale))
	for _, p := range stale {
		staleSet[p] = true
	}
	kept := make([]domain.EmbeddingRecord, 0, snap.Len()-len(stale))
	for _, rec := range snap.Records() {
		if !staleSet[rec.Path] {
			kept = append(kept, rec)
		}
	}
	m.generation++
	m.snapshots[model] = domain.NewSnapshot(model, kept, m.generation)
	return len(stale), nil
}

// Clear drops all records for a model.
func (m *CacheManager) Clear(model domain.Model) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Discard(model); err != nil {
		return err
	}
	delete(m.snapshots, model)
	return nil
}

// CacheStats describes the persisted cache for one model.
type CacheStats struct {
	Model     domain.Model
	Records   int
	SizeBytes int64
}

// Stats reports record count and on-disk size for a model.
func (m *CacheManager) Stats(model domain.Model) (CacheStats, error) {
	count, err := m.store.Count(model)
	if errors.Is(err, domain.ErrCorruptStore) {
		return CacheStats{Model: model}, nil
	}
	if err != nil {
		return CacheStats{}, err
	}
	size, err := m.store.Size(model)
	if err != nil {
		return CacheStats{}, err
	}
	return CacheStats{Model: model, Records: count, SizeBytes: size}, nil
}

// Scanner exposes the folder scanner for collaborators that need to
// fingerprint individual files.
func (m *CacheManager) Scanner() port.FolderScanner { return m.scanner }
