package port

import "clipfind/internal/domain"

// RecordStore is the durable mapping (path, fingerprint, model) -> vector.
// Only the cache manager writes to it.
type RecordStore interface {
	// Load reads all records for a model. Individually unreadable entries
	// are skipped; an unreadable store returns domain.ErrCorruptStore.
	Load(model domain.Model) ([]domain.EmbeddingRecord, error)

	// Put merges records with replace-by-path semantics in one atomic
	// transaction. Idempotent on identical inputs.
	Put(model domain.Model, records []domain.EmbeddingRecord) error

	// Delete removes records by path.
	Delete(model domain.Model, paths []string) error

	// Discard drops a model's store file entirely, preserving a copy of a
	// corrupt file for inspection.
	Discard(model domain.Model) error

	// Count returns the number of records for a model.
	Count(model domain.Model) (int, error)

	// Size returns the on-disk size in bytes of a model's store.
	Size(model domain.Model) (int64, error)

	Close() error
}
