package domain

import (
	"fmt"
	"sort"
	"time"
)

// Model identifies a supported CLIP variant. The vector dimension is fixed
// per model; records produced under one model are never served to another.
type Model string

const (
	ModelViTBase32  Model = "clip-vit-base-patch32"
	ModelViTBase16  Model = "clip-vit-base-patch16"
	ModelViTLarge14 Model = "clip-vit-large-patch14"
)

// Models returns all supported models in a stable order.
func Models() []Model {
	return []Model{ModelViTBase32, ModelViTBase16, ModelViTLarge14}
}

// ParseModel validates a model identifier.
func ParseModel(s string) (Model, error) {
	for _, m := range Models() {
		if s == string(m) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedModel, s)
}

// Dimension returns the embedding vector length for the model.
func (m Model) Dimension() int {
	switch m {
	case ModelViTLarge14:
		return 768
	default:
		return 512
	}
}

// ImageKey is the composite identity of a cached embedding. Two keys are
// equal iff all three fields match; a changed fingerprint or a different
// model invalidates prior results for the path.
type ImageKey struct {
	Path        string
	Fingerprint string
	Model       Model
}

// EmbeddingRecord is one cached vector. Vectors are unit-normalized at
// creation so similarity reduces to a dot product. Records are immutable; a
// changed file produces a new record replacing the old one under the same
// path and model.
type EmbeddingRecord struct {
	Path        string
	Fingerprint string
	Vector      []float32
	CreatedAt   time.Time
}

// PendingImage is a scanned file that has no valid record for the active
// model. Transient, never persisted.
type PendingImage struct {
	Path        string
	Fingerprint string
}

// Match is one search result.
type Match struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

// ItemFailure records a single image that could not be embedded.
type ItemFailure struct {
	Path   string
	Reason string
}

// RunReport aggregates the outcome of one orchestrator run. Per-item
// failures are counted here, never raised as errors.
type RunReport struct {
	Succeeded          int
	DecodeFailed       int
	ProviderFailed     int
	CancelledRemaining int
	Failures           []ItemFailure
}

// Processed returns how many pending images the run got through.
func (r *RunReport) Processed() int {
	return r.Succeeded + r.DecodeFailed + r.ProviderFailed
}

// Snapshot is an immutable view over all records for one model. Consumers
// never observe a partially written snapshot; the cache manager swaps in a
// fresh one after every commit.
type Snapshot struct {
	model      Model
	records    []EmbeddingRecord
	byPath     map[string]int
	generation uint64
}

// NewSnapshot builds a snapshot over records, sorted by path. The caller
// must not mutate records afterwards.
func NewSnapshot(model Model, records []EmbeddingRecord, generation uint64) *Snapshot {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Path < records[j].Path
	})
	byPath := make(map[string]int, len(records))
	for i, r := range records {
		byPath[r.Path] = i
	}
	return &Snapshot{
		model:      model,
		records:    records,
		byPath:     byPath,
		generation: generation,
	}
}

func (s *Snapshot) Model() Model { return s.model }

func (s *Snapshot) Len() int { return len(s.records) }

func (s *Snapshot) Generation() uint64 { return s.generation }

// Records returns the backing slice, sorted by path. Read-only.
func (s *Snapshot) Records() []EmbeddingRecord { return s.records }

// Lookup returns the record for a path, if present.
func (s *Snapshot) Lookup(path string) (EmbeddingRecord, bool) {
	i, ok := s.byPath[path]
	if !ok {
		return EmbeddingRecord{}, false
	}
	return s.records[i], true
}
