package domain

import "errors"

var (
	// ErrUnsupportedModel is returned for model identifiers outside Models().
	ErrUnsupportedModel = errors.New("unsupported model")

	// ErrCorruptStore marks a persisted store that cannot be read. Callers
	// treat it as an empty store and schedule a full recompute.
	ErrCorruptStore = errors.New("embedding store is corrupt")

	// ErrInvalidTopK rejects queries with a non-positive result limit.
	ErrInvalidTopK = errors.New("top-k must be positive")

	// ErrProviderUnavailable means the embedding provider failed for every
	// batch and every retry of a run: a systemic outage, not a per-item
	// problem. Work committed before the run aborted remains valid.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")
)
