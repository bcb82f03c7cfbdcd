package port

import (
	"context"

	"clipfind/internal/domain"
)

// EmbeddingProvider turns images or text into fixed-length vectors. It is
// treated as a stateless, reentrant service and must be deterministic for
// identical payload and model. Returned vectors have length
// model.Dimension() and are not necessarily normalized.
type EmbeddingProvider interface {
	// EmbedImages embeds a batch of raw image payloads, one vector per
	// payload in order.
	EmbedImages(ctx context.Context, model domain.Model, payloads [][]byte) ([][]float32, error)

	// EmbedText embeds a single text query.
	EmbedText(ctx context.Context, model domain.Model, text string) ([]float32, error)
}
