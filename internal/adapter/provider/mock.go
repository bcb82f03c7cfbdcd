package provider

import (
	"context"
	"crypto/sha256"

	"clipfind/internal/domain"
)

// MockProvider derives vectors from a hash of the payload. Deterministic
// for identical inputs, no network, no model weights. Useful for tests and
// for exercising the cache pipeline without a sidecar.
type MockProvider struct{}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) EmbedImages(ctx context.Context, model domain.Model, payloads [][]byte) ([][]float32, error) {
	vectors := make([][]float32, len(payloads))
	for i, payload := range payloads {
		vectors[i] = hashVector(payload, model.Dimension())
	}
	return vectors, nil
}

func (p *MockProvider) EmbedText(ctx context.Context, model domain.Model, text string) ([]float32, error) {
	return hashVector([]byte(text), model.Dimension()), nil
}

func hashVector(payload []byte, dim int) []float32 {
	digest := sha256.Sum256(payload)
	v := make([]float32, dim)
	for i := 0; i < dim; i++ {
		// Re-hash every 32 positions so the whole vector depends on the input.
		if i > 0 && i%len(digest) == 0 {
			digest = sha256.Sum256(digest[:])
		}
		v[i] = float32(digest[i%len(digest)])/255.0 - 0.5
	}
	return v
}
