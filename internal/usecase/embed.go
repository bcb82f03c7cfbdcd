package usecase

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"clipfind/internal/domain"
	"clipfind/internal/port"
)

// ProgressFunc receives ordered (completed, total) notifications after
// every batch.
type ProgressFunc func(completed, total int)

// Orchestrator turns a pending set into embedding records via the provider.
// Larger batches amortize provider call overhead but raise memory use and
// the discard cost when a batch fails.
type Orchestrator struct {
	provider  port.EmbeddingProvider
	cache     *CacheManager
	batchSize int
}

func NewOrchestrator(provider port.EmbeddingProvider, cache *CacheManager, batchSize int) *Orchestrator {
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Orchestrator{
		provider:  provider,
		cache:     cache,
		batchSize: batchSize,
	}
}

// Run processes pending images in batches. Each finished batch is committed
// before the next begins, so cancellation between batches keeps all
// completed work. Per-item decode failures and per-batch provider failures
// are counted in the report, never raised; the only hard failure is a
// provider that succeeds for no batch at all.
func (o *Orchestrator) Run(ctx context.Context, model domain.Model, pending []domain.PendingImage, onProgress ProgressFunc) (*domain.RunReport, error) {
	report := &domain.RunReport{}
	total := len(pending)
	if total == 0 {
		return report, nil
	}

	batchAttempts := 0
	batchSuccesses := 0

	for start := 0; start < total; start += o.batchSize {
		if ctx.Err() != nil {
			report.CancelledRemaining = total - report.Processed()
			return report, nil
		}

		end := start + o.batchSize
		if end > total {
			end = total
		}
		batch := pending[start:end]

		items, payloads := o.decodeBatch(batch, report)
		if len(items) > 0 {
			attempts, successes := o.embedBatch(ctx, model, items, payloads, report)
			batchAttempts += attempts
			batchSuccesses += successes
		}

		if onProgress != nil {
			onProgress(report.Processed(), total)
		}
	}

	if batchAttempts > 0 && batchSuccesses == 0 {
		return report, fmt.Errorf("%w: no batch succeeded after retries", domain.ErrProviderUnavailable)
	}
	return report, nil
}

// decodeBatch reads and sanity-checks each file. A file that cannot be read
// or does not decode as an image is recorded and skipped; it never aborts
// the batch.
func (o *Orchestrator) decodeBatch(batch []domain.PendingImage, report *domain.RunReport) ([]domain.PendingImage, [][]byte) {
	items := make([]domain.PendingImage, 0, len(batch))
	payloads := make([][]byte, 0, len(batch))

	for _, img := range batch {
		data, err := os.ReadFile(img.Path)
		if err != nil {
			report.DecodeFailed++
			report.Failures = append(report.Failures, domain.ItemFailure{
				Path:   img.Path,
				Reason: fmt.Sprintf("read failed: %v", err),
			})
			continue
		}
		if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
			report.DecodeFailed++
			report.Failures = append(report.Failures, domain.ItemFailure{
				Path:   img.Path,
				Reason: fmt.Sprintf("not a decodable image: %v", err),
			})
			continue
		}
		items = append(items, img)
		payloads = append(payloads, data)
	}
	return items, payloads
}

// embedBatch calls the provider for one batch. On failure the batch is
// split in half and each half retried once; a half that still fails marks
// its items provider-failed. Successful vectors are normalized and
// committed immediately. Returns (attempts, successes) for outage
// detection.
func (o *Orchestrator) embedBatch(ctx context.Context, model domain.Model, items []domain.PendingImage, payloads [][]byte, report *domain.RunReport) (int, int) {
	vectors, err := o.provider.EmbedImages(ctx, model, payloads)
	if err == nil {
		o.commitVectors(model, items, vectors, report)
		return 1, 1
	}

	attempts, successes := 1, 0
	half := (len(items) + 1) / 2
	for _, span := range [][2]int{{0, half}, {half, len(items)}} {
		subItems := items[span[0]:span[1]]
		subPayloads := payloads[span[0]:span[1]]
		if len(subItems) == 0 {
			continue
		}
		attempts++
		vectors, err := o.provider.EmbedImages(ctx, model, subPayloads)
		if err != nil {
			for _, img := range subItems {
				report.ProviderFailed++
				report.Failures = append(report.Failures, domain.ItemFailure{
					Path:   img.Path,
					Reason: fmt.Sprintf("provider failed: %v", err),
				})
			}
			continue
		}
		successes++
		o.commitVectors(model, subItems, vectors, report)
	}
	return attempts, successes
}

func (o *Orchestrator) commitVectors(model domain.Model, items []domain.PendingImage, vectors [][]float32, report *domain.RunReport) {
	now := time.Now()
	records := make([]domain.EmbeddingRecord, 0, len(items))
	for i, img := range items {
		if i >= len(vectors) || len(vectors[i]) != model.Dimension() {
			report.ProviderFailed++
			report.Failures = append(report.Failures, domain.ItemFailure{
				Path:   img.Path,
				Reason: "provider returned malformed vector",
			})
			continue
		}
		records = append(records, domain.EmbeddingRecord{
			Path:        img.Path,
			Fingerprint: img.Fingerprint,
			Vector:      domain.Normalize(vectors[i]),
			CreatedAt:   now,
		})
	}

	if err := o.cache.Commit(model, records); err != nil {
		for _, rec := range records {
			report.ProviderFailed++
			report.Failures = append(report.Failures, domain.ItemFailure{
				Path:   rec.Path,
				Reason: fmt.Sprintf("commit failed: %v", err),
			})
		}
		return
	}
	report.Succeeded += len(records)
}
