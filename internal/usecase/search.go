package usecase

import (
	"container/heap"
	"context"
	"fmt"
	"os"

	"clipfind/internal/adapter/cache"
	"clipfind/internal/domain"
	"clipfind/internal/port"
)

// SearchEngine answers nearest-neighbor queries against the current cache
// snapshot. Exact linear scan by design: collections are sized so that a
// full pass of dot products stays acceptable, and a bounded heap keeps the
// per-candidate cost at O(log k).
type SearchEngine struct {
	provider   port.EmbeddingProvider
	cache      *CacheManager
	queryCache *cache.VectorCache
}

func NewSearchEngine(provider port.EmbeddingProvider, cacheMgr *CacheManager, queryCache *cache.VectorCache) *SearchEngine {
	return &SearchEngine{
		provider:   provider,
		cache:      cacheMgr,
		queryCache: queryCache,
	}
}

// SearchText resolves the query text to a vector and ranks the snapshot.
// Repeated queries hit the query-vector cache instead of the provider.
func (e *SearchEngine) SearchText(ctx context.Context, query string, model domain.Model, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidTopK, topK)
	}

	var vector []float32
	if e.queryCache != nil {
		if v, ok := e.queryCache.Get(model, query); ok {
			vector = v
		}
	}
	if vector == nil {
		v, err := e.provider.EmbedText(ctx, model, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}
		vector = domain.Normalize(v)
		if e.queryCache != nil {
			e.queryCache.Put(model, query, vector)
		}
	}

	snap, err := e.cache.Load(model)
	if err != nil {
		return nil, err
	}
	return rank(snap, vector, topK), nil
}

// SearchImage resolves a reference image to a vector and ranks the
// snapshot. When the reference image's own cached vector is current it is
// reused, saving an inference call and making self-similarity exactly 1.0.
func (e *SearchEngine) SearchImage(ctx context.Context, imagePath string, model domain.Model, topK int) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", domain.ErrInvalidTopK, topK)
	}

	snap, err := e.cache.Load(model)
	if err != nil {
		return nil, err
	}

	vector, err := e.resolveImageVector(ctx, imagePath, model, snap)
	if err != nil {
		return nil, err
	}
	return rank(snap, vector, topK), nil
}

func (e *SearchEngine) resolveImageVector(ctx context.Context, imagePath string, model domain.Model, snap *domain.Snapshot) ([]float32, error) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reference image unreadable: %w", err)
	}

	if rec, ok := snap.Lookup(imagePath); ok {
		fp, err := e.cache.Scanner().Fingerprint(port.FileInfo{
			Path:    imagePath,
			Size:    info.Size(),
			ModTime: info.ModTime().UnixNano(),
		})
		if err == nil && fp == rec.Fingerprint {
			return rec.Vector, nil
		}
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reference image unreadable: %w", err)
	}
	vectors, err := e.provider.EmbedImages(ctx, model, [][]byte{data})
	if err != nil {
		return nil, fmt.Errorf("failed to embed reference image: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("provider returned %d vectors for one image", len(vectors))
	}
	return domain.Normalize(vectors[0]), nil
}

// rank scans every record and keeps the best topK in a min-heap. Equal
// scores break ties by ascending path so results are deterministic.
func rank(snap *domain.Snapshot, query []float32, topK int) []domain.Match {
	h := &matchHeap{}
	heap.Init(h)

	for _, rec := range snap.Records() {
		m := domain.Match{Path: rec.Path, Score: domain.Dot(query, rec.Vector)}
		if h.Len() < topK {
			heap.Push(h, m)
			continue
		}
		if worseThan((*h)[0], m) {
			(*h)[0] = m
			heap.Fix(h, 0)
		}
	}

	// Pops come worst-first; filling from the back yields descending rank.
	matches := make([]domain.Match, h.Len())
	for i := len(matches) - 1; i >= 0; i-- {
		matches[i] = heap.Pop(h).(domain.Match)
	}
	return matches
}

// worseThan reports whether a ranks below b: lower score, or equal score
// with a lexicographically later path.
func worseThan(a, b domain.Match) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	return a.Path > b.Path
}

// matchHeap is a min-heap keyed by rank, so the worst kept match sits on
// top and is the one displaced by a better candidate.
type matchHeap []domain.Match

func (h matchHeap) Len() int            { return len(h) }
func (h matchHeap) Less(i, j int) bool  { return worseThan(h[i], h[j]) }
func (h matchHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *matchHeap) Push(x interface{}) { *h = append(*h, x.(domain.Match)) }
func (h *matchHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
