package usecase

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"clipfind/internal/adapter/fs"
	"clipfind/internal/adapter/provider"
	"clipfind/internal/adapter/store"
	"clipfind/internal/domain"
)

const testModel = domain.ModelViTBase32

// newTestManager wires a cache manager over a temp bolt store and a fast
// fingerprint scanner.
func newTestManager(t *testing.T) (*CacheManager, string) {
	t.Helper()
	cacheDir := t.TempDir()
	st, err := store.NewBoltRecordStore(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	scanner := fs.NewScanner(nil, fs.FingerprintFast)
	return NewCacheManager(st, scanner), cacheDir
}

// writePNG writes a small valid PNG whose bytes depend on seed.
func writePNG(t *testing.T, path string, seed uint8) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: seed, G: uint8(x * 50), B: uint8(y * 50), A: 255})
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

// unitVec returns a basis vector for the test model's dimension.
func unitVec(hot int) []float32 {
	v := make([]float32, testModel.Dimension())
	v[hot] = 1
	return v
}

// stubProvider wraps the deterministic mock with failure injection and
// call counting.
type stubProvider struct {
	mu         sync.Mutex
	mock       *provider.MockProvider
	imageCalls int
	textCalls  int
	failNext   int
	failAll    bool
	textVector []float32
}

func newStubProvider() *stubProvider {
	return &stubProvider{mock: provider.NewMockProvider()}
}

func (p *stubProvider) EmbedImages(ctx context.Context, model domain.Model, payloads [][]byte) ([][]float32, error) {
	p.mu.Lock()
	p.imageCalls++
	fail := p.failAll
	if !fail && p.failNext > 0 {
		p.failNext--
		fail = true
	}
	p.mu.Unlock()

	if fail {
		return nil, errors.New("stub provider failure")
	}
	return p.mock.EmbedImages(ctx, model, payloads)
}

func (p *stubProvider) EmbedText(ctx context.Context, model domain.Model, text string) ([]float32, error) {
	p.mu.Lock()
	p.textCalls++
	fail := p.failAll
	p.mu.Unlock()

	if fail {
		return nil, errors.New("stub provider failure")
	}
	if p.textVector != nil {
		out := make([]float32, len(p.textVector))
		copy(out, p.textVector)
		return out, nil
	}
	return p.mock.EmbedText(ctx, model, text)
}
