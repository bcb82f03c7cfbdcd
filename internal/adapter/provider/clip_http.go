package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"clipfind/internal/domain"
)

// CLIPClient talks to a local CLIP inference sidecar over HTTP. The sidecar
// owns model loading and hardware acceleration; this client only carries
// the embed contract: payload in, fixed-length vector out, deterministic
// for identical payload and model.
type CLIPClient struct {
	baseURL string
	client  *http.Client
}

func NewCLIPClient(baseURL string, timeout time.Duration) *CLIPClient {
	if baseURL == "" {
		baseURL = "http://localhost:8756"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &CLIPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type imageEmbedRequest struct {
	Model  string   `json:"model"`
	Images []string `json:"images"` // base64-encoded file bytes
}

type textEmbedRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

type embedResponse struct {
	Vectors [][]float32 `json:"vectors"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *CLIPClient) EmbedImages(ctx context.Context, model domain.Model, payloads [][]byte) ([][]float32, error) {
	if len(payloads) == 0 {
		return nil, nil
	}

	images := make([]string, len(payloads))
	for i, p := range payloads {
		images[i] = base64.StdEncoding.EncodeToString(p)
	}

	vectors, err := c.post(ctx, "/embed/images", imageEmbedRequest{
		Model:  string(model),
		Images: images,
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(payloads) {
		return nil, fmt.Errorf("provider returned %d vectors for %d images", len(vectors), len(payloads))
	}
	for i, v := range vectors {
		if len(v) != model.Dimension() {
			return nil, fmt.Errorf("vector %d dimension mismatch: expected %d, got %d",
				i, model.Dimension(), len(v))
		}
	}
	return vectors, nil
}

func (c *CLIPClient) EmbedText(ctx context.Context, model domain.Model, text string) ([]float32, error) {
	vectors, err := c.post(ctx, "/embed/text", textEmbedRequest{
		Model: string(model),
		Text:  text,
	})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("provider returned %d vectors for one text", len(vectors))
	}
	if len(vectors[0]) != model.Dimension() {
		return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d",
			model.Dimension(), len(vectors[0]))
	}
	return vectors[0], nil
}

func (c *CLIPClient) post(ctx context.Context, path string, reqBody any) ([][]float32, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, preview)
	}

	var embResp embedResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if embResp.Error != nil {
		return nil, fmt.Errorf("provider error: %s", embResp.Error.Message)
	}
	return embResp.Vectors, nil
}
