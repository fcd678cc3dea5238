package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClientConfig configures the self-hosted embedding API client.
type HTTPClientConfig struct {
	// BaseURL of the embedding service, e.g. "http://localhost:8000".
	BaseURL string
	// Dimension every returned vector must have.
	Dimension int
	// Timeout per HTTP request.
	Timeout time.Duration
	// RequestsPerSecond caps outbound calls. Zero means no limit.
	RequestsPerSecond float64
}

const (
	defaultDimension = 768
	defaultTimeout   = 30 * time.Second
)

// HTTPClient calls a self-hosted embedding API over JSON. The service
// exposes POST /embed for single texts and POST /embed/batch for
// batches.
type HTTPClient struct {
	baseURL    string
	dimension  int
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ Embedder = (*HTTPClient)(nil)

// NewHTTPClient creates a client for the embedding API at cfg.BaseURL.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("embedding base URL is required")
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = defaultDimension
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		dimension:  cfg.Dimension,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
	}, nil
}

// Dimension returns the vector size the client expects from the service.
func (c *HTTPClient) Dimension() int { return c.dimension }

type embedRequest struct {
	Text string `json:"text"`
}

type batchEmbedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embedding  []float32 `json:"embedding"`
	Model      string    `json:"model"`
	Dimensions int       `json:"dimensions"`
}

// Embed requests the vector for a single text.
func (c *HTTPClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Op: "embed", Err: ErrEmptyInput}
	}

	var resp embedResponse
	if err := c.post(ctx, "embed", "/embed", embedRequest{Text: text}, &resp); err != nil {
		return nil, err
	}

	if err := c.checkVector("embed", resp.Embedding); err != nil {
		return nil, err
	}
	return resp.Embedding, nil
}

// EmbedBatch requests vectors for all texts in one round trip. The
// response must contain exactly one vector per input text.
func (c *HTTPClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, &Error{Op: "embed_batch", Err: ErrEmptyInput}
		}
	}

	var resp []embedResponse
	if err := c.post(ctx, "embed_batch", "/embed/batch", batchEmbedRequest{Texts: texts}, &resp); err != nil {
		return nil, err
	}

	if len(resp) != len(texts) {
		return nil, &Error{
			Op:  "embed_batch",
			Err: fmt.Errorf("got %d vectors for %d texts", len(resp), len(texts)),
		}
	}

	vectors := make([][]float32, len(resp))
	for i, r := range resp {
		if err := c.checkVector("embed_batch", r.Embedding); err != nil {
			return nil, err
		}
		vectors[i] = r.Embedding
	}
	return vectors, nil
}

func (c *HTTPClient) checkVector(op string, vec []float32) error {
	if len(vec) == 0 {
		return &Error{Op: op, Err: fmt.Errorf("service returned an empty embedding")}
	}
	if len(vec) != c.dimension {
		return &Error{
			Op:  op,
			Err: fmt.Errorf("expected %d dimensions, got %d", c.dimension, len(vec)),
		}
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, op, path string, body, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &Error{Op: op, Err: fmt.Errorf("rate limiter: %w", err)}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return &Error{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("%s", strings.TrimSpace(string(respBody))),
		}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &Error{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	return nil
}
