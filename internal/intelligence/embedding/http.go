package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	maxErrorBody       = 512
)

// HTTPEmbedder calls a self-hosted embedding server that accepts
// {"inputs": "..."} and answers with either a single vector or a batch of one.
type HTTPEmbedder struct {
	endpoint string
	dim      int
	model    string
	client   *http.Client
}

// HTTPOption configures an HTTPEmbedder.
type HTTPOption func(*HTTPEmbedder)

// WithTimeout sets the per-request timeout.  Zero keeps the default.
func WithTimeout(d time.Duration) HTTPOption {
	return func(e *HTTPEmbedder) {
		if d > 0 {
			e.client = &http.Client{Timeout: d, Transport: e.client.Transport}
		}
	}
}

// WithClient replaces the underlying http.Client.  A nil client is ignored.
func WithClient(c *http.Client) HTTPOption {
	return func(e *HTTPEmbedder) {
		if c != nil {
			e.client = c
		}
	}
}

// WithModel sends the model name along with each request.
func WithModel(model string) HTTPOption {
	return func(e *HTTPEmbedder) { e.model = model }
}

// NewHTTPEmbedder validates endpoint and dim and returns a ready embedder.
func NewHTTPEmbedder(endpoint string, dim int, opts ...HTTPOption) (*HTTPEmbedder, error) {
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, errors.Configuration("embedding endpoint must be an absolute http(s) URL").WithDetail(endpoint)
	}
	if dim <= 0 {
		return nil, errors.Newf(errors.ErrCodeEmbeddingDimensionMismatch, "embedding dimension must be positive, got %d", dim)
	}
	e := &HTTPEmbedder{
		endpoint: endpoint,
		dim:      dim,
		client:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type httpEmbedRequest struct {
	Inputs string `json:"inputs"`
	Model  string `json:"model,omitempty"`
}

// Dimension implements Embedder.
func (e *HTTPEmbedder) Dimension() int { return e.dim }

// Embed implements Embedder.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(httpEmbedRequest{Inputs: text, Model: e.model})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode embedding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "build embedding request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err, "embedding request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.Newf(errors.ErrCodeEmbeddingFailed, "embedding server returned HTTP %d", resp.StatusCode).
			WithDetail(string(bytes.TrimSpace(msg)))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(ctx, err, "read embedding response")
	}
	vec, err := decodeVector(raw)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "decode embedding response")
	}
	if len(vec) != e.dim {
		return nil, errors.Newf(errors.ErrCodeEmbeddingFailed,
			"embedding server returned dimension %d, expected %d", len(vec), e.dim)
	}
	return vec, nil
}

// decodeVector accepts [f, ...] or [[f, ...]].
func decodeVector(raw []byte) ([]float32, error) {
	var batch [][]float32
	if err := json.Unmarshal(raw, &batch); err == nil {
		if len(batch) != 1 {
			return nil, fmt.Errorf("expected one vector, got %d", len(batch))
		}
		return batch[0], nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, err
	}
	return vec, nil
}
