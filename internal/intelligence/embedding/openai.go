package embedding

import (
	"context"
	"errors"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"

	apperrors "github.com/Sira-Clinica/backend/pkg/errors"
)

// OpenAIConfig configures an OpenAIEmbedder.  BaseURL may point at any
// OpenAI-compatible server; empty means api.openai.com.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// OpenAIEmbedder calls the /embeddings endpoint of an OpenAI-compatible API.
type OpenAIEmbedder struct {
	client  *openai.Client
	model   openai.EmbeddingModel
	dim     int
	timeout time.Duration
}

// NewOpenAIEmbedder validates cfg and builds the client.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.Model == "" {
		return nil, apperrors.Configuration("openai embedding model is required")
	}
	if cfg.Dimension <= 0 {
		return nil, apperrors.Newf(apperrors.ErrCodeEmbeddingDimensionMismatch,
			"embedding dimension must be positive, got %d", cfg.Dimension)
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &OpenAIEmbedder{
		client:  openai.NewClientWithConfig(oc),
		model:   openai.EmbeddingModel(cfg.Model),
		dim:     cfg.Dimension,
		timeout: cfg.Timeout,
	}, nil
}

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int { return e.dim }

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			if apiErr.HTTPStatusCode == http.StatusUnauthorized {
				return nil, apperrors.Wrap(err, apperrors.ErrCodeEmbeddingFailed, "embedding API rejected credentials")
			}
			return nil, apperrors.Newf(apperrors.ErrCodeEmbeddingFailed,
				"embedding API returned HTTP %d", apiErr.HTTPStatusCode).WithCause(err)
		}
		return nil, classify(ctx, err, "embedding API request failed")
	}
	if len(resp.Data) != 1 {
		return nil, apperrors.Newf(apperrors.ErrCodeEmbeddingFailed, "embedding API returned %d vectors", len(resp.Data))
	}
	vec := resp.Data[0].Embedding
	if len(vec) != e.dim {
		return nil, apperrors.Newf(apperrors.ErrCodeEmbeddingFailed,
			"embedding API returned dimension %d, expected %d", len(vec), e.dim)
	}
	return vec, nil
}
