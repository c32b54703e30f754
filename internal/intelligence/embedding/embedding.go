// Package embedding provides the EmbeddingService implementations used by the
// semantic canonicalizer: an HTTP JSON client for self-hosted embedding
// servers, an OpenAI-compatible client, and the decorators that add caching,
// bounded concurrency and metrics on top of either.
package embedding

import (
	"context"
	"net/http"
	"time"

	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/redis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Provider names accepted in configuration.
const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
)

// Embedder is the contract every implementation in this package satisfies.
type Embedder = symptom_norm.Embedder

// Recorder receives embedding latency and cache outcomes.  It is satisfied by
// *prometheus.TriageMetrics.
type Recorder interface {
	RecordEmbedding(provider string, err error, d time.Duration)
	RecordCache(hit bool)
}

type nopRecorder struct{}

func (nopRecorder) RecordEmbedding(string, error, time.Duration) {}
func (nopRecorder) RecordCache(bool)                             {}

// ---------------------------------------------------------------------------
// Factory
// ---------------------------------------------------------------------------

// Option configures New.
type Option func(*options)

type options struct {
	cache      redis.Cache
	cacheTTL   time.Duration
	recorder   Recorder
	logger     logging.Logger
	httpClient *http.Client
}

// WithCache puts a Redis-backed cache in front of the provider.
func WithCache(c redis.Cache, ttl time.Duration) Option {
	return func(o *options) {
		o.cache = c
		o.cacheTTL = ttl
	}
}

// WithRecorder reports provider latency and cache outcomes.
func WithRecorder(r Recorder) Option {
	return func(o *options) { o.recorder = r }
}

// WithLogger sets the logger used by the decorators.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithHTTPClient overrides the client used by the HTTP provider.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New builds the embedder described by cfg.  The provider call is wrapped, from
// the inside out, by metrics, the concurrency limiter and the cache.
func New(cfg config.EmbeddingConfig, opts ...Option) (Embedder, error) {
	o := options{recorder: nopRecorder{}, logger: logging.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		base Embedder
		err  error
	)
	switch cfg.Provider {
	case ProviderHTTP, "":
		base, err = NewHTTPEmbedder(cfg.Endpoint, cfg.Dimension,
			WithTimeout(cfg.Timeout), WithClient(o.httpClient), WithModel(cfg.Model))
	case ProviderOpenAI:
		base, err = NewOpenAIEmbedder(OpenAIConfig{
			APIKey:    cfg.APIKey,
			BaseURL:   cfg.Endpoint,
			Model:     cfg.Model,
			Dimension: cfg.Dimension,
			Timeout:   cfg.Timeout,
		})
	default:
		return nil, errors.Configuration("unknown embedding provider").WithDetail(cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	provider := cfg.Provider
	if provider == "" {
		provider = ProviderHTTP
	}
	var e Embedder = NewInstrumented(base, provider, o.recorder)
	if cfg.MaxConcurrency > 0 {
		e = NewLimited(e, int64(cfg.MaxConcurrency))
	}
	if o.cache != nil {
		e = NewCached(e, o.cache, cfg.Model, o.cacheTTL, o.recorder, o.logger)
	}

	o.logger.Info("embedding service configured",
		logging.String("provider", provider),
		logging.String("model", cfg.Model),
		logging.Int("dimension", cfg.Dimension),
		logging.Bool("cached", o.cache != nil),
		logging.Int("max_concurrency", cfg.MaxConcurrency),
	)
	return e, nil
}

// classify maps a provider failure onto the error taxonomy: context errors are
// timeouts, everything else is an embedding failure.
func classify(ctx context.Context, err error, msg string) error {
	if ctx.Err() != nil || errors.GetCode(err) == errors.ErrCodeTimeout {
		return errors.Wrap(err, errors.ErrCodeTimeout, msg)
	}
	if errors.GetCode(err) != errors.CodeUnknown {
		return err
	}
	return errors.Wrap(err, errors.ErrCodeEmbeddingFailed, msg)
}
