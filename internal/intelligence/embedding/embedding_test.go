package embedding

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/testutil"
	apperrors "github.com/Sira-Clinica/backend/pkg/errors"
)

func TestNew_HTTPProviderFullChain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[0, 1]]`))
	}))
	defer srv.Close()

	cache := newMemCache()
	rec := &fakeRecorder{}
	log := testutil.NewMockLogger()
	e, err := New(config.EmbeddingConfig{
		Provider:       ProviderHTTP,
		Endpoint:       srv.URL,
		Model:          "e5",
		Dimension:      2,
		Timeout:        time.Second,
		MaxConcurrency: 4,
	}, WithCache(cache, time.Minute), WithRecorder(rec), WithLogger(log))
	require.NoError(t, err)

	_, ok := e.(*Cached)
	assert.True(t, ok)

	for i := 0; i < 3; i++ {
		v, err := e.Embed(context.Background(), "ronquera")
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 1}, v)
	}
	assert.Len(t, rec.calls, 1)
	assert.Equal(t, 2, rec.hits)
	assert.True(t, log.HasMessage("info", "embedding service configured"))
}

func TestNew_WithoutDecorators(t *testing.T) {
	e, err := New(config.EmbeddingConfig{Endpoint: "http://embed.local/embed", Dimension: 8})
	require.NoError(t, err)
	_, ok := e.(*Instrumented)
	assert.True(t, ok)
	assert.Equal(t, 8, e.Dimension())
}

func TestNew_OpenAIProvider(t *testing.T) {
	e, err := New(config.EmbeddingConfig{
		Provider:  ProviderOpenAI,
		APIKey:    "k",
		Model:     "text-embedding-3-small",
		Dimension: 1536,
	})
	require.NoError(t, err)
	assert.Equal(t, 1536, e.Dimension())
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: "onnx", Dimension: 3})
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestNew_InvalidEndpoint(t *testing.T) {
	_, err := New(config.EmbeddingConfig{Provider: ProviderHTTP, Endpoint: "::", Dimension: 3})
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	err := classify(ctx, errors.New("dial tcp: refused"), "m")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingFailed))

	coded := apperrors.New(apperrors.ErrCodeClassifierFailed, "x")
	assert.Same(t, coded, classify(ctx, coded, "m"))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = classify(cancelled, errors.New("request aborted"), "m")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTimeout))
}
