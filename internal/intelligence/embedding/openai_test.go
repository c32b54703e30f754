package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

func newOpenAIServer(t *testing.T, status int, vectors ...[]float32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req["model"])

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		data := make([]map[string]interface{}, len(vectors))
		for i, v := range vectors {
			data[i] = map[string]interface{}{"object": "embedding", "index": i, "embedding": v}
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"model":  "text-embedding-3-small",
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestOpenAIEmbedder(t *testing.T, srv *httptest.Server, dim int) *OpenAIEmbedder {
	t.Helper()
	e, err := NewOpenAIEmbedder(OpenAIConfig{
		APIKey:    "test-key",
		BaseURL:   srv.URL + "/v1",
		Model:     "text-embedding-3-small",
		Dimension: dim,
	})
	require.NoError(t, err)
	return e
}

func TestNewOpenAIEmbedder_Validation(t *testing.T) {
	_, err := NewOpenAIEmbedder(OpenAIConfig{Dimension: 3})
	assert.True(t, errors.IsConfiguration(err))

	_, err = NewOpenAIEmbedder(OpenAIConfig{Model: "m"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingDimensionMismatch))
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, []float32{0.25, 0.5, 0.75})
	e := newTestOpenAIEmbedder(t, srv, 3)

	vec, err := e.Embed(context.Background(), "ronquido")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, 0.5, 0.75}, vec)
	assert.Equal(t, 3, e.Dimension())
}

func TestOpenAIEmbedder_Embed_WrongDimension(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK, []float32{1, 2})
	e := newTestOpenAIEmbedder(t, srv, 3)

	_, err := e.Embed(context.Background(), "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingFailed))
}

func TestOpenAIEmbedder_Embed_NoVectors(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusOK)
	e := newTestOpenAIEmbedder(t, srv, 3)

	_, err := e.Embed(context.Background(), "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingFailed))
}

func TestOpenAIEmbedder_Embed_APIError(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusBadRequest)
	e := newTestOpenAIEmbedder(t, srv, 3)

	_, err := e.Embed(context.Background(), "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingFailed), "got %v", err)
}

func TestOpenAIEmbedder_Embed_Unauthorized(t *testing.T) {
	srv := newOpenAIServer(t, http.StatusUnauthorized)
	e := newTestOpenAIEmbedder(t, srv, 3)

	_, err := e.Embed(context.Background(), "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingFailed), "got %v", err)
	assert.True(t, errors.IsExternalService(err), "got %v", err)
	assert.False(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "rejected credentials")
}
