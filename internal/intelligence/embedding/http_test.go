package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

func newEmbedServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestNewHTTPEmbedder_Validation(t *testing.T) {
	_, err := NewHTTPEmbedder("localhost:8080/embed", 3)
	assert.True(t, errors.IsConfiguration(err))

	_, err = NewHTTPEmbedder("http://localhost:8080/embed", 0)
	assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingDimensionMismatch))
}

func TestHTTPEmbedder_Embed_BatchResponse(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var req httpEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "flema", req.Inputs)
		assert.Equal(t, "e5-small", req.Model)
		_, _ = w.Write([]byte(`[[0.1, 0.2, 0.3]]`))
	})

	e, err := NewHTTPEmbedder(srv.URL, 3, WithModel("e5-small"))
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "flema")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimension())
}

func TestHTTPEmbedder_Embed_FlatResponse(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[1, 0]`))
	})
	e, err := NewHTTPEmbedder(srv.URL, 2)
	require.NoError(t, err)

	vec, err := e.Embed(context.Background(), "tos")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, vec)
}

func TestHTTPEmbedder_Embed_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code int
	}{
		{"server error", `overloaded`, http.StatusServiceUnavailable},
		{"wrong dimension", `[[1, 2]]`, http.StatusOK},
		{"empty batch", `[]`, http.StatusOK},
		{"two vectors", `[[1, 2, 3], [4, 5, 6]]`, http.StatusOK},
		{"not json", `hello`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newEmbedServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.code)
				_, _ = w.Write([]byte(tt.body))
			})
			e, err := NewHTTPEmbedder(srv.URL, 3)
			require.NoError(t, err)

			_, err = e.Embed(context.Background(), "x")
			assert.True(t, errors.IsCode(err, errors.ErrCodeEmbeddingFailed), "got %v", err)
			assert.True(t, errors.IsExternalService(err))
		})
	}
}

func TestHTTPEmbedder_Embed_ContextDeadline(t *testing.T) {
	srv := newEmbedServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	e, err := NewHTTPEmbedder(srv.URL, 3)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.Embed(ctx, "x")
	assert.True(t, errors.IsCode(err, errors.ErrCodeTimeout), "got %v", err)
}

func TestDecodeVector(t *testing.T) {
	v, err := decodeVector([]byte(`[[1.5]]`))
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5}, v)

	v, err = decodeVector([]byte(`[1.5, 2]`))
	require.NoError(t, err)
	assert.Equal(t, []float32{1.5, 2}, v)

	_, err = decodeVector([]byte(`{"embedding": [1]}`))
	assert.Error(t, err)
}
