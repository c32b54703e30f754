package embedding

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Sira-Clinica/backend/internal/infrastructure/database/redis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
)

const cacheKeyPrefix = "emb:"

// Cached memoizes embeddings in Redis.  Concurrent misses for the same text
// share one provider call.  A cache outage degrades to calling the provider
// directly; it never fails the request.
type Cached struct {
	next   Embedder
	cache  redis.Cache
	model  string
	ttl    time.Duration
	rec    Recorder
	logger logging.Logger
	group  singleflight.Group
}

// NewCached wraps next.  model namespaces keys so a model switch never serves
// stale vectors.
func NewCached(next Embedder, cache redis.Cache, model string, ttl time.Duration, rec Recorder, log logging.Logger) *Cached {
	if rec == nil {
		rec = nopRecorder{}
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Cached{next: next, cache: cache, model: model, ttl: ttl, rec: rec, logger: log}
}

func (e *Cached) Dimension() int { return e.next.Dimension() }

// Embed implements Embedder.
func (e *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)

	var vec []float32
	err := e.cache.Get(ctx, key, &vec)
	switch {
	case err == nil && len(vec) == e.next.Dimension():
		e.rec.RecordCache(true)
		return vec, nil
	case err != nil && !redis.IsCacheMiss(err):
		e.logger.Warn("embedding cache read failed", logging.Err(err))
	}
	e.rec.RecordCache(false)

	// The shared call is detached from the caller that started it; each
	// caller stops waiting when its own ctx is done.  The provider timeout
	// bounds the detached call.
	detached := context.WithoutCancel(ctx)
	ch := e.group.DoChan(key, func() (interface{}, error) {
		vec, err := e.next.Embed(detached, text)
		if err != nil {
			return nil, err
		}
		if setErr := e.cache.Set(detached, key, vec, e.ttl); setErr != nil {
			e.logger.Warn("embedding cache write failed", logging.Err(setErr))
		}
		return vec, nil
	})

	var v interface{}
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		v = res.Val
	case <-ctx.Done():
		return nil, classify(ctx, ctx.Err(), "waiting for embedding")
	}

	shared := v.([]float32)
	out := make([]float32, len(shared))
	copy(out, shared)
	return out, nil
}

// key hashes text so clinical content never appears in Redis key names.
func (e *Cached) key(text string) string {
	sum := sha1.Sum([]byte(text))
	return cacheKeyPrefix + e.model + ":" + hex.EncodeToString(sum[:])
}
