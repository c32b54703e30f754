package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/infrastructure/database/redis"
	"github.com/Sira-Clinica/backend/internal/testutil"
	apperrors "github.com/Sira-Clinica/backend/pkg/errors"
)

// memCache is an in-memory redis.Cache.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	sets    int
	lastTTL time.Duration
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (c *memCache) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return c.getErr
	}
	raw, ok := c.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	c.lastTTL = ttl
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok, nil
}

func (c *memCache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, loader func(ctx context.Context) (interface{}, error)) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	}
	v, err := loader(ctx)
	if err != nil {
		return err
	}
	if err := c.Set(ctx, key, v, ttl); err != nil {
		return err
	}
	return c.Get(ctx, key, dest)
}

func (c *memCache) DeleteByPrefix(context.Context, string) (int64, error) { return 0, nil }
func (c *memCache) Ping(context.Context) error                          { return nil }

type recordedCall struct {
	provider string
	err      error
}

type fakeRecorder struct {
	mu     sync.Mutex
	calls  []recordedCall
	hits   int
	misses int
}

func (r *fakeRecorder) RecordEmbedding(provider string, err error, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, recordedCall{provider: provider, err: err})
}

func (r *fakeRecorder) RecordCache(hit bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if hit {
		r.hits++
	} else {
		r.misses++
	}
}

func newStub() *testutil.StubEmbedder {
	return &testutil.StubEmbedder{
		Dim:     2,
		Vectors: map[string][]float32{"flema": {1, 0}},
		Default: []float32{0, 1},
	}
}

// ---------------------------------------------------------------------------
// Cached
// ---------------------------------------------------------------------------

func TestCached_MissThenHit(t *testing.T) {
	stub := newStub()
	cache := newMemCache()
	rec := &fakeRecorder{}
	e := NewCached(stub, cache, "m1", time.Hour, rec, nil)

	v1, err := e.Embed(context.Background(), "flema")
	require.NoError(t, err)
	v2, err := e.Embed(context.Background(), "flema")
	require.NoError(t, err)

	assert.Equal(t, []float32{1, 0}, v1)
	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, stub.Calls("flema"))
	assert.Equal(t, 1, rec.hits)
	assert.Equal(t, 1, rec.misses)
	assert.Equal(t, time.Hour, cache.lastTTL)
	assert.Equal(t, 2, e.Dimension())
}

func TestCached_KeyHidesTextAndIncludesModel(t *testing.T) {
	e1 := NewCached(newStub(), newMemCache(), "m1", 0, nil, nil)
	e2 := NewCached(newStub(), newMemCache(), "m2", 0, nil, nil)

	k := e1.key("dolor de garganta")
	assert.NotContains(t, k, "garganta")
	assert.Contains(t, k, "emb:m1:")
	assert.NotEqual(t, k, e2.key("dolor de garganta"))
}

func TestCached_WrongDimensionInCacheIsIgnored(t *testing.T) {
	stub := newStub()
	cache := newMemCache()
	e := NewCached(stub, cache, "m1", 0, nil, nil)
	require.NoError(t, cache.Set(context.Background(), e.key("flema"), []float32{9, 9, 9}, 0))

	v, err := e.Embed(context.Background(), "flema")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.Equal(t, 1, stub.Calls("flema"))
}

func TestCached_CacheOutageFallsThrough(t *testing.T) {
	stub := newStub()
	cache := newMemCache()
	cache.getErr = apperrors.New(apperrors.ErrCodeCacheError, "down")
	cache.setErr = apperrors.New(apperrors.ErrCodeCacheError, "down")
	mock := testutil.NewMockLogger()
	e := NewCached(stub, cache, "m1", 0, nil, mock)

	v, err := e.Embed(context.Background(), "flema")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, v)
	assert.True(t, mock.HasMessage("warn", "embedding cache read failed"))
	assert.True(t, mock.HasMessage("warn", "embedding cache write failed"))
}

func TestCached_ProviderErrorNotCached(t *testing.T) {
	stub := newStub()
	stub.FailOn = map[string]error{"flema": apperrors.New(apperrors.ErrCodeEmbeddingFailed, "down")}
	cache := newMemCache()
	e := NewCached(stub, cache, "m1", 0, nil, nil)

	_, err := e.Embed(context.Background(), "flema")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeEmbeddingFailed))
	assert.Zero(t, cache.sets)
}

func TestCached_ReturnsPrivateCopies(t *testing.T) {
	e := NewCached(newStub(), newMemCache(), "m1", 0, nil, nil)
	v, err := e.Embed(context.Background(), "flema")
	require.NoError(t, err)
	v[0] = 42

	again, err := e.Embed(context.Background(), "flema")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, again)
}

// gatedEmbedder blocks every call until release is closed and ignores ctx.
type gatedEmbedder struct {
	calls   int32
	started chan struct{}
	release chan struct{}
}

func (g *gatedEmbedder) Dimension() int { return 2 }

func (g *gatedEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	if atomic.AddInt32(&g.calls, 1) == 1 {
		close(g.started)
	}
	<-g.release
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []float32{1, 0}, nil
}

func TestCached_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	inner := &gatedEmbedder{started: make(chan struct{}), release: make(chan struct{})}
	e := NewCached(inner, newMemCache(), "m1", 0, nil, nil)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.Embed(firstCtx, "tos")
		firstErr <- err
	}()
	<-inner.started

	type result struct {
		vec []float32
		err error
	}
	second := make(chan result, 1)
	go func() {
		v, err := e.Embed(context.Background(), "tos")
		second <- result{v, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	err := <-firstErr
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTimeout), "got %v", err)

	close(inner.release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, []float32{1, 0}, res.vec)
	assert.Equal(t, int32(1), atomic.LoadInt32(&inner.calls))
}

// ---------------------------------------------------------------------------
// Limited
// ---------------------------------------------------------------------------

type blockingEmbedder struct {
	inFlight int32
	peak     int32
	release  chan struct{}
}

func (b *blockingEmbedder) Dimension() int { return 1 }

func (b *blockingEmbedder) Embed(ctx context.Context, _ string) ([]float32, error) {
	n := atomic.AddInt32(&b.inFlight, 1)
	for {
		p := atomic.LoadInt32(&b.peak)
		if n <= p || atomic.CompareAndSwapInt32(&b.peak, p, n) {
			break
		}
	}
	defer atomic.AddInt32(&b.inFlight, -1)
	select {
	case <-b.release:
		return []float32{1}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestLimited_BoundsConcurrency(t *testing.T) {
	inner := &blockingEmbedder{release: make(chan struct{})}
	e := NewLimited(inner, 2)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = e.Embed(context.Background(), "x")
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&inner.peak), int32(2))
	assert.Equal(t, 1, e.Dimension())
}

func TestLimited_WaitHonoursContext(t *testing.T) {
	inner := &blockingEmbedder{release: make(chan struct{})}
	defer close(inner.release)
	e := NewLimited(inner, 1)

	go func() { _, _ = e.Embed(context.Background(), "holder") }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := e.Embed(ctx, "waiter")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeTimeout))
	assert.True(t, apperrors.IsExternalService(err))
}

func TestNewLimited_ClampsToOne(t *testing.T) {
	e := NewLimited(newStub(), 0)
	_, err := e.Embed(context.Background(), "flema")
	assert.NoError(t, err)
}

// ---------------------------------------------------------------------------
// Instrumented
// ---------------------------------------------------------------------------

func TestInstrumented_RecordsOutcome(t *testing.T) {
	stub := newStub()
	boom := errors.New("boom")
	stub.FailOn = map[string]error{"bad": boom}
	rec := &fakeRecorder{}
	e := NewInstrumented(stub, ProviderHTTP, rec)

	_, err := e.Embed(context.Background(), "flema")
	require.NoError(t, err)
	_, err = e.Embed(context.Background(), "bad")
	require.ErrorIs(t, err, boom)

	require.Len(t, rec.calls, 2)
	assert.Equal(t, ProviderHTTP, rec.calls[0].provider)
	assert.NoError(t, rec.calls[0].err)
	assert.ErrorIs(t, rec.calls[1].err, boom)
	assert.Equal(t, 2, e.Dimension())
}

func TestInstrumented_NilRecorder(t *testing.T) {
	e := NewInstrumented(newStub(), ProviderOpenAI, nil)
	_, err := e.Embed(context.Background(), "flema")
	assert.NoError(t, err)
}
