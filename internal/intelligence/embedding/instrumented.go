package embedding

import (
	"context"
	"time"
)

// Instrumented reports the latency and outcome of every call to the wrapped
// provider.
type Instrumented struct {
	next     Embedder
	provider string
	rec      Recorder
}

// NewInstrumented wraps next.  A nil rec disables reporting.
func NewInstrumented(next Embedder, provider string, rec Recorder) *Instrumented {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Instrumented{next: next, provider: provider, rec: rec}
}

func (e *Instrumented) Dimension() int { return e.next.Dimension() }

func (e *Instrumented) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.next.Embed(ctx, text)
	e.rec.RecordEmbedding(e.provider, err, time.Since(start))
	return vec, err
}
