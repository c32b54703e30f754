package embedding

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Limited bounds the number of in-flight calls to an embedder that cannot
// take unbounded concurrent load.
type Limited struct {
	next Embedder
	sem  *semaphore.Weighted
}

// NewLimited allows at most n concurrent Embed calls on next.  n < 1 is
// treated as 1.
func NewLimited(next Embedder, n int64) *Limited {
	if n < 1 {
		n = 1
	}
	return &Limited{next: next, sem: semaphore.NewWeighted(n)}
}

func (e *Limited) Dimension() int { return e.next.Dimension() }

// Embed waits for a slot, or until ctx is done.
func (e *Limited) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "waiting for embedding slot")
	}
	defer e.sem.Release(1)
	return e.next.Embed(ctx, text)
}
