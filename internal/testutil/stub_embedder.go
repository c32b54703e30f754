package testutil

import (
	"context"
	"fmt"
	"sync"
)

// StubEmbedder is a deterministic in-memory embedder.  Texts found in Vectors
// get that vector; anything else gets Default.  Calls are counted per text.
type StubEmbedder struct {
	Dim     int
	Vectors map[string][]float32
	Default []float32
	// FailOn makes Embed return the mapped error for that text.
	FailOn map[string]error

	mu    sync.Mutex
	calls map[string]int
}

// OneHot returns a dim-length vector with a 1 at position i.
func OneHot(dim, i int) []float32 {
	v := make([]float32, dim)
	v[i] = 1
	return v
}

// NewClinicalStubEmbedder maps terms[i] to a one-hot vector on axis i and
// each alias to the vector of the term it names.  Every other text lands on
// the last axis, which no term uses, so it never clears a positive threshold.
func NewClinicalStubEmbedder(terms []string, aliases map[string]string) *StubEmbedder {
	dim := len(terms) + 1
	e := &StubEmbedder{
		Dim:     dim,
		Vectors: make(map[string][]float32, len(terms)+len(aliases)),
		Default: OneHot(dim, dim-1),
	}
	idx := make(map[string]int, len(terms))
	for i, t := range terms {
		idx[t] = i
		e.Vectors[t] = OneHot(dim, i)
	}
	for alias, term := range aliases {
		i, ok := idx[term]
		if !ok {
			panic(fmt.Sprintf("testutil: alias %q names unknown term %q", alias, term))
		}
		e.Vectors[alias] = OneHot(dim, i)
	}
	return e
}

func (e *StubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.calls == nil {
		e.calls = make(map[string]int)
	}
	e.calls[text]++
	e.mu.Unlock()

	if err, ok := e.FailOn[text]; ok {
		return nil, err
	}
	v, ok := e.Vectors[text]
	if !ok {
		v = e.Default
	}
	out := make([]float32, len(v))
	copy(out, v)
	return out, nil
}

func (e *StubEmbedder) Dimension() int { return e.Dim }

// Calls returns how many times text was embedded.
func (e *StubEmbedder) Calls(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[text]
}

// TotalCalls returns the number of Embed calls.
func (e *StubEmbedder) TotalCalls() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, c := range e.calls {
		n += c
	}
	return n
}

// Reset clears the call counters.
func (e *StubEmbedder) Reset() {
	e.mu.Lock()
	e.calls = nil
	e.mu.Unlock()
}
