package symptom_norm

import (
	"context"
	"time"
)

// Stage names reported to a StageObserver.
const (
	StageSanitize = "sanitize"
	StageLexical  = "lexical"
	StageSemantic = "semantic"
)

// NormalizedText pairs a raw field with its canonical rendering.
type NormalizedText struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
}

// StageObserver receives the latency of each normalization stage.
type StageObserver func(stage string, d time.Duration)

// Normalizer runs sanitize, lexical and semantic canonicalization in order.
// It holds no per-call state.
type Normalizer struct {
	vocab    *Vocabulary
	semantic *SemanticCanonicalizer
	observe  StageObserver
}

// NewNormalizer wires a Normalizer.  observe may be nil.
func NewNormalizer(vocab *Vocabulary, semantic *SemanticCanonicalizer, observe StageObserver) *Normalizer {
	if observe == nil {
		observe = func(string, time.Duration) {}
	}
	return &Normalizer{vocab: vocab, semantic: semantic, observe: observe}
}

// Vocabulary returns the vocabulary in use.
func (n *Normalizer) Vocabulary() *Vocabulary { return n.vocab }

// Normalize produces the canonical rendering of text.
func (n *Normalizer) Normalize(ctx context.Context, text string) (NormalizedText, error) {
	out := NormalizedText{Original: text}

	start := time.Now()
	s := Sanitize(text)
	n.observe(StageSanitize, time.Since(start))

	start = time.Now()
	s = CanonicalizeLexical(s, n.vocab)
	n.observe(StageLexical, time.Since(start))

	start = time.Now()
	s, err := n.semantic.Canonicalize(ctx, s)
	n.observe(StageSemantic, time.Since(start))
	if err != nil {
		return out, err
	}
	out.Normalized = s
	return out, nil
}
