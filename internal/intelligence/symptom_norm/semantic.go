package symptom_norm

import (
	"context"
	"math"
	"strings"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

// DefaultSimilarityThreshold is the cosine similarity a token must strictly
// exceed to be replaced by its closest canonical term.
const DefaultSimilarityThreshold = 0.75

// Embedder maps text to a fixed-dimension vector.  Implementations must be
// safe for concurrent use and deterministic for identical input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// ---------------------------------------------------------------------------
// SemanticCanonicalizer
// ---------------------------------------------------------------------------

// SemanticCanonicalizer replaces tokens with the canonical term whose
// embedding is most similar.  Canonical embeddings are fixed at construction
// and shared read-only by all callers.
type SemanticCanonicalizer struct {
	vocab     *Vocabulary
	embedder  Embedder
	threshold float64
	vectors   [][]float64
	norms     []float64
}

// SemanticOption configures a SemanticCanonicalizer.
type SemanticOption func(*semanticOptions)

type semanticOptions struct {
	threshold   float64
	precomputed map[string][]float32
}

// WithThreshold overrides DefaultSimilarityThreshold.
func WithThreshold(t float64) SemanticOption {
	return func(o *semanticOptions) { o.threshold = t }
}

// WithPrecomputedEmbeddings supplies canonical embeddings exported alongside
// the model artifacts.  Terms missing from m are embedded at construction.
func WithPrecomputedEmbeddings(m map[string][]float32) SemanticOption {
	return func(o *semanticOptions) { o.precomputed = m }
}

// NewSemanticCanonicalizer computes (or adopts) one embedding per canonical
// term and checks that every vector has the embedder's dimension.
func NewSemanticCanonicalizer(ctx context.Context, vocab *Vocabulary, embedder Embedder, opts ...SemanticOption) (*SemanticCanonicalizer, error) {
	if vocab == nil || vocab.Len() == 0 {
		return nil, errors.New(errors.ErrCodeVocabularyInvalid, "vocabulary is empty")
	}
	if embedder == nil {
		return nil, errors.Configuration("embedder is required")
	}
	o := semanticOptions{threshold: DefaultSimilarityThreshold}
	for _, opt := range opts {
		opt(&o)
	}

	dim := embedder.Dimension()
	if dim <= 0 {
		return nil, errors.Newf(errors.ErrCodeEmbeddingDimensionMismatch, "embedder reports dimension %d", dim)
	}

	s := &SemanticCanonicalizer{
		vocab:     vocab,
		embedder:  embedder,
		threshold: o.threshold,
		vectors:   make([][]float64, vocab.Len()),
		norms:     make([]float64, vocab.Len()),
	}
	for i, t := range vocab.terms {
		vec, ok := o.precomputed[t.Term]
		if !ok {
			var err error
			vec, err = embedder.Embed(ctx, t.Term)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "embed canonical term").
					WithDetail(t.Term)
			}
		}
		if len(vec) != dim {
			return nil, errors.Newf(errors.ErrCodeEmbeddingDimensionMismatch,
				"canonical term %q has dimension %d, embedder produces %d", t.Term, len(vec), dim)
		}
		s.vectors[i] = toFloat64(vec)
		s.norms[i] = l2(s.vectors[i])
	}
	return s, nil
}

// Threshold returns the similarity threshold in use.
func (s *SemanticCanonicalizer) Threshold() float64 { return s.threshold }

// CanonicalEmbedding returns a copy of the stored embedding of term.
func (s *SemanticCanonicalizer) CanonicalEmbedding(term string) ([]float64, bool) {
	i, ok := s.vocab.Index(term)
	if !ok {
		return nil, false
	}
	out := make([]float64, len(s.vectors[i]))
	copy(out, s.vectors[i])
	return out, true
}

// Canonicalize splits text on whitespace and replaces every non-canonical
// token whose best cosine similarity strictly exceeds the threshold.  Ties go
// to the earliest canonical term.  Tokens equal to a canonical term are never
// embedded.  Any embedder failure aborts the call.
func (s *SemanticCanonicalizer) Canonicalize(ctx context.Context, text string) (string, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return "", nil
	}

	resolved := make(map[string]string, len(tokens))
	for i, tok := range tokens {
		if s.vocab.IsCanonical(tok) {
			continue
		}
		if r, ok := resolved[tok]; ok {
			tokens[i] = r
			continue
		}
		best, sim, err := s.Nearest(ctx, tok)
		if err != nil {
			return "", err
		}
		r := tok
		if sim > s.threshold {
			r = best
		}
		resolved[tok] = r
		tokens[i] = r
	}
	return strings.Join(tokens, " "), nil
}

// Nearest returns the canonical term most similar to token and its cosine
// similarity.
func (s *SemanticCanonicalizer) Nearest(ctx context.Context, token string) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, errors.Wrap(err, errors.ErrCodeTimeout, "semantic canonicalization cancelled")
	}
	vec, err := s.embedder.Embed(ctx, token)
	if err != nil {
		if errors.GetCode(err) == errors.CodeUnknown {
			return "", 0, errors.Wrap(err, errors.ErrCodeEmbeddingFailed, "embed token")
		}
		return "", 0, err
	}
	if len(vec) != len(s.vectors[0]) {
		return "", 0, errors.Newf(errors.ErrCodeEmbeddingFailed,
			"embedder returned dimension %d, expected %d", len(vec), len(s.vectors[0]))
	}

	q := toFloat64(vec)
	qn := l2(q)
	bestIdx, bestSim := 0, math.Inf(-1)
	for i, c := range s.vectors {
		sim := cosine(q, qn, c, s.norms[i])
		if sim > bestSim {
			bestIdx, bestSim = i, sim
		}
	}
	return s.vocab.Term(bestIdx), bestSim, nil
}

// ---------------------------------------------------------------------------
// vector helpers
// ---------------------------------------------------------------------------

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func l2(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// cosine returns 0 when either vector has zero norm.
func cosine(a []float64, an float64, b []float64, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot / (an * bn)
}
