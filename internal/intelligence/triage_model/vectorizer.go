package triage_model

import (
	"encoding/json"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

var tokenPattern = regexp.MustCompile(`\b\w\w+\b`)

// SparseVector is a fixed-dimension vector holding only non-zero entries,
// sorted by index.
type SparseVector struct {
	Dim     int
	Indices []int
	Values  []float64
}

// AppendDense appends the dense form of v, each value multiplied by scale,
// to dst.
func (v SparseVector) AppendDense(dst []float64, scale float64) []float64 {
	start := len(dst)
	dst = append(dst, make([]float64, v.Dim)...)
	for i, idx := range v.Indices {
		dst[start+idx] = v.Values[i] * scale
	}
	return dst
}

// Dense returns the dense form of v.
func (v SparseVector) Dense() []float64 { return v.AppendDense(nil, 1) }

// ---------------------------------------------------------------------------
// TF-IDF vectorizer
// ---------------------------------------------------------------------------

type vectorizerFile struct {
	Vocabulary  map[string]int `json:"vocabulary"`
	IDF         []float64      `json:"idf"`
	NgramRange  []int          `json:"ngram_range"`
	Norm        *string        `json:"norm"`
	SublinearTF bool           `json:"sublinear_tf"`
	Binary      bool           `json:"binary"`
}

// Vectorizer turns normalized text into a TF-IDF weighted term vector over a
// fitted vocabulary.  It is immutable and safe for concurrent use.
type Vectorizer struct {
	name        string
	vocab       map[string]int
	idf         []float64
	minN, maxN  int
	norm        string
	sublinearTF bool
	binary      bool
}

// ParseVectorizer decodes a vectorizer export.  name identifies the artifact
// in error messages.
func ParseVectorizer(name string, data []byte) (*Vectorizer, error) {
	var f vectorizerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactCorrupt, "decode vectorizer").WithDetail(name)
	}
	if len(f.Vocabulary) == 0 {
		return nil, corrupt(name, "vocabulary is empty")
	}
	dim := len(f.Vocabulary)
	seen := make([]bool, dim)
	for term, idx := range f.Vocabulary {
		if idx < 0 || idx >= dim || seen[idx] {
			return nil, corrupt(name, "vocabulary index out of range or duplicated for "+term)
		}
		seen[idx] = true
	}
	if f.IDF != nil && len(f.IDF) != dim {
		return nil, corrupt(name, "idf length does not match vocabulary size")
	}

	v := &Vectorizer{
		name:        name,
		vocab:       f.Vocabulary,
		idf:         f.IDF,
		minN:        1,
		maxN:        1,
		norm:        "l2",
		sublinearTF: f.SublinearTF,
		binary:      f.Binary,
	}
	if len(f.NgramRange) != 0 {
		if len(f.NgramRange) != 2 || f.NgramRange[0] < 1 || f.NgramRange[1] < f.NgramRange[0] {
			return nil, corrupt(name, "ngram_range must be [min, max] with 1 <= min <= max")
		}
		v.minN, v.maxN = f.NgramRange[0], f.NgramRange[1]
	}
	if f.Norm != nil {
		switch *f.Norm {
		case "l1", "l2", "":
			v.norm = *f.Norm
		default:
			return nil, corrupt(name, "unsupported norm "+*f.Norm)
		}
	}
	return v, nil
}

func corrupt(name, msg string) error {
	return errors.New(errors.ErrCodeArtifactCorrupt, msg).WithDetail(name)
}

// Name returns the artifact name the vectorizer was loaded from.
func (v *Vectorizer) Name() string { return v.name }

// Dimension returns the vocabulary size.
func (v *Vectorizer) Dimension() int { return len(v.vocab) }

// Transform vectorizes text.  Terms outside the vocabulary are ignored; text
// without known terms yields the zero vector.
func (v *Vectorizer) Transform(text string) SparseVector {
	counts := make(map[int]float64)
	tokens := tokenPattern.FindAllString(strings.ToLower(text), -1)
	for n := v.minN; n <= v.maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			gram := tokens[i]
			if n > 1 {
				gram = strings.Join(tokens[i:i+n], " ")
			}
			if idx, ok := v.vocab[gram]; ok {
				counts[idx]++
			}
		}
	}

	out := SparseVector{Dim: len(v.vocab)}
	if len(counts) == 0 {
		return out
	}
	out.Indices = make([]int, 0, len(counts))
	for idx := range counts {
		out.Indices = append(out.Indices, idx)
	}
	sort.Ints(out.Indices)
	out.Values = make([]float64, len(out.Indices))
	for i, idx := range out.Indices {
		tf := counts[idx]
		switch {
		case v.binary:
			tf = 1
		case v.sublinearTF:
			tf = 1 + math.Log(tf)
		}
		if v.idf != nil {
			tf *= v.idf[idx]
		}
		out.Values[i] = tf
	}
	normalize(out.Values, v.norm)
	return out
}

func normalize(values []float64, norm string) {
	var total float64
	switch norm {
	case "l2":
		for _, x := range values {
			total += x * x
		}
		total = math.Sqrt(total)
	case "l1":
		for _, x := range values {
			total += math.Abs(x)
		}
	default:
		return
	}
	if total == 0 {
		return
	}
	for i := range values {
		values[i] /= total
	}
}
