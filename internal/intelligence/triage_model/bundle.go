package triage_model

import (
	"encoding/json"
	stderrors "errors"
	"io/fs"
	"os"

	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Artifact file names inside a bundle directory.
const (
	FileMotivoVectorizer    = "vectorizer_motivo.json"
	FileExamenVectorizer    = "vectorizer_examen.json"
	FileCombinedVectorizer  = "vectorizer_texto_final.json"
	FileZoneEncoder         = "grupo_zona_encoder.json"
	FileRandomForest        = "modelo_rf.json"
	FileLabelEncoder        = "label_encoder.json"
	FileCanonicalEmbeddings = "canonical_embeddings.json"
)

// RequiredFiles lists the artifacts every bundle must contain.
var RequiredFiles = []string{
	FileMotivoVectorizer,
	FileExamenVectorizer,
	FileCombinedVectorizer,
	FileZoneEncoder,
	FileRandomForest,
	FileLabelEncoder,
}

// CanonicalEmbeddings is the optional export of precomputed canonical term
// vectors.
type CanonicalEmbeddings struct {
	Model      string               `json:"model"`
	Dimension  int                  `json:"dimension"`
	Embeddings map[string][]float32 `json:"embeddings"`
}

// Bundle is the immutable set of artifacts a Pipeline is built from.  It is
// loaded once at startup and shared by every request.
type Bundle struct {
	Vocabulary          *symptom_norm.Vocabulary
	Motivo              *Vectorizer
	Examen              *Vectorizer
	Combined            *Vectorizer
	Zone                *ZoneEncoder
	Forest              *RandomForest
	Labels              *LabelDecoder
	CanonicalEmbeddings *CanonicalEmbeddings
}

// BundleInfo summarizes a loaded bundle.
type BundleInfo struct {
	MotivoDim             int    `json:"motivo_dim"`
	ExamenDim             int    `json:"examen_dim"`
	CombinedDim           int    `json:"combined_dim"`
	ZoneDim               int    `json:"zone_dim"`
	InputDim              int    `json:"input_dim"`
	Trees                 int    `json:"trees"`
	Labels                int    `json:"labels"`
	CanonicalTerms        int    `json:"canonical_terms"`
	EmbeddingModel        string `json:"embedding_model,omitempty"`
	PrecomputedEmbeddings bool   `json:"precomputed_embeddings"`
}

// BundleOption configures LoadBundle.
type BundleOption func(*bundleOptions)

type bundleOptions struct {
	vocab *symptom_norm.Vocabulary
}

// WithVocabulary replaces the built-in canonical vocabulary.
func WithVocabulary(v *symptom_norm.Vocabulary) BundleOption {
	return func(o *bundleOptions) { o.vocab = v }
}

// LoadBundleDir loads a bundle from a directory on disk.
func LoadBundleDir(dir string, opts ...BundleOption) (*Bundle, error) {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, errors.New(errors.ErrCodeArtifactMissing, "artifact directory not found").WithDetail(dir)
	}
	return LoadBundle(os.DirFS(dir), opts...)
}

// LoadBundle reads and cross-checks every artifact in fsys.  Any failure is a
// configuration error.
func LoadBundle(fsys fs.FS, opts ...BundleOption) (*Bundle, error) {
	o := bundleOptions{vocab: symptom_norm.DefaultVocabulary()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.vocab == nil || o.vocab.Len() == 0 {
		return nil, errors.New(errors.ErrCodeVocabularyInvalid, "vocabulary is empty")
	}

	b := &Bundle{Vocabulary: o.vocab}
	var err error

	if b.Motivo, err = loadArtifact(fsys, FileMotivoVectorizer, ParseVectorizer); err != nil {
		return nil, err
	}
	if b.Examen, err = loadArtifact(fsys, FileExamenVectorizer, ParseVectorizer); err != nil {
		return nil, err
	}
	if b.Combined, err = loadArtifact(fsys, FileCombinedVectorizer, ParseVectorizer); err != nil {
		return nil, err
	}
	if b.Zone, err = loadArtifact(fsys, FileZoneEncoder, ParseZoneEncoder); err != nil {
		return nil, err
	}
	if b.Forest, err = loadArtifact(fsys, FileRandomForest, ParseRandomForest); err != nil {
		return nil, err
	}
	if b.Labels, err = loadArtifact(fsys, FileLabelEncoder, ParseLabelDecoder); err != nil {
		return nil, err
	}
	if b.CanonicalEmbeddings, err = loadCanonicalEmbeddings(fsys, o.vocab); err != nil {
		return nil, err
	}

	if err := b.check(); err != nil {
		return nil, err
	}
	return b, nil
}

func loadArtifact[T any](fsys fs.FS, name string, parse func(string, []byte) (T, error)) (T, error) {
	var zero T
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return zero, errors.New(errors.ErrCodeArtifactMissing, "artifact not found").WithDetail(name)
		}
		return zero, errors.Wrap(err, errors.ErrCodeArtifactMissing, "read artifact").WithDetail(name)
	}
	return parse(name, data)
}

func loadCanonicalEmbeddings(fsys fs.FS, vocab *symptom_norm.Vocabulary) (*CanonicalEmbeddings, error) {
	data, err := fs.ReadFile(fsys, FileCanonicalEmbeddings)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactMissing, "read artifact").WithDetail(FileCanonicalEmbeddings)
	}
	var ce CanonicalEmbeddings
	if err := json.Unmarshal(data, &ce); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactCorrupt, "decode canonical embeddings").
			WithDetail(FileCanonicalEmbeddings)
	}
	if ce.Dimension <= 0 {
		return nil, corrupt(FileCanonicalEmbeddings, "dimension must be positive")
	}
	for term, vec := range ce.Embeddings {
		if !vocab.IsCanonical(term) {
			return nil, corrupt(FileCanonicalEmbeddings, "embedding for unknown canonical term "+term)
		}
		if len(vec) != ce.Dimension {
			return nil, errors.Newf(errors.ErrCodeEmbeddingDimensionMismatch,
				"canonical embedding of %q has dimension %d, file declares %d", term, len(vec), ce.Dimension)
		}
	}
	return &ce, nil
}

// check verifies the cross-artifact invariants: the fused vector length equals
// the forest input and every forest class decodes to a label.
func (b *Bundle) check() error {
	fused := NewFeatureFusion(b.Motivo, b.Examen, b.Combined, b.Zone).Dimension()
	if fused != b.Forest.InputDimension() {
		return errors.Newf(errors.ErrCodeFeatureDimensionMismatch,
			"fused feature vector has %d entries, classifier expects %d", fused, b.Forest.InputDimension())
	}
	for _, c := range b.Forest.classes {
		if c < 0 || c >= b.Labels.Len() {
			return errors.Newf(errors.ErrCodeArtifactCorrupt,
				"classifier class %d has no label (labels: %d)", c, b.Labels.Len())
		}
	}
	return nil
}

// Info summarizes b.
func (b *Bundle) Info() BundleInfo {
	info := BundleInfo{
		MotivoDim:      b.Motivo.Dimension(),
		ExamenDim:      b.Examen.Dimension(),
		CombinedDim:    b.Combined.Dimension(),
		ZoneDim:        b.Zone.Dimension(),
		InputDim:       b.Forest.InputDimension(),
		Trees:          len(b.Forest.trees),
		Labels:         b.Labels.Len(),
		CanonicalTerms: b.Vocabulary.Len(),
	}
	if b.CanonicalEmbeddings != nil {
		info.EmbeddingModel = b.CanonicalEmbeddings.Model
		info.PrecomputedEmbeddings = true
	}
	return info
}
