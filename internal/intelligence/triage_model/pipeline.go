package triage_model

import (
	"context"
	"time"

	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Prediction is the outcome of one pipeline run.
type Prediction struct {
	Label            string            `json:"label"`
	Zone             symptom_norm.Zone `json:"-"`
	ZoneLabel        string            `json:"zone"`
	MotivoNormalized string            `json:"motivo_normalized"`
	ExamenNormalized string            `json:"examen_normalized"`
}

// Normalization is the text-only part of a prediction.
type Normalization struct {
	Motivo    symptom_norm.NormalizedText `json:"motivo"`
	Examen    symptom_norm.NormalizedText `json:"examen"`
	Zone      symptom_norm.Zone           `json:"-"`
	ZoneLabel string                      `json:"zone"`
}

// Recorder receives pipeline outcomes.  It is satisfied by
// *prometheus.TriageMetrics.
type Recorder interface {
	RecordPrediction(source, zone string, err error, d time.Duration)
	RecordStage(stage string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordPrediction(string, string, error, time.Duration) {}
func (nopRecorder) RecordStage(string, time.Duration)                     {}

// Stage names reported in addition to the normalizer stages.
const (
	StageZone     = "zone"
	StageFusion   = "fusion"
	StageClassify = "classify"
)

// Prediction sources.
const (
	SourceAPI    = "api"
	SourceGRPC   = "grpc"
	SourceWorker = "worker"
	SourceCLI    = "cli"
)

type sourceKey struct{}

// WithSource tags ctx with the channel a prediction came through.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the channel set by WithSource, or SourceAPI.
func SourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceAPI
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline runs validation, normalization, zone classification, feature
// fusion, classification and label decoding.  It keeps no per-request state
// and is safe for concurrent use.
type Pipeline struct {
	bundle     *Bundle
	normalizer *symptom_norm.Normalizer
	fusion     *FeatureFusion
	classifier Classifier
	labels     *LabelDecoder
	rec        Recorder
	logger     logging.Logger
}

// PipelineOption configures NewPipeline.
type PipelineOption func(*pipelineOptions)

type pipelineOptions struct {
	threshold  float64
	classifier Classifier
	rec        Recorder
	logger     logging.Logger
}

// WithSimilarityThreshold overrides the semantic matching threshold.
func WithSimilarityThreshold(t float64) PipelineOption {
	return func(o *pipelineOptions) { o.threshold = t }
}

// WithClassifier replaces the bundled random forest.
func WithClassifier(c Classifier) PipelineOption {
	return func(o *pipelineOptions) { o.classifier = c }
}

// WithRecorder reports prediction outcomes and stage latencies.
func WithRecorder(r Recorder) PipelineOption {
	return func(o *pipelineOptions) { o.rec = r }
}

// WithLogger sets the pipeline logger.
func WithLogger(l logging.Logger) PipelineOption {
	return func(o *pipelineOptions) { o.logger = l }
}

// NewPipeline computes (or adopts) the canonical embeddings and checks every
// dimension.  Errors are configuration errors and should abort startup.
func NewPipeline(ctx context.Context, bundle *Bundle, embedder symptom_norm.Embedder, opts ...PipelineOption) (*Pipeline, error) {
	if bundle == nil {
		return nil, errors.Configuration("artifact bundle is required")
	}
	o := pipelineOptions{
		threshold: symptom_norm.DefaultSimilarityThreshold,
		rec:       nopRecorder{},
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	semOpts := []symptom_norm.SemanticOption{symptom_norm.WithThreshold(o.threshold)}
	if ce := bundle.CanonicalEmbeddings; ce != nil {
		if embedder != nil && ce.Dimension != embedder.Dimension() {
			return nil, errors.Newf(errors.ErrCodeEmbeddingDimensionMismatch,
				"canonical embeddings have dimension %d, embedder produces %d", ce.Dimension, embedder.Dimension())
		}
		semOpts = append(semOpts, symptom_norm.WithPrecomputedEmbeddings(ce.Embeddings))
	}
	semantic, err := symptom_norm.NewSemanticCanonicalizer(ctx, bundle.Vocabulary, embedder, semOpts...)
	if err != nil {
		return nil, err
	}

	classifier := o.classifier
	if classifier == nil {
		classifier = bundle.Forest
	}
	fusion := NewFeatureFusion(bundle.Motivo, bundle.Examen, bundle.Combined, bundle.Zone)
	if fusion.Dimension() != classifier.InputDimension() {
		return nil, errors.Newf(errors.ErrCodeFeatureDimensionMismatch,
			"fused feature vector has %d entries, classifier expects %d", fusion.Dimension(), classifier.InputDimension())
	}

	p := &Pipeline{
		bundle:     bundle,
		normalizer: symptom_norm.NewNormalizer(bundle.Vocabulary, semantic, o.rec.RecordStage),
		fusion:     fusion,
		classifier: classifier,
		labels:     bundle.Labels,
		rec:        o.rec,
		logger:     o.logger,
	}
	p.logger.Info("triage pipeline ready",
		logging.Int("feature_dim", fusion.Dimension()),
		logging.Int("canonical_terms", bundle.Vocabulary.Len()),
		logging.Bool("precomputed_embeddings", bundle.CanonicalEmbeddings != nil),
		logging.Float64("similarity_threshold", o.threshold),
	)
	return p, nil
}

// Bundle returns the artifacts the pipeline was built from.
func (p *Pipeline) Bundle() *Bundle { return p.bundle }

// FeatureDimension returns the classifier input length.
func (p *Pipeline) FeatureDimension() int { return p.fusion.Dimension() }

// Normalize canonicalizes both texts and classifies the zone of their
// combination without running the classifier.
func (p *Pipeline) Normalize(ctx context.Context, motivo, examen string) (*Normalization, error) {
	m, err := p.normalizer.Normalize(ctx, motivo)
	if err != nil {
		return nil, err
	}
	e, err := p.normalizer.Normalize(ctx, examen)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	zone := symptom_norm.ClassifyZone(CombinedText(m.Normalized, e.Normalized))
	p.rec.RecordStage(StageZone, time.Since(start))
	return &Normalization{Motivo: m, Examen: e, Zone: zone, ZoneLabel: zone.Label()}, nil
}

// Predict runs the whole pipeline for one request.
func (p *Pipeline) Predict(ctx context.Context, vitals VitalsRecord, motivo, examen string) (pred *Prediction, err error) {
	start := time.Now()
	zoneLabel := ""
	defer func() {
		p.rec.RecordPrediction(SourceFrom(ctx), zoneLabel, err, time.Since(start))
		if err != nil {
			p.logger.Warn("prediction failed",
				logging.String(logging.FieldErrorCode, string(errors.GetCode(err))),
				logging.String("kind", errors.KindOf(err).String()),
				logging.Duration("elapsed", time.Since(start)),
			)
		}
	}()

	if err := vitals.Validate(); err != nil {
		return nil, err
	}

	norm, err := p.Normalize(ctx, motivo, examen)
	if err != nil {
		return nil, err
	}
	zoneLabel = norm.ZoneLabel

	t := time.Now()
	features, err := p.fusion.Build(vitals, norm.Motivo.Normalized, norm.Examen.Normalized, norm.Zone)
	p.rec.RecordStage(StageFusion, time.Since(t))
	if err != nil {
		return nil, err
	}

	t = time.Now()
	class, err := p.classifier.Predict(ctx, features)
	p.rec.RecordStage(StageClassify, time.Since(t))
	if err != nil {
		if errors.GetCode(err) == errors.CodeUnknown {
			err = errors.Wrap(err, errors.ErrCodeClassifierFailed, "classifier failed")
		}
		return nil, err
	}
	label, err := p.labels.Decode(class)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("prediction complete",
		logging.String("zone", norm.ZoneLabel),
		logging.String("label", label),
		logging.Int("motivo_len", len(motivo)),
		logging.Int("examen_len", len(examen)),
		logging.Duration("elapsed", time.Since(start)),
	)
	return &Prediction{
		Label:            label,
		Zone:             norm.Zone,
		ZoneLabel:        norm.ZoneLabel,
		MotivoNormalized: norm.Motivo.Normalized,
		ExamenNormalized: norm.Examen.Normalized,
	}, nil
}
