// Package triage provides the application service behind the HTTP, gRPC,
// worker and CLI entry points: it runs the prediction pipeline, stores the
// resulting diagnoses and vital signs, and announces stored diagnoses.
package triage

import (
	"context"
	"strings"
	"time"

	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/domain/vitals"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/redis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Predictor runs the triage pipeline.  It is satisfied by
// *triage_model.Pipeline.
type Predictor interface {
	Predict(ctx context.Context, v triage_model.VitalsRecord, motivo, examen string) (*triage_model.Prediction, error)
	Normalize(ctx context.Context, motivo, examen string) (*triage_model.Normalization, error)
}

// EventPublisher announces stored diagnoses.  It is satisfied by
// *kafka.Producer.
type EventPublisher interface {
	PublishEvent(ctx context.Context, topic, key, eventType string, payload interface{}) error
}

// Service defines the triage application operations.
type Service interface {
	Predict(ctx context.Context, input *PredictInput) (*diagnosis.Diagnosis, error)
	PredictForPatient(ctx context.Context, input *PatientPredictInput) (*diagnosis.Diagnosis, error)
	Normalize(ctx context.Context, input *NormalizeInput) (*triage_model.Normalization, error)

	RecordVitals(ctx context.Context, dni string, rec triage_model.VitalsRecord) (*vitals.VitalSigns, error)
	ListVitals(ctx context.Context, dni string) ([]*vitals.VitalSigns, error)

	GetDiagnosis(ctx context.Context, id string) (*diagnosis.Diagnosis, error)
	ListDiagnoses(ctx context.Context, input *ListInput) (*ListResult, error)
	UpdateNotes(ctx context.Context, id string, notes diagnosis.ClinicalNotes) (*diagnosis.Diagnosis, error)
	DeleteDiagnosis(ctx context.Context, id string) error
	ListPatientDiagnoses(ctx context.Context, dni string) ([]*diagnosis.Diagnosis, error)
	LatestPatientDiagnosis(ctx context.Context, dni string) (*diagnosis.Diagnosis, error)
}

// PredictInput contains the input of a prediction from explicit vitals.
type PredictInput struct {
	DNI            string
	Vitals         triage_model.VitalsRecord
	MotivoConsulta string
	ExamenFisico   string
	Notes          diagnosis.ClinicalNotes
}

// PatientPredictInput contains the input of a prediction from the patient's
// latest recorded vital signs.
type PatientPredictInput struct {
	DNI            string
	MotivoConsulta string
	ExamenFisico   string
	Notes          diagnosis.ClinicalNotes
}

// NormalizeInput contains the texts to normalize.
type NormalizeInput struct {
	MotivoConsulta string
	ExamenFisico   string
}

// ListInput contains pagination parameters.
type ListInput struct {
	Offset int
	Limit  int
}

// ListResult is a page of diagnoses.
type ListResult struct {
	Items  []*diagnosis.Diagnosis `json:"items"`
	Total  int64                  `json:"total"`
	Offset int                    `json:"offset"`
	Limit  int                    `json:"limit"`
}

// DefaultCacheTTL is how long a fetched diagnosis stays cached.
const DefaultCacheTTL = 10 * time.Minute

const cacheKeyPrefix = "diagnosis:"

type serviceImpl struct {
	predictor Predictor
	diagnoses diagnosis.Repository
	vitals    vitals.Repository

	publisher  EventPublisher
	eventTopic string
	cache      redis.Cache
	cacheTTL   time.Duration
	logger     logging.Logger
}

// Option configures NewService.
type Option func(*serviceImpl)

// WithPublisher announces every stored diagnosis on topic.
func WithPublisher(p EventPublisher, topic string) Option {
	return func(s *serviceImpl) {
		s.publisher = p
		s.eventTopic = topic
	}
}

// WithCache caches GetDiagnosis results.
func WithCache(c redis.Cache, ttl time.Duration) Option {
	return func(s *serviceImpl) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l logging.Logger) Option {
	return func(s *serviceImpl) { s.logger = l }
}

// NewService creates the triage service.  diagnoses and vitalsRepo may be
// nil when persistence is disabled; predictions are then returned without
// being stored and record operations fail with a configuration error.
func NewService(predictor Predictor, diagnoses diagnosis.Repository, vitalsRepo vitals.Repository, opts ...Option) Service {
	s := &serviceImpl{
		predictor: predictor,
		diagnoses: diagnoses,
		vitals:    vitalsRepo,
		cacheTTL:  DefaultCacheTTL,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var errPersistenceDisabled = errors.Configuration("persistence is not configured")

// ---------------------------------------------------------------------------
// Predictions
// ---------------------------------------------------------------------------

func (s *serviceImpl) Predict(ctx context.Context, input *PredictInput) (*diagnosis.Diagnosis, error) {
	dni := strings.TrimSpace(input.DNI)
	if dni != "" {
		if err := vitals.ValidateDNI(dni); err != nil {
			return nil, err
		}
	}
	if err := input.Notes.Validate(); err != nil {
		return nil, err
	}
	return s.predict(ctx, dni, input.Vitals, input.MotivoConsulta, input.ExamenFisico, input.Notes)
}

func (s *serviceImpl) PredictForPatient(ctx context.Context, input *PatientPredictInput) (*diagnosis.Diagnosis, error) {
	dni := strings.TrimSpace(input.DNI)
	if err := vitals.ValidateDNI(dni); err != nil {
		return nil, err
	}
	if err := input.Notes.Validate(); err != nil {
		return nil, err
	}
	if s.vitals == nil {
		return nil, errPersistenceDisabled
	}
	latest, err := s.vitals.LatestByDNI(ctx, dni)
	if err != nil {
		return nil, err
	}
	return s.predict(ctx, dni, latest.VitalsRecord, input.MotivoConsulta, input.ExamenFisico, input.Notes)
}

func (s *serviceImpl) predict(ctx context.Context, dni string, v triage_model.VitalsRecord, motivo, examen string, notes diagnosis.ClinicalNotes) (*diagnosis.Diagnosis, error) {
	pred, err := s.predictor.Predict(ctx, v, motivo, examen)
	if err != nil {
		return nil, err
	}
	d := diagnosis.New(dni, v, motivo, examen, pred, triage_model.SourceFrom(ctx))
	if !notes.Empty() {
		if err := d.ApplyNotes(notes); err != nil {
			return nil, err
		}
	}
	if s.diagnoses == nil {
		return d, nil
	}
	if err := s.diagnoses.Create(ctx, d); err != nil {
		s.logger.Error("failed to store diagnosis", logging.String("id", d.ID), logging.Err(err))
		return nil, err
	}
	s.publishCreated(ctx, d)
	return d, nil
}

// publishCreated announces d.  A broker failure is logged and does not fail
// the prediction, which is already stored.
func (s *serviceImpl) publishCreated(ctx context.Context, d *diagnosis.Diagnosis) {
	if s.publisher == nil {
		return
	}
	ev := diagnosis.NewCreatedEvent(d)
	key := d.DNI
	if key == "" {
		key = d.ID
	}
	if err := s.publisher.PublishEvent(ctx, s.eventTopic, key, ev.EventType, ev); err != nil {
		s.logger.Warn("failed to publish diagnosis event",
			logging.String("diagnosis_id", d.ID),
			logging.String(logging.FieldErrorCode, string(errors.GetCode(err))),
			logging.Err(err))
	}
}

func (s *serviceImpl) Normalize(ctx context.Context, input *NormalizeInput) (*triage_model.Normalization, error) {
	return s.predictor.Normalize(ctx, input.MotivoConsulta, input.ExamenFisico)
}

// ---------------------------------------------------------------------------
// Vital signs
// ---------------------------------------------------------------------------

func (s *serviceImpl) RecordVitals(ctx context.Context, dni string, rec triage_model.VitalsRecord) (*vitals.VitalSigns, error) {
	v, err := vitals.New(dni, rec)
	if err != nil {
		return nil, err
	}
	if s.vitals == nil {
		return nil, errPersistenceDisabled
	}
	if err := s.vitals.Save(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *serviceImpl) ListVitals(ctx context.Context, dni string) ([]*vitals.VitalSigns, error) {
	dni = strings.TrimSpace(dni)
	if err := vitals.ValidateDNI(dni); err != nil {
		return nil, err
	}
	if s.vitals == nil {
		return nil, errPersistenceDisabled
	}
	return s.vitals.ListByDNI(ctx, dni)
}

// ---------------------------------------------------------------------------
// Diagnosis records
// ---------------------------------------------------------------------------

func (s *serviceImpl) GetDiagnosis(ctx context.Context, id string) (*diagnosis.Diagnosis, error) {
	if s.diagnoses == nil {
		return nil, errPersistenceDisabled
	}
	if s.cache == nil {
		return s.diagnoses.GetByID(ctx, id)
	}
	var d diagnosis.Diagnosis
	err := s.cache.GetOrSet(ctx, cacheKeyPrefix+id, &d, s.cacheTTL, func(ctx context.Context) (interface{}, error) {
		return s.diagnoses.GetByID(ctx, id)
	})
	switch {
	case err == nil:
		return &d, nil
	case redis.IsCacheMiss(err), errors.IsCode(err, errors.ErrCodeCacheError), errors.IsCode(err, errors.ErrCodeSerialization):
		// Redis outage: serve from the database.
		s.logger.Warn("diagnosis cache unavailable", logging.Err(err))
		return s.diagnoses.GetByID(ctx, id)
	default:
		return nil, err
	}
}

func (s *serviceImpl) ListDiagnoses(ctx context.Context, input *ListInput) (*ListResult, error) {
	if s.diagnoses == nil {
		return nil, errPersistenceDisabled
	}
	opts := diagnosis.ApplyOptions(diagnosis.WithPagination(input.Offset, input.Limit))
	items, total, err := s.diagnoses.List(ctx, diagnosis.WithPagination(opts.Offset, opts.Limit))
	if err != nil {
		return nil, err
	}
	return &ListResult{Items: items, Total: total, Offset: opts.Offset, Limit: opts.Limit}, nil
}

func (s *serviceImpl) UpdateNotes(ctx context.Context, id string, notes diagnosis.ClinicalNotes) (*diagnosis.Diagnosis, error) {
	if notes.Empty() {
		return nil, errors.Validation("no notes to update")
	}
	if err := notes.Validate(); err != nil {
		return nil, err
	}
	if s.diagnoses == nil {
		return nil, errPersistenceDisabled
	}
	d, err := s.diagnoses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := d.ApplyNotes(notes); err != nil {
		return nil, err
	}
	if err := s.diagnoses.UpdateNotes(ctx, d); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)
	return d, nil
}

func (s *serviceImpl) DeleteDiagnosis(ctx context.Context, id string) error {
	if s.diagnoses == nil {
		return errPersistenceDisabled
	}
	if err := s.diagnoses.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	return nil
}

func (s *serviceImpl) ListPatientDiagnoses(ctx context.Context, dni string) ([]*diagnosis.Diagnosis, error) {
	dni = strings.TrimSpace(dni)
	if err := vitals.ValidateDNI(dni); err != nil {
		return nil, err
	}
	if s.diagnoses == nil {
		return nil, errPersistenceDisabled
	}
	return s.diagnoses.ListByDNI(ctx, dni)
}

func (s *serviceImpl) LatestPatientDiagnosis(ctx context.Context, dni string) (*diagnosis.Diagnosis, error) {
	dni = strings.TrimSpace(dni)
	if err := vitals.ValidateDNI(dni); err != nil {
		return nil, err
	}
	if s.diagnoses == nil {
		return nil, errPersistenceDisabled
	}
	return s.diagnoses.LatestByDNI(ctx, dni)
}

func (s *serviceImpl) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKeyPrefix+id); err != nil {
		s.logger.Warn("failed to invalidate cached diagnosis", logging.String("id", id), logging.Err(err))
	}
}
