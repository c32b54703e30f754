// Package messaging adapts Kafka messages to triage application calls.
package messaging

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	apptriage "github.com/Sira-Clinica/backend/internal/application/triage"
	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/messaging/kafka"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// EventTypePredictionRequested names a queued prediction request.
const EventTypePredictionRequested = "triage.prediction.requested"

// DefaultHandlerTimeout bounds one prediction.
const DefaultHandlerTimeout = 30 * time.Second

// PredictionRequest is the payload of a queued prediction.  When Vitals is
// absent the patient's latest recorded vital signs are used, which requires
// a DNI.
type PredictionRequest struct {
	RequestID      string                  `json:"request_id,omitempty"`
	DNI            string                  `json:"dni,omitempty"`
	Vitals         map[string]interface{}  `json:"vitals,omitempty"`
	MotivoConsulta string                  `json:"motivo_consulta"`
	ExamenFisico   string                  `json:"examenfisico"`
	Notes          diagnosis.ClinicalNotes `json:"notes"`
}

// PredictionHandler runs queued prediction requests.
type PredictionHandler struct {
	svc     apptriage.Service
	timeout time.Duration
	logger  logging.Logger
}

// NewPredictionHandler creates a PredictionHandler.  A non-positive timeout
// selects DefaultHandlerTimeout.
func NewPredictionHandler(svc apptriage.Service, timeout time.Duration, log logging.Logger) *PredictionHandler {
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &PredictionHandler{svc: svc, timeout: timeout, logger: log.Named("prediction-handler")}
}

// Topic returns the default request topic.
func (h *PredictionHandler) Topic() string { return kafka.TopicPredictionRequested }

// Handle decodes msg and stores the resulting diagnosis.  The message may
// carry an event envelope or the bare request.
func (h *PredictionHandler) Handle(ctx context.Context, msg *kafka.Message) error {
	req, err := DecodeRequest(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(triage_model.WithSource(ctx, triage_model.SourceWorker), h.timeout)
	defer cancel()

	var d *diagnosis.Diagnosis
	if req.Vitals == nil {
		d, err = h.svc.PredictForPatient(ctx, &apptriage.PatientPredictInput{
			DNI:            req.DNI,
			MotivoConsulta: req.MotivoConsulta,
			ExamenFisico:   req.ExamenFisico,
			Notes:          req.Notes,
		})
	} else {
		var v triage_model.VitalsRecord
		if v, err = triage_model.DecodeVitals(req.Vitals); err != nil {
			return err
		}
		d, err = h.svc.Predict(ctx, &apptriage.PredictInput{
			DNI:            req.DNI,
			Vitals:         v,
			MotivoConsulta: req.MotivoConsulta,
			ExamenFisico:   req.ExamenFisico,
			Notes:          req.Notes,
		})
	}
	if err != nil {
		return err
	}

	h.logger.Info("queued prediction stored",
		logging.String("request_id", req.RequestID),
		logging.String("diagnosis_id", d.ID),
		logging.String("zone", d.Zona),
		logging.Int64("offset", msg.Offset))
	return nil
}

// DecodeRequest reads a PredictionRequest from an envelope payload or, when
// the value is not an envelope, from the raw value.
func DecodeRequest(msg *kafka.Message) (*PredictionRequest, error) {
	var req PredictionRequest
	env, err := kafka.MessageToEventEnvelope(msg)
	if err == nil && env.EventType != "" && len(env.Payload) > 0 {
		if env.EventType != EventTypePredictionRequested {
			return nil, errors.Validation("unexpected event type").WithDetail(env.EventType)
		}
		if err := env.DecodePayload(&req); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(msg.Value, &req); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeValidation, "malformed prediction request")
	}
	if req.RequestID == "" {
		req.RequestID = strings.TrimSpace(string(msg.Key))
	}
	return &req, nil
}

// Retryable reports whether a failed request may succeed on another attempt.
// Bad input, missing records and configuration problems are final.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.IsValidation(err), errors.IsNotFound(err), errors.IsConfiguration(err):
		return false
	}
	return true
}
