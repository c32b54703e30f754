package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	apptriage "github.com/Sira-Clinica/backend/internal/application/triage"
	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
)

// TriageHandler serves predictions, normalization previews and the
// patient-scoped endpoints.
type TriageHandler struct {
	svc    apptriage.Service
	logger logging.Logger
}

// NewTriageHandler creates a TriageHandler.
func NewTriageHandler(svc apptriage.Service, log logging.Logger) *TriageHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &TriageHandler{svc: svc, logger: log.Named("triage-handler")}
}

// PredictRequest is the text part of a prediction body.  The vital signs sit
// at the top level of the same object and are read by DecodeVitals.
type PredictRequest struct {
	DNI            string `json:"dni"`
	MotivoConsulta string `json:"motivo_consulta"`
	ExamenFisico   string `json:"examenfisico"`
	diagnosis.ClinicalNotes
}

// NormalizeRequest is the body of a normalization preview.
type NormalizeRequest struct {
	MotivoConsulta string `json:"motivo_consulta"`
	ExamenFisico   string `json:"examenfisico"`
}

// Predict handles POST /api/v1/predict.
func (h *TriageHandler) Predict(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		writeAppError(c, h.logger, malformedBody(err))
		return
	}
	v, err := bindVitals(c)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	d, err := h.svc.Predict(c.Request.Context(), &apptriage.PredictInput{
		DNI:            req.DNI,
		Vitals:         v,
		MotivoConsulta: req.MotivoConsulta,
		ExamenFisico:   req.ExamenFisico,
		Notes:          req.ClinicalNotes,
	})
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// Normalize handles POST /api/v1/normalize.
func (h *TriageHandler) Normalize(c *gin.Context) {
	var req NormalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, h.logger, malformedBody(err))
		return
	}
	n, err := h.svc.Normalize(c.Request.Context(), &apptriage.NormalizeInput{
		MotivoConsulta: req.MotivoConsulta,
		ExamenFisico:   req.ExamenFisico,
	})
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

// RecordVitals handles POST /api/v1/patients/:dni/vitals.
func (h *TriageHandler) RecordVitals(c *gin.Context) {
	v, err := bindVitals(c)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	rec, err := h.svc.RecordVitals(c.Request.Context(), c.Param("dni"), v)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// ListVitals handles GET /api/v1/patients/:dni/vitals.
func (h *TriageHandler) ListVitals(c *gin.Context) {
	items, err := h.svc.ListVitals(c.Request.Context(), c.Param("dni"))
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// PredictForPatient handles POST /api/v1/patients/:dni/predict.
func (h *TriageHandler) PredictForPatient(c *gin.Context) {
	var req PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAppError(c, h.logger, malformedBody(err))
		return
	}
	d, err := h.svc.PredictForPatient(c.Request.Context(), &apptriage.PatientPredictInput{
		DNI:            c.Param("dni"),
		MotivoConsulta: req.MotivoConsulta,
		ExamenFisico:   req.ExamenFisico,
		Notes:          req.ClinicalNotes,
	})
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListPatientDiagnoses handles GET /api/v1/patients/:dni/diagnoses.
func (h *TriageHandler) ListPatientDiagnoses(c *gin.Context) {
	items, err := h.svc.ListPatientDiagnoses(c.Request.Context(), c.Param("dni"))
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// LatestPatientDiagnosis handles GET /api/v1/patients/:dni/diagnoses/latest.
func (h *TriageHandler) LatestPatientDiagnosis(c *gin.Context) {
	d, err := h.svc.LatestPatientDiagnosis(c.Request.Context(), c.Param("dni"))
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// bindVitals reads the vital signs from the top level of the JSON body.
func bindVitals(c *gin.Context) (triage_model.VitalsRecord, error) {
	var raw map[string]interface{}
	if err := c.ShouldBindBodyWith(&raw, binding.JSON); err != nil {
		return triage_model.VitalsRecord{}, malformedBody(err)
	}
	return triage_model.DecodeVitals(raw)
}
