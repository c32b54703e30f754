package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apptriage "github.com/Sira-Clinica/backend/internal/application/triage"
	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
)

// DiagnosisHandler serves stored diagnosis records.
type DiagnosisHandler struct {
	svc    apptriage.Service
	logger logging.Logger
}

// NewDiagnosisHandler creates a DiagnosisHandler.
func NewDiagnosisHandler(svc apptriage.Service, log logging.Logger) *DiagnosisHandler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DiagnosisHandler{svc: svc, logger: log.Named("diagnosis-handler")}
}

// List handles GET /api/v1/diagnoses.
func (h *DiagnosisHandler) List(c *gin.Context) {
	offset, limit := parsePagination(c)
	res, err := h.svc.ListDiagnoses(c.Request.Context(), &apptriage.ListInput{Offset: offset, Limit: limit})
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Get handles GET /api/v1/diagnoses/:id.
func (h *DiagnosisHandler) Get(c *gin.Context) {
	d, err := h.svc.GetDiagnosis(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// UpdateNotes handles PUT /api/v1/diagnoses/:id.  Only the clinical notes
// can change; omitted notes keep their value.
func (h *DiagnosisHandler) UpdateNotes(c *gin.Context) {
	var notes diagnosis.ClinicalNotes
	if err := c.ShouldBindJSON(&notes); err != nil {
		writeAppError(c, h.logger, malformedBody(err))
		return
	}
	d, err := h.svc.UpdateNotes(c.Request.Context(), c.Param("id"), notes)
	if err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// Delete handles DELETE /api/v1/diagnoses/:id.
func (h *DiagnosisHandler) Delete(c *gin.Context) {
	if err := h.svc.DeleteDiagnosis(c.Request.Context(), c.Param("id")); err != nil {
		writeAppError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
