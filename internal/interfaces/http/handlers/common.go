package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// StatusForError maps an error to its HTTP status: validation 422, not found
// 404, configuration 503, external service 502 and timeouts 504.  Anything
// else is 500.
func StatusForError(err error) int {
	if stderrors.Is(err, context.DeadlineExceeded) || errors.IsCode(err, errors.ErrCodeTimeout) {
		return http.StatusGatewayTimeout
	}
	code := errors.GetCode(err)
	if status, ok := errors.ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return http.StatusUnprocessableEntity
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindConfiguration:
		return http.StatusServiceUnavailable
	case errors.KindExternalService:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeAppError writes err as an ErrorResponse.  Internal failures are
// masked; their cause is only logged.
func writeAppError(c *gin.Context, log logging.Logger, err error) {
	status := StatusForError(err)
	code := errors.GetCode(err)
	resp := ErrorResponse{Code: string(code), Message: errors.DefaultMessageForCode(code)}

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Detail = appErr.Detail
	}
	if status == http.StatusInternalServerError {
		resp = ErrorResponse{Code: string(errors.ErrCodeInternal), Message: "internal server error"}
	}
	if status == http.StatusGatewayTimeout && resp.Code == string(errors.CodeUnknown) {
		resp = ErrorResponse{Code: string(errors.ErrCodeTimeout), Message: "request timeout"}
	}

	if status >= http.StatusInternalServerError {
		log.Error("request failed",
			logging.String(logging.FieldErrorCode, string(code)),
			logging.Int("status", status),
			logging.Err(err))
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, resp)
}

func malformedBody(err error) error {
	return errors.Wrap(err, errors.ErrCodeValidation, "malformed request body")
}

// parsePagination reads offset and limit.  Missing or unparsable values are
// left at zero and clamped by the service.
func parsePagination(c *gin.Context) (int, int) {
	offset, _ := strconv.Atoi(c.Query("offset"))
	limit, _ := strconv.Atoi(c.Query("limit"))
	return offset, limit
}
