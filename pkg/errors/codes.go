package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeMessagingError     ErrorCode = "COMMON_015"
	ErrCodeStorageError       ErrorCode = "COMMON_016"
	ErrCodeConfiguration      ErrorCode = "COMMON_017"
)

const (
	CodeOK      = ErrorCode("OK")
	CodeUnknown = ErrorCode("UNKNOWN")
)

// Triage artifact / configuration codes.
const (
	ErrCodeArtifactMissing            ErrorCode = "TRI_001"
	ErrCodeArtifactCorrupt            ErrorCode = "TRI_002"
	ErrCodeEmbeddingDimensionMismatch ErrorCode = "TRI_003"
	ErrCodeFeatureDimensionMismatch   ErrorCode = "TRI_004"
	ErrCodeVocabularyInvalid          ErrorCode = "TRI_005"
	ErrCodeZoneEncoderIncomplete      ErrorCode = "TRI_006"
)

// Triage validation codes.
const (
	ErrCodeVitalsMissing    ErrorCode = "TRI_101"
	ErrCodeVitalsOutOfRange ErrorCode = "TRI_102"
	ErrCodeVitalsNotNumeric ErrorCode = "TRI_103"
)

// Triage external-service codes.
const (
	ErrCodeEmbeddingFailed   ErrorCode = "TRI_201"
	ErrCodeClassifierFailed  ErrorCode = "TRI_202"
	ErrCodeLabelDecodeFailed ErrorCode = "TRI_203"
)

// Record codes.
const (
	ErrCodeDiagnosisNotFound ErrorCode = "REC_001"
	ErrCodeVitalsNotFound    ErrorCode = "REC_002"
)

// Kind groups error codes into the categories transports care about.
type Kind int

const (
	KindNone Kind = iota
	KindConfiguration
	KindValidation
	KindExternalService
	KindNotFound
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindExternalService:
		return "external_service"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

var codeKinds = map[ErrorCode]Kind{
	CodeOK: KindNone,

	ErrCodeConfiguration:              KindConfiguration,
	ErrCodeArtifactMissing:            KindConfiguration,
	ErrCodeArtifactCorrupt:            KindConfiguration,
	ErrCodeEmbeddingDimensionMismatch: KindConfiguration,
	ErrCodeFeatureDimensionMismatch:   KindConfiguration,
	ErrCodeVocabularyInvalid:          KindConfiguration,
	ErrCodeZoneEncoderIncomplete:      KindConfiguration,

	ErrCodeBadRequest:       KindValidation,
	ErrCodeValidation:       KindValidation,
	ErrCodeVitalsMissing:    KindValidation,
	ErrCodeVitalsOutOfRange: KindValidation,
	ErrCodeVitalsNotNumeric: KindValidation,

	ErrCodeExternalService:    KindExternalService,
	ErrCodeTimeout:            KindExternalService,
	ErrCodeServiceUnavailable: KindExternalService,
	ErrCodeEmbeddingFailed:    KindExternalService,
	ErrCodeClassifierFailed:   KindExternalService,
	ErrCodeLabelDecodeFailed:  KindExternalService,

	ErrCodeNotFound:          KindNotFound,
	ErrCodeDiagnosisNotFound: KindNotFound,
	ErrCodeVitalsNotFound:    KindNotFound,
}

// KindForCode returns the Kind of code.  Unknown codes are KindInternal.
func KindForCode(code ErrorCode) Kind {
	if k, ok := codeKinds[code]; ok {
		return k
	}
	return KindInternal
}

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeMessagingError:     http.StatusInternalServerError,
	ErrCodeStorageError:       http.StatusInternalServerError,
	ErrCodeConfiguration:      http.StatusServiceUnavailable,

	ErrCodeArtifactMissing:            http.StatusServiceUnavailable,
	ErrCodeArtifactCorrupt:            http.StatusServiceUnavailable,
	ErrCodeEmbeddingDimensionMismatch: http.StatusServiceUnavailable,
	ErrCodeFeatureDimensionMismatch:   http.StatusServiceUnavailable,
	ErrCodeVocabularyInvalid:          http.StatusServiceUnavailable,
	ErrCodeZoneEncoderIncomplete:      http.StatusServiceUnavailable,

	ErrCodeVitalsMissing:    http.StatusUnprocessableEntity,
	ErrCodeVitalsOutOfRange: http.StatusUnprocessableEntity,
	ErrCodeVitalsNotNumeric: http.StatusUnprocessableEntity,

	ErrCodeEmbeddingFailed:   http.StatusBadGateway,
	ErrCodeClassifierFailed:  http.StatusBadGateway,
	ErrCodeLabelDecodeFailed: http.StatusBadGateway,

	ErrCodeDiagnosisNotFound: http.StatusNotFound,
	ErrCodeVitalsNotFound:    http.StatusNotFound,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeMessagingError:     "messaging error",
	ErrCodeStorageError:       "object storage error",
	ErrCodeConfiguration:      "service misconfigured",

	ErrCodeArtifactMissing:            "model artifact missing",
	ErrCodeArtifactCorrupt:            "model artifact corrupt",
	ErrCodeEmbeddingDimensionMismatch: "embedding dimension mismatch",
	ErrCodeFeatureDimensionMismatch:   "feature dimension mismatch",
	ErrCodeVocabularyInvalid:          "canonical vocabulary invalid",
	ErrCodeZoneEncoderIncomplete:      "zone encoder does not cover every zone",

	ErrCodeVitalsMissing:    "vital signs missing",
	ErrCodeVitalsOutOfRange: "vital sign out of range",
	ErrCodeVitalsNotNumeric: "vital sign is not a finite number",

	ErrCodeEmbeddingFailed:   "embedding service failed",
	ErrCodeClassifierFailed:  "classifier failed",
	ErrCodeLabelDecodeFailed: "label decoder failed",

	ErrCodeDiagnosisNotFound: "diagnosis not found",
	ErrCodeVitalsNotFound:    "no vital signs recorded for patient",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
