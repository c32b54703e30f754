package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var allCodes = []ErrorCode{
	ErrCodeInternal, ErrCodeBadRequest, ErrCodeNotFound, ErrCodeConflict,
	ErrCodeServiceUnavailable, ErrCodeTimeout, ErrCodeValidation, ErrCodeSerialization,
	ErrCodeDatabaseError, ErrCodeCacheError, ErrCodeExternalService, ErrCodeMessagingError,
	ErrCodeStorageError, ErrCodeConfiguration,
	ErrCodeArtifactMissing, ErrCodeArtifactCorrupt, ErrCodeEmbeddingDimensionMismatch,
	ErrCodeFeatureDimensionMismatch, ErrCodeVocabularyInvalid, ErrCodeZoneEncoderIncomplete,
	ErrCodeVitalsMissing, ErrCodeVitalsOutOfRange, ErrCodeVitalsNotNumeric,
	ErrCodeEmbeddingFailed, ErrCodeClassifierFailed, ErrCodeLabelDecodeFailed,
	ErrCodeDiagnosisNotFound, ErrCodeVitalsNotFound,
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "COMMON_001", ErrCodeInternal.String())
}

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInternal, 500},
		{ErrCodeBadRequest, 400},
		{ErrCodeNotFound, 404},
		{ErrCodeValidation, 422},
		{ErrCodeVitalsOutOfRange, 422},
		{ErrCodeEmbeddingFailed, 502},
		{ErrCodeTimeout, 504},
		{ErrCodeFeatureDimensionMismatch, 503},
		{ErrorCode("NOPE_999"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusForCode(tt.code), string(tt.code))
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "internal server error", DefaultMessageForCode(ErrCodeInternal))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("NOPE_999")))
}

func TestIsClientError(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeVitalsOutOfRange))
	assert.False(t, IsClientError(ErrCodeClassifierFailed))
}

func TestIsServerError(t *testing.T) {
	assert.True(t, IsServerError(ErrCodeArtifactMissing))
	assert.False(t, IsServerError(ErrCodeBadRequest))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "TRI", ModuleForCode(ErrCodeEmbeddingFailed))
	assert.Equal(t, "REC", ModuleForCode(ErrCodeDiagnosisNotFound))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("")))
}

func TestKindForCode(t *testing.T) {
	assert.Equal(t, KindConfiguration, KindForCode(ErrCodeFeatureDimensionMismatch))
	assert.Equal(t, KindConfiguration, KindForCode(ErrCodeEmbeddingDimensionMismatch))
	assert.Equal(t, KindValidation, KindForCode(ErrCodeVitalsOutOfRange))
	assert.Equal(t, KindExternalService, KindForCode(ErrCodeTimeout))
	assert.Equal(t, KindExternalService, KindForCode(ErrCodeClassifierFailed))
	assert.Equal(t, KindNotFound, KindForCode(ErrCodeVitalsNotFound))
	assert.Equal(t, KindInternal, KindForCode(ErrCodeDatabaseError))
	assert.Equal(t, "external_service", KindExternalService.String())
}

func TestErrorCodeFormat_Convention(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for _, code := range allCodes {
		assert.Regexp(t, re, string(code))
	}
}

func TestErrorCodeMappings_Completeness(t *testing.T) {
	for _, code := range allCodes {
		_, hasStatus := ErrorCodeHTTPStatus[code]
		_, hasMessage := ErrorCodeMessage[code]
		assert.True(t, hasStatus, "missing status for %s", code)
		assert.True(t, hasMessage, "missing message for %s", code)
	}
}
