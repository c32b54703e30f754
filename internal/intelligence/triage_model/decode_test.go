package triage_model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

func rawVitals() map[string]interface{} {
	return map[string]interface{}{
		"temperatura": 38.5,
		"edad":        "40",
		"f_card":      json.Number("90"),
		"f_resp":      int64(22),
		"talla":       " 170 ",
		"peso":        70,
		"genero":      "m",
	}
}

func TestDecodeVitals(t *testing.T) {
	v, err := DecodeVitals(rawVitals())
	require.NoError(t, err)
	assert.Equal(t, validVitals(), v)
	assert.NoError(t, v.Validate())
}

func TestDecodeVitals_GenderOptional(t *testing.T) {
	raw := rawVitals()
	delete(raw, "genero")
	v, err := DecodeVitals(raw)
	require.NoError(t, err)
	assert.Equal(t, GenderF, v.Genero)
}

func TestDecodeVitals_Errors(t *testing.T) {
	tests := []struct {
		name  string
		field string
		value interface{}
		code  errors.ErrorCode
	}{
		{"missing", "peso", nil, errors.ErrCodeVitalsMissing},
		{"blank", "edad", "  ", errors.ErrCodeVitalsMissing},
		{"text", "temperatura", "alta", errors.ErrCodeVitalsNotNumeric},
		{"bool", "f_card", true, errors.ErrCodeVitalsNotNumeric},
		{"object", "talla", map[string]interface{}{"m": 1.7}, errors.ErrCodeVitalsNotNumeric},
		{"fractional heart rate", "f_card", "72.9", errors.ErrCodeVitalsNotNumeric},
		{"fractional age", "edad", 40.5, errors.ErrCodeVitalsNotNumeric},
		{"fractional respiratory rate", "f_resp", json.Number("22.1"), errors.ErrCodeVitalsNotNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := rawVitals()
			if tt.value == nil {
				delete(raw, tt.field)
			} else {
				raw[tt.field] = tt.value
			}
			_, err := DecodeVitals(raw)
			assert.True(t, errors.IsCode(err, tt.code))
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDecodeVitals_WholeValuedFloatsAccepted(t *testing.T) {
	raw := rawVitals()
	raw["edad"] = 40.0
	raw["f_card"] = "90.0"
	raw["f_resp"] = json.Number("22")
	raw["temperatura"] = "38.5"
	v, err := DecodeVitals(raw)
	require.NoError(t, err)
	assert.Equal(t, 40, v.Edad)
	assert.Equal(t, 90, v.FCard)
	assert.Equal(t, 22, v.FResp)
	assert.Equal(t, 38.5, v.Temperatura)
}
