package triage_model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

func validVitals() VitalsRecord {
	return VitalsRecord{
		Temperatura: 38.5,
		Edad:        40,
		FCard:       90,
		FResp:       22,
		Talla:       170,
		Peso:        70,
		Genero:      GenderM,
	}
}

func TestParseGender(t *testing.T) {
	tests := []struct {
		raw  string
		want Gender
	}{
		{"M", GenderM},
		{"m", GenderM},
		{"f", GenderF},
		{"F", GenderF},
		{"X", GenderF},
		{"", GenderF},
		{" m", GenderF},
		{"masculino", GenderF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseGender(tt.raw), "raw=%q", tt.raw)
	}
	assert.Equal(t, 0.0, GenderM.Code())
	assert.Equal(t, 1.0, GenderF.Code())
	assert.Equal(t, "M", GenderM.String())
	assert.Equal(t, "F", GenderF.String())
}

func TestVitalsRecord_NumericFeaturesOrder(t *testing.T) {
	v := validVitals()
	v.Genero = GenderF
	assert.Equal(t, []float64{38.5, 40, 90, 22, 170, 70, 1}, v.NumericFeatures())
	assert.Len(t, v.NumericFeatures(), NumericFeatureCount)
}

func TestVitalsRecord_Validate(t *testing.T) {
	assert.NoError(t, validVitals().Validate())

	metres := validVitals()
	metres.Talla = 1.7
	assert.NoError(t, metres.Validate())

	tests := []struct {
		name   string
		mutate func(*VitalsRecord)
		code   errors.ErrorCode
		field  string
	}{
		{"nan temperature", func(v *VitalsRecord) { v.Temperatura = math.NaN() }, errors.ErrCodeVitalsNotNumeric, "temperatura"},
		{"inf weight", func(v *VitalsRecord) { v.Peso = math.Inf(1) }, errors.ErrCodeVitalsNotNumeric, "peso"},
		{"cold", func(v *VitalsRecord) { v.Temperatura = 24.9 }, errors.ErrCodeVitalsOutOfRange, "temperatura"},
		{"hot", func(v *VitalsRecord) { v.Temperatura = 45.1 }, errors.ErrCodeVitalsOutOfRange, "temperatura"},
		{"negative age", func(v *VitalsRecord) { v.Edad = -1 }, errors.ErrCodeVitalsOutOfRange, "edad"},
		{"old", func(v *VitalsRecord) { v.Edad = 131 }, errors.ErrCodeVitalsOutOfRange, "edad"},
		{"slow heart", func(v *VitalsRecord) { v.FCard = 19 }, errors.ErrCodeVitalsOutOfRange, "f_card"},
		{"fast breath", func(v *VitalsRecord) { v.FResp = 81 }, errors.ErrCodeVitalsOutOfRange, "f_resp"},
		{"zero height", func(v *VitalsRecord) { v.Talla = 0 }, errors.ErrCodeVitalsOutOfRange, "talla"},
		{"tall", func(v *VitalsRecord) { v.Talla = 301 }, errors.ErrCodeVitalsOutOfRange, "talla"},
		{"zero weight", func(v *VitalsRecord) { v.Peso = 0 }, errors.ErrCodeVitalsOutOfRange, "peso"},
		{"bad gender", func(v *VitalsRecord) { v.Genero = Gender(7) }, errors.ErrCodeVitalsOutOfRange, "genero"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := validVitals()
			tt.mutate(&v)
			err := v.Validate()
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
			assert.True(t, errors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestVitalsRecord_BoundsInclusive(t *testing.T) {
	v := validVitals()
	v.Temperatura, v.Edad, v.FCard, v.FResp, v.Talla, v.Peso = 45, 0, 250, 4, 300, 500
	assert.NoError(t, v.Validate())
}

func TestGender_JSON(t *testing.T) {
	var v VitalsRecord
	err := json.Unmarshal([]byte(`{"temperatura": 37, "genero": "m"}`), &v)
	assert.NoError(t, err)
	assert.Equal(t, GenderM, v.Genero)

	err = json.Unmarshal([]byte(`{"genero": "femenino"}`), &v)
	assert.NoError(t, err)
	assert.Equal(t, GenderF, v.Genero)

	out, err := json.Marshal(validVitals())
	assert.NoError(t, err)
	assert.Contains(t, string(out), `"genero":"M"`)
}
