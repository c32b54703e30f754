package triage_model

import (
	"fmt"
	"math"
	"strings"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Gender is the encoded sex used as the last numeric feature.
type Gender int

const (
	GenderM Gender = 0
	GenderF Gender = 1
)

// ParseGender lower-cases raw and maps "m" to GenderM.  Every other value,
// including the empty string and padded forms such as " m", maps to GenderF.
func ParseGender(raw string) Gender {
	if strings.ToLower(raw) == "m" {
		return GenderM
	}
	return GenderF
}

// Code returns the numeric feature value.
func (g Gender) Code() float64 { return float64(g) }

func (g Gender) String() string {
	if g == GenderM {
		return "M"
	}
	return "F"
}

// MarshalText encodes g as "M" or "F".
func (g Gender) MarshalText() ([]byte, error) { return []byte(g.String()), nil }

// UnmarshalText applies ParseGender.
func (g *Gender) UnmarshalText(b []byte) error {
	*g = ParseGender(string(b))
	return nil
}

// VitalsRecord is the numeric input of a prediction.
type VitalsRecord struct {
	Temperatura float64 `json:"temperatura"`
	Edad        int     `json:"edad"`
	FCard       int     `json:"f_card"`
	FResp       int     `json:"f_resp"`
	Talla       float64 `json:"talla"`
	Peso        float64 `json:"peso"`
	Genero      Gender  `json:"genero"`
}

// Range bounds.  Talla accepts either metres or centimetres.
const (
	MinTemperatura = 25.0
	MaxTemperatura = 45.0
	MinEdad        = 0
	MaxEdad        = 130
	MinFCard       = 20
	MaxFCard       = 250
	MinFResp       = 4
	MaxFResp       = 80
	MaxTalla       = 300.0
	MaxPeso        = 500.0
)

// NumericFeatures returns the vitals in classifier order: temperatura, edad,
// f_card, f_resp, talla, peso, genero.
func (v VitalsRecord) NumericFeatures() []float64 {
	return []float64{
		v.Temperatura,
		float64(v.Edad),
		float64(v.FCard),
		float64(v.FResp),
		v.Talla,
		v.Peso,
		v.Genero.Code(),
	}
}

// NumericFeatureCount is len(VitalsRecord{}.NumericFeatures()).
const NumericFeatureCount = 7

// Validate rejects non-finite and out-of-range values.
func (v VitalsRecord) Validate() error {
	for _, f := range []struct {
		name string
		val  float64
	}{{"temperatura", v.Temperatura}, {"talla", v.Talla}, {"peso", v.Peso}} {
		if math.IsNaN(f.val) || math.IsInf(f.val, 0) {
			return errors.New(errors.ErrCodeVitalsNotNumeric, "vital sign is not a finite number").WithDetail(f.name)
		}
	}
	switch {
	case v.Temperatura < MinTemperatura || v.Temperatura > MaxTemperatura:
		return outOfRange("temperatura", fmt.Sprintf("[%g, %g]", MinTemperatura, MaxTemperatura))
	case v.Edad < MinEdad || v.Edad > MaxEdad:
		return outOfRange("edad", fmt.Sprintf("[%d, %d]", MinEdad, MaxEdad))
	case v.FCard < MinFCard || v.FCard > MaxFCard:
		return outOfRange("f_card", fmt.Sprintf("[%d, %d]", MinFCard, MaxFCard))
	case v.FResp < MinFResp || v.FResp > MaxFResp:
		return outOfRange("f_resp", fmt.Sprintf("[%d, %d]", MinFResp, MaxFResp))
	case v.Talla <= 0 || v.Talla > MaxTalla:
		return outOfRange("talla", fmt.Sprintf("(0, %g]", MaxTalla))
	case v.Peso <= 0 || v.Peso > MaxPeso:
		return outOfRange("peso", fmt.Sprintf("(0, %g]", MaxPeso))
	case v.Genero != GenderM && v.Genero != GenderF:
		return outOfRange("genero", "{M, F}")
	}
	return nil
}

func outOfRange(field, bounds string) error {
	return errors.Newf(errors.ErrCodeVitalsOutOfRange, "%s must be within %s", field, bounds).WithDetail(field)
}
