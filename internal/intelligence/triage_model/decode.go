package triage_model

import (
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

// VitalsFields lists the keys DecodeVitals reads, in classifier order.
var VitalsFields = []string{"temperatura", "edad", "f_card", "f_resp", "talla", "peso", "genero"}

// wholeFields are counted in whole units: years and beats or breaths per
// minute.
var wholeFields = map[string]bool{"edad": true, "f_card": true, "f_resp": true}

// DecodeVitals builds a record from loosely typed input such as form values,
// JSON objects or protobuf structs.  Numbers and numeric strings are
// accepted.  A missing or blank field fails with ErrCodeVitalsMissing and a
// non-numeric one with ErrCodeVitalsNotNumeric, as does a fractional edad,
// f_card or f_resp ("72.0" is fine, "72.9" is not).  genero is optional and
// goes through ParseGender.  Ranges are not checked here.
func DecodeVitals(raw map[string]interface{}) (VitalsRecord, error) {
	var v VitalsRecord
	nums := make([]float64, 6)
	for i, name := range VitalsFields[:6] {
		f, err := numericField(raw, name)
		if err != nil {
			return VitalsRecord{}, err
		}
		if wholeFields[name] && f != math.Trunc(f) {
			return VitalsRecord{}, errors.New(errors.ErrCodeVitalsNotNumeric,
				"vital sign must be a whole number").WithDetail(name)
		}
		nums[i] = f
	}
	v.Temperatura = nums[0]
	v.Edad = int(nums[1])
	v.FCard = int(nums[2])
	v.FResp = int(nums[3])
	v.Talla = nums[4]
	v.Peso = nums[5]
	v.Genero = ParseGender(cast.ToString(raw["genero"]))
	return v, nil
}

func numericField(raw map[string]interface{}, name string) (float64, error) {
	val, ok := raw[name]
	if !ok || val == nil {
		return 0, errors.New(errors.ErrCodeVitalsMissing, "vital sign is required").WithDetail(name)
	}
	switch x := val.(type) {
	case bool:
		return 0, notNumeric(name)
	case string:
		if strings.TrimSpace(x) == "" {
			return 0, errors.New(errors.ErrCodeVitalsMissing, "vital sign is required").WithDetail(name)
		}
		val = strings.TrimSpace(x)
	}
	f, err := cast.ToFloat64E(val)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, notNumeric(name)
	}
	return f, nil
}

func notNumeric(field string) error {
	return errors.New(errors.ErrCodeVitalsNotNumeric, "vital sign is not a number").WithDetail(field)
}
