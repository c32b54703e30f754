package triage_model

import (
	"encoding/json"

	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// Unknown-category policies of the zone encoder.
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

type encoderFile struct {
	Categories    []string `json:"categories"`
	HandleUnknown string   `json:"handle_unknown"`
}

// ZoneEncoder one-hot encodes a zone label over the fitted categories.
type ZoneEncoder struct {
	categories    []string
	index         map[string]int
	handleUnknown string
}

// ParseZoneEncoder decodes an encoder export.  With handle_unknown "error"
// every zone label must be a category.
func ParseZoneEncoder(name string, data []byte) (*ZoneEncoder, error) {
	var f encoderFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeArtifactCorrupt, "decode zone encoder").WithDetail(name)
	}
	return NewZoneEncoder(name, f.Categories, f.HandleUnknown)
}

// NewZoneEncoder validates categories and the unknown-category policy.
func NewZoneEncoder(name string, categories []string, handleUnknown string) (*ZoneEncoder, error) {
	if len(categories) == 0 {
		return nil, corrupt(name, "zone encoder has no categories")
	}
	if handleUnknown == "" {
		handleUnknown = HandleUnknownError
	}
	if handleUnknown != HandleUnknownError && handleUnknown != HandleUnknownIgnore {
		return nil, corrupt(name, "unsupported handle_unknown "+handleUnknown)
	}
	e := &ZoneEncoder{
		categories:    append([]string(nil), categories...),
		index:         make(map[string]int, len(categories)),
		handleUnknown: handleUnknown,
	}
	for i, c := range categories {
		if _, dup := e.index[c]; dup {
			return nil, corrupt(name, "duplicate zone category "+c)
		}
		e.index[c] = i
	}
	if handleUnknown == HandleUnknownError {
		for _, z := range symptom_norm.AllZones {
			if _, ok := e.index[z.Label()]; !ok {
				return nil, errors.New(errors.ErrCodeZoneEncoderIncomplete, "zone encoder lacks a category").
					WithDetail(z.Label())
			}
		}
	}
	return e, nil
}

// Dimension returns the number of categories.
func (e *ZoneEncoder) Dimension() int { return len(e.categories) }

// Categories returns a copy of the fitted categories.
func (e *ZoneEncoder) Categories() []string { return append([]string(nil), e.categories...) }

// Transform returns the one-hot row for label.  An unknown label is the zero
// row under "ignore" and an error under "error".
func (e *ZoneEncoder) Transform(label string) ([]float64, error) {
	row := make([]float64, len(e.categories))
	i, ok := e.index[label]
	if !ok {
		if e.handleUnknown == HandleUnknownIgnore {
			return row, nil
		}
		return nil, errors.New(errors.ErrCodeZoneEncoderIncomplete, "unknown zone label").WithDetail(label)
	}
	row[i] = 1
	return row, nil
}
