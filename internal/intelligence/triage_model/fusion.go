package triage_model

import (
	"github.com/Sira-Clinica/backend/internal/intelligence/symptom_norm"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// DefaultCombinedWeight scales the combined-text block of the feature vector.
// The classifier was fitted with this factor; it is not tunable.
const DefaultCombinedWeight = 2.0

// FeatureFusion concatenates vitals, the three text blocks and the zone
// encoding into the classifier input:
//
//	[numeric(7), motivo(N1), examen(N2), 2*combined(N3), zone(N4)]
type FeatureFusion struct {
	motivo   *Vectorizer
	examen   *Vectorizer
	combined *Vectorizer
	zone     *ZoneEncoder
}

// NewFeatureFusion wires the fitted transformers.
func NewFeatureFusion(motivo, examen, combined *Vectorizer, zone *ZoneEncoder) *FeatureFusion {
	return &FeatureFusion{motivo: motivo, examen: examen, combined: combined, zone: zone}
}

// Dimension returns the fixed length of every fused vector.
func (f *FeatureFusion) Dimension() int {
	return NumericFeatureCount + f.motivo.Dimension() + f.examen.Dimension() +
		f.combined.Dimension() + f.zone.Dimension()
}

// CombinedText is the input of the combined vectorizer.
func CombinedText(motivoNorm, examenNorm string) string {
	return motivoNorm + " " + examenNorm
}

// Build produces the feature vector for one request.
func (f *FeatureFusion) Build(vitals VitalsRecord, motivoNorm, examenNorm string, zone symptom_norm.Zone) ([]float64, error) {
	zoneRow, err := f.zone.Transform(zone.Label())
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, f.Dimension())
	out = append(out, vitals.NumericFeatures()...)
	out = f.motivo.Transform(motivoNorm).AppendDense(out, 1)
	out = f.examen.Transform(examenNorm).AppendDense(out, 1)
	out = f.combined.Transform(CombinedText(motivoNorm, examenNorm)).AppendDense(out, DefaultCombinedWeight)
	out = append(out, zoneRow...)
	if len(out) != f.Dimension() {
		return nil, errors.Newf(errors.ErrCodeFeatureDimensionMismatch,
			"fused %d features, expected %d", len(out), f.Dimension())
	}
	return out, nil
}
