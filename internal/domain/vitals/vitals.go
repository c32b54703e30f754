// Package vitals models the vital-sign records taken for a patient before a
// consultation.
package vitals

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// MaxDNILength bounds the patient identifier.
const MaxDNILength = 32

// VitalSigns is one set of measurements for a patient.
type VitalSigns struct {
	ID  string `json:"id"`
	DNI string `json:"dni"`
	triage_model.VitalsRecord
	IMC        float64   `json:"imc"`
	RecordedAt time.Time `json:"fecha_registro"`
}

// New validates rec and stamps a new record for dni.
func New(dni string, rec triage_model.VitalsRecord) (*VitalSigns, error) {
	dni = strings.TrimSpace(dni)
	if err := ValidateDNI(dni); err != nil {
		return nil, err
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return &VitalSigns{
		ID:           uuid.NewString(),
		DNI:          dni,
		VitalsRecord: rec,
		IMC:          IMC(rec.Talla, rec.Peso),
		RecordedAt:   time.Now().UTC(),
	}, nil
}

// ValidateDNI rejects empty and oversized patient identifiers.
func ValidateDNI(dni string) error {
	if dni == "" {
		return errors.Validation("dni is required")
	}
	if len(dni) > MaxDNILength {
		return errors.Validation("dni is too long")
	}
	return nil
}

// IMC returns the body-mass index rounded to two decimals.  Talla up to 3 is
// read as metres, anything larger as centimetres.  Non-positive inputs give 0.
func IMC(talla, peso float64) float64 {
	if talla <= 0 || peso <= 0 {
		return 0
	}
	if talla > 3 {
		talla /= 100
	}
	return math.Round(peso/(talla*talla)*100) / 100
}

// Repository persists vital signs.
type Repository interface {
	Save(ctx context.Context, v *VitalSigns) error
	// LatestByDNI returns the most recent record or ErrCodeVitalsNotFound.
	LatestByDNI(ctx context.Context, dni string) (*VitalSigns, error)
	ListByDNI(ctx context.Context, dni string) ([]*VitalSigns, error)
}
