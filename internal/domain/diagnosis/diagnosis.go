// Package diagnosis models stored triage results.
package diagnosis

import (
	"context"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Sira-Clinica/backend/internal/domain/vitals"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// MaxNoteLength bounds each free-text clinical note.
const MaxNoteLength = 500

// Diagnosis is a prediction together with the inputs it was made from and the
// notes a clinician added afterwards.
type Diagnosis struct {
	ID  string `json:"id"`
	DNI string `json:"dni,omitempty"`
	triage_model.VitalsRecord
	IMC              float64   `json:"imc"`
	MotivoConsulta   string    `json:"motivo_consulta"`
	ExamenFisico     string    `json:"examenfisico"`
	MotivoNormalized string    `json:"motivo_normalizado"`
	ExamenNormalized string    `json:"examen_normalizado"`
	Resultado        string    `json:"diagnostico"`
	Zona             string    `json:"zona"`
	Indicaciones     string    `json:"indicaciones,omitempty"`
	Medicamentos     string    `json:"medicamentos,omitempty"`
	Notas            string    `json:"notas,omitempty"`
	Source           string    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// New builds a diagnosis from a finished prediction.
func New(dni string, v triage_model.VitalsRecord, motivo, examen string, pred *triage_model.Prediction, source string) *Diagnosis {
	now := time.Now().UTC()
	return &Diagnosis{
		ID:               uuid.NewString(),
		DNI:              dni,
		VitalsRecord:     v,
		IMC:              vitals.IMC(v.Talla, v.Peso),
		MotivoConsulta:   motivo,
		ExamenFisico:     examen,
		MotivoNormalized: pred.MotivoNormalized,
		ExamenNormalized: pred.ExamenNormalized,
		Resultado:        pred.Label,
		Zona:             pred.ZoneLabel,
		Source:           source,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ClinicalNotes is a partial update of the clinician-owned fields.  Nil
// fields are left unchanged.
type ClinicalNotes struct {
	Indicaciones *string `json:"indicaciones,omitempty"`
	Medicamentos *string `json:"medicamentos,omitempty"`
	Notas        *string `json:"notas,omitempty"`
}

// Validate checks note lengths.
func (n ClinicalNotes) Validate() error {
	for _, f := range []struct {
		name string
		val  *string
	}{{"indicaciones", n.Indicaciones}, {"medicamentos", n.Medicamentos}, {"notas", n.Notas}} {
		if f.val != nil && utf8.RuneCountInString(*f.val) > MaxNoteLength {
			return errors.Validation("note exceeds maximum length").WithDetail(f.name)
		}
	}
	return nil
}

// Empty reports whether n changes nothing.
func (n ClinicalNotes) Empty() bool {
	return n.Indicaciones == nil && n.Medicamentos == nil && n.Notas == nil
}

// ApplyNotes validates and merges n into d.
func (d *Diagnosis) ApplyNotes(n ClinicalNotes) error {
	if err := n.Validate(); err != nil {
		return err
	}
	if n.Indicaciones != nil {
		d.Indicaciones = *n.Indicaciones
	}
	if n.Medicamentos != nil {
		d.Medicamentos = *n.Medicamentos
	}
	if n.Notas != nil {
		d.Notas = *n.Notas
	}
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// ---------------------------------------------------------------------------
// Repository
// ---------------------------------------------------------------------------

// Repository persists diagnoses.  Lookups of a missing record return
// ErrCodeDiagnosisNotFound.
type Repository interface {
	Create(ctx context.Context, d *Diagnosis) error
	GetByID(ctx context.Context, id string) (*Diagnosis, error)
	List(ctx context.Context, opts ...QueryOption) ([]*Diagnosis, int64, error)
	UpdateNotes(ctx context.Context, d *Diagnosis) error
	Delete(ctx context.Context, id string) error
	ListByDNI(ctx context.Context, dni string) ([]*Diagnosis, error)
	LatestByDNI(ctx context.Context, dni string) (*Diagnosis, error)
}

// Pagination bounds.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// QueryOptions encapsulates list parameters.
type QueryOptions struct {
	Offset int
	Limit  int
}

// QueryOption is a functional option for QueryOptions.
type QueryOption func(*QueryOptions)

// WithPagination clamps offset to ≥ 0 and limit to [1, MaxLimit].
func WithPagination(offset, limit int) QueryOption {
	return func(o *QueryOptions) {
		if offset < 0 {
			offset = 0
		}
		if limit < 1 {
			limit = DefaultLimit
		}
		if limit > MaxLimit {
			limit = MaxLimit
		}
		o.Offset = offset
		o.Limit = limit
	}
}

// ApplyOptions returns the effective options.
func ApplyOptions(opts ...QueryOption) QueryOptions {
	o := QueryOptions{Limit: DefaultLimit}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
