package diagnosis

import (
	"time"

	"github.com/google/uuid"
)

// EventTypeCreated names the event published for every stored diagnosis.
const EventTypeCreated = "triage.diagnosis.created"

// CreatedEvent announces a stored diagnosis.  It carries no clinical free
// text.
type CreatedEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	DiagnosisID string    `json:"diagnosis_id"`
	DNI         string    `json:"dni,omitempty"`
	Resultado   string    `json:"diagnostico"`
	Zona        string    `json:"zona"`
	Source      string    `json:"source"`
}

// NewCreatedEvent builds the event for d.
func NewCreatedEvent(d *Diagnosis) CreatedEvent {
	return CreatedEvent{
		EventID:     uuid.NewString(),
		EventType:   EventTypeCreated,
		OccurredAt:  time.Now().UTC(),
		DiagnosisID: d.ID,
		DNI:         d.DNI,
		Resultado:   d.Resultado,
		Zona:        d.Zona,
		Source:      d.Source,
	}
}
