package client

import "time"

// Vitals are the numeric inputs of a prediction.  Genero is "M" or "F".
type Vitals struct {
	Temperatura float64 `json:"temperatura"`
	Edad        int     `json:"edad"`
	FCard       int     `json:"f_card"`
	FResp       int     `json:"f_resp"`
	Talla       float64 `json:"talla"`
	Peso        float64 `json:"peso"`
	Genero      string  `json:"genero,omitempty"`
}

// Notes are the free-text fields a clinician attaches to a diagnosis.  Nil
// fields are left unchanged by UpdateNotes.
type Notes struct {
	Indicaciones *string `json:"indicaciones,omitempty"`
	Medicamentos *string `json:"medicamentos,omitempty"`
	Notas        *string `json:"notas,omitempty"`
}

// PredictRequest is the body of Predict.  Vitals and notes are flattened
// into the same JSON object.
type PredictRequest struct {
	DNI string `json:"dni,omitempty"`
	Vitals
	MotivoConsulta string `json:"motivo_consulta"`
	ExamenFisico   string `json:"examenfisico"`
	Notes
}

// PatientPredictRequest is the body of PredictForPatient.  The vitals are
// the patient's latest recorded set.
type PatientPredictRequest struct {
	MotivoConsulta string `json:"motivo_consulta"`
	ExamenFisico   string `json:"examenfisico"`
	Notes
}

// Diagnosis is a stored or transient prediction.
type Diagnosis struct {
	ID  string `json:"id"`
	DNI string `json:"dni,omitempty"`
	Vitals
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

// VitalSigns is one recorded set of measurements.
type VitalSigns struct {
	ID  string `json:"id"`
	DNI string `json:"dni"`
	Vitals
	IMC        float64   `json:"imc"`
	RecordedAt time.Time `json:"fecha_registro"`
}

// NormalizedText pairs an input text with its normalized form.
type NormalizedText struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
}

// Normalization is the result of Normalize.
type Normalization struct {
	Motivo NormalizedText `json:"motivo"`
	Examen NormalizedText `json:"examen"`
	Zone   string         `json:"zone"`
}

// DiagnosisPage is one page of ListDiagnoses.
type DiagnosisPage struct {
	Items  []*Diagnosis `json:"items"`
	Total  int64        `json:"total"`
	Offset int          `json:"offset"`
	Limit  int          `json:"limit"`
}

// Health is the liveness probe body.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	Uptime  string `json:"uptime"`
}
