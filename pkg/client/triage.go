package client

import (
	"context"
	"net/url"
	"strconv"

	"github.com/Sira-Clinica/backend/pkg/errors"
)

const apiPrefix = "/api/v1"

func patientPath(dni string, suffix string) (string, error) {
	if dni == "" {
		return "", errors.Validation("dni is required")
	}
	return apiPrefix + "/patients/" + url.PathEscape(dni) + suffix, nil
}

func diagnosisPath(id string) (string, error) {
	if id == "" {
		return "", errors.Validation("diagnosis id is required")
	}
	return apiPrefix + "/diagnoses/" + url.PathEscape(id), nil
}

// Health calls the liveness probe.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/healthz", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// Predict runs the pipeline on req.  The diagnosis is stored when the server
// has persistence enabled.
func (c *Client) Predict(ctx context.Context, req *PredictRequest) (*Diagnosis, error) {
	if req == nil {
		return nil, errors.Validation("request is required")
	}
	var d Diagnosis
	if err := c.post(ctx, apiPrefix+"/predict", req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Normalize previews text normalization without predicting.
func (c *Client) Normalize(ctx context.Context, motivo, examen string) (*Normalization, error) {
	body := map[string]string{"motivo_consulta": motivo, "examenfisico": examen}
	var n Normalization
	if err := c.post(ctx, apiPrefix+"/normalize", body, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// RecordVitals stores a set of vital signs for dni.
func (c *Client) RecordVitals(ctx context.Context, dni string, v Vitals) (*VitalSigns, error) {
	path, err := patientPath(dni, "/vitals")
	if err != nil {
		return nil, err
	}
	var rec VitalSigns
	if err := c.post(ctx, path, v, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListVitals returns the recorded vitals of dni, newest first.
func (c *Client) ListVitals(ctx context.Context, dni string) ([]*VitalSigns, error) {
	path, err := patientPath(dni, "/vitals")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Items []*VitalSigns `json:"items"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// PredictForPatient predicts with the latest recorded vitals of dni.
func (c *Client) PredictForPatient(ctx context.Context, dni string, req *PatientPredictRequest) (*Diagnosis, error) {
	path, err := patientPath(dni, "/predict")
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &PatientPredictRequest{}
	}
	var d Diagnosis
	if err := c.post(ctx, path, req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListPatientDiagnoses returns every diagnosis of dni, newest first.
func (c *Client) ListPatientDiagnoses(ctx context.Context, dni string) ([]*Diagnosis, error) {
	path, err := patientPath(dni, "/diagnoses")
	if err != nil {
		return nil, err
	}
	var resp struct {
		Items []*Diagnosis `json:"items"`
	}
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// LatestPatientDiagnosis returns the newest diagnosis of dni.
func (c *Client) LatestPatientDiagnosis(ctx context.Context, dni string) (*Diagnosis, error) {
	path, err := patientPath(dni, "/diagnoses/latest")
	if err != nil {
		return nil, err
	}
	var d Diagnosis
	if err := c.get(ctx, path, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDiagnoses pages through all diagnoses.  Zero values select the server
// defaults.
func (c *Client) ListDiagnoses(ctx context.Context, offset, limit int) (*DiagnosisPage, error) {
	q := url.Values{}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := apiPrefix + "/diagnoses"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var page DiagnosisPage
	if err := c.get(ctx, path, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetDiagnosis fetches one diagnosis.
func (c *Client) GetDiagnosis(ctx context.Context, id string) (*Diagnosis, error) {
	path, err := diagnosisPath(id)
	if err != nil {
		return nil, err
	}
	var d Diagnosis
	if err := c.get(ctx, path, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// UpdateNotes changes the clinical notes of a diagnosis.
func (c *Client) UpdateNotes(ctx context.Context, id string, notes Notes) (*Diagnosis, error) {
	path, err := diagnosisPath(id)
	if err != nil {
		return nil, err
	}
	var d Diagnosis
	if err := c.put(ctx, path, notes, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDiagnosis removes a diagnosis.
func (c *Client) DeleteDiagnosis(ctx context.Context, id string) error {
	path, err := diagnosisPath(id)
	if err != nil {
		return err
	}
	return c.delete(ctx, path)
}
