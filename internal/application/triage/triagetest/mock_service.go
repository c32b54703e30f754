// Package triagetest provides a testify mock of the triage service for
// transport tests.
package triagetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	apptriage "github.com/Sira-Clinica/backend/internal/application/triage"
	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/domain/vitals"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
)

// MockService mocks apptriage.Service.
type MockService struct {
	mock.Mock
}

var _ apptriage.Service = (*MockService)(nil)

func (m *MockService) Predict(ctx context.Context, input *apptriage.PredictInput) (*diagnosis.Diagnosis, error) {
	args := m.Called(ctx, input)
	return diag(args)
}

func (m *MockService) PredictForPatient(ctx context.Context, input *apptriage.PatientPredictInput) (*diagnosis.Diagnosis, error) {
	args := m.Called(ctx, input)
	return diag(args)
}

func (m *MockService) Normalize(ctx context.Context, input *apptriage.NormalizeInput) (*triage_model.Normalization, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*triage_model.Normalization), args.Error(1)
}

func (m *MockService) RecordVitals(ctx context.Context, dni string, rec triage_model.VitalsRecord) (*vitals.VitalSigns, error) {
	args := m.Called(ctx, dni, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*vitals.VitalSigns), args.Error(1)
}

func (m *MockService) ListVitals(ctx context.Context, dni string) ([]*vitals.VitalSigns, error) {
	args := m.Called(ctx, dni)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*vitals.VitalSigns), args.Error(1)
}

func (m *MockService) GetDiagnosis(ctx context.Context, id string) (*diagnosis.Diagnosis, error) {
	args := m.Called(ctx, id)
	return diag(args)
}

func (m *MockService) ListDiagnoses(ctx context.Context, input *apptriage.ListInput) (*apptriage.ListResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apptriage.ListResult), args.Error(1)
}

func (m *MockService) UpdateNotes(ctx context.Context, id string, notes diagnosis.ClinicalNotes) (*diagnosis.Diagnosis, error) {
	args := m.Called(ctx, id, notes)
	return diag(args)
}

func (m *MockService) DeleteDiagnosis(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockService) ListPatientDiagnoses(ctx context.Context, dni string) ([]*diagnosis.Diagnosis, error) {
	args := m.Called(ctx, dni)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*diagnosis.Diagnosis), args.Error(1)
}

func (m *MockService) LatestPatientDiagnosis(ctx context.Context, dni string) (*diagnosis.Diagnosis, error) {
	args := m.Called(ctx, dni)
	return diag(args)
}

func diag(args mock.Arguments) (*diagnosis.Diagnosis, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*diagnosis.Diagnosis), args.Error(1)
}
