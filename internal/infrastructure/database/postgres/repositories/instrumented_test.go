package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/domain/vitals"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

type recordedQuery struct {
	operation string
	errKind   string
}

type fakeRecorder struct {
	queries []recordedQuery
}

func (f *fakeRecorder) RecordDBQuery(operation string, _ time.Duration) {
	f.queries = append(f.queries, recordedQuery{operation: operation})
}

func (f *fakeRecorder) RecordError(component, kind string) {
	f.queries[len(f.queries)-1].errKind = component + "/" + kind
}

type mockDiagnosisRepo struct {
	mock.Mock
	diagnosis.Repository
}

func (m *mockDiagnosisRepo) GetByID(ctx context.Context, id string) (*diagnosis.Diagnosis, error) {
	args := m.Called(ctx, id)
	d, _ := args.Get(0).(*diagnosis.Diagnosis)
	return d, args.Error(1)
}

func (m *mockDiagnosisRepo) Create(ctx context.Context, d *diagnosis.Diagnosis) error {
	return m.Called(ctx, d).Error(0)
}

type mockVitalsRepo struct {
	mock.Mock
	vitals.Repository
}

func (m *mockVitalsRepo) LatestByDNI(ctx context.Context, dni string) (*vitals.VitalSigns, error) {
	args := m.Called(ctx, dni)
	v, _ := args.Get(0).(*vitals.VitalSigns)
	return v, args.Error(1)
}

func TestInstrumentDiagnosisRepo(t *testing.T) {
	ctx := context.Background()
	next := new(mockDiagnosisRepo)
	rec := &fakeRecorder{}
	repo := InstrumentDiagnosisRepo(next, rec)

	next.On("GetByID", ctx, "a").Return(&diagnosis.Diagnosis{ID: "a"}, nil)
	next.On("GetByID", ctx, "b").Return(nil, errors.New(errors.ErrCodeDiagnosisNotFound, "diagnosis not found"))
	next.On("Create", ctx, mock.Anything).Return(errors.New(errors.ErrCodeDatabaseError, "connection refused"))

	d, err := repo.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", d.ID)

	_, err = repo.GetByID(ctx, "b")
	assert.True(t, errors.IsNotFound(err))

	assert.Error(t, repo.Create(ctx, &diagnosis.Diagnosis{}))

	require.Len(t, rec.queries, 3)
	assert.Equal(t, recordedQuery{operation: "diagnosis_get"}, rec.queries[0])
	assert.Equal(t, recordedQuery{operation: "diagnosis_get"}, rec.queries[1])
	assert.Equal(t, "diagnosis_create", rec.queries[2].operation)
	assert.Equal(t, "postgres/"+errors.KindOf(err).String(), rec.queries[2].errKind)
	next.AssertExpectations(t)
}

func TestInstrumentVitalsRepo(t *testing.T) {
	ctx := context.Background()
	next := new(mockVitalsRepo)
	rec := &fakeRecorder{}
	repo := InstrumentVitalsRepo(next, rec)

	next.On("LatestByDNI", ctx, "12345678").Return(&vitals.VitalSigns{DNI: "12345678"}, nil)

	v, err := repo.LatestByDNI(ctx, "12345678")
	require.NoError(t, err)
	assert.Equal(t, "12345678", v.DNI)
	assert.Equal(t, []recordedQuery{{operation: "vitals_latest_by_dni"}}, rec.queries)
}

func TestInstrument_NilRecorder(t *testing.T) {
	next := new(mockDiagnosisRepo)
	assert.Same(t, next, InstrumentDiagnosisRepo(next, nil))

	vnext := new(mockVitalsRepo)
	assert.Same(t, vnext, InstrumentVitalsRepo(vnext, nil))
}
