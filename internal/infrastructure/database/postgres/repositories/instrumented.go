package repositories

import (
	"context"
	"time"

	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/domain/vitals"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// QueryRecorder receives repository latencies and failures.
type QueryRecorder interface {
	RecordDBQuery(operation string, d time.Duration)
	RecordError(component, kind string)
}

func observe(rec QueryRecorder, operation string, start time.Time, err error) {
	rec.RecordDBQuery(operation, time.Since(start))
	// not-found lookups are not counted as errors
	if err != nil && !errors.IsNotFound(err) {
		rec.RecordError("postgres", errors.KindOf(err).String())
	}
}

type instrumentedDiagnosisRepo struct {
	next diagnosis.Repository
	rec  QueryRecorder
}

// InstrumentDiagnosisRepo reports every call on next to rec.  A nil rec
// returns next unchanged.
func InstrumentDiagnosisRepo(next diagnosis.Repository, rec QueryRecorder) diagnosis.Repository {
	if rec == nil {
		return next
	}
	return &instrumentedDiagnosisRepo{next: next, rec: rec}
}

func (r *instrumentedDiagnosisRepo) Create(ctx context.Context, d *diagnosis.Diagnosis) error {
	start := time.Now()
	err := r.next.Create(ctx, d)
	observe(r.rec, "diagnosis_create", start, err)
	return err
}

func (r *instrumentedDiagnosisRepo) GetByID(ctx context.Context, id string) (*diagnosis.Diagnosis, error) {
	start := time.Now()
	d, err := r.next.GetByID(ctx, id)
	observe(r.rec, "diagnosis_get", start, err)
	return d, err
}

func (r *instrumentedDiagnosisRepo) List(ctx context.Context, opts ...diagnosis.QueryOption) ([]*diagnosis.Diagnosis, int64, error) {
	start := time.Now()
	list, total, err := r.next.List(ctx, opts...)
	observe(r.rec, "diagnosis_list", start, err)
	return list, total, err
}

func (r *instrumentedDiagnosisRepo) UpdateNotes(ctx context.Context, d *diagnosis.Diagnosis) error {
	start := time.Now()
	err := r.next.UpdateNotes(ctx, d)
	observe(r.rec, "diagnosis_update_notes", start, err)
	return err
}

func (r *instrumentedDiagnosisRepo) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := r.next.Delete(ctx, id)
	observe(r.rec, "diagnosis_delete", start, err)
	return err
}

func (r *instrumentedDiagnosisRepo) ListByDNI(ctx context.Context, dni string) ([]*diagnosis.Diagnosis, error) {
	start := time.Now()
	list, err := r.next.ListByDNI(ctx, dni)
	observe(r.rec, "diagnosis_list_by_dni", start, err)
	return list, err
}

func (r *instrumentedDiagnosisRepo) LatestByDNI(ctx context.Context, dni string) (*diagnosis.Diagnosis, error) {
	start := time.Now()
	d, err := r.next.LatestByDNI(ctx, dni)
	observe(r.rec, "diagnosis_latest_by_dni", start, err)
	return d, err
}

type instrumentedVitalsRepo struct {
	next vitals.Repository
	rec  QueryRecorder
}

// InstrumentVitalsRepo reports every call on next to rec.  A nil rec returns
// next unchanged.
func InstrumentVitalsRepo(next vitals.Repository, rec QueryRecorder) vitals.Repository {
	if rec == nil {
		return next
	}
	return &instrumentedVitalsRepo{next: next, rec: rec}
}

func (r *instrumentedVitalsRepo) Save(ctx context.Context, v *vitals.VitalSigns) error {
	start := time.Now()
	err := r.next.Save(ctx, v)
	observe(r.rec, "vitals_save", start, err)
	return err
}

func (r *instrumentedVitalsRepo) LatestByDNI(ctx context.Context, dni string) (*vitals.VitalSigns, error) {
	start := time.Now()
	v, err := r.next.LatestByDNI(ctx, dni)
	observe(r.rec, "vitals_latest_by_dni", start, err)
	return v, err
}

func (r *instrumentedVitalsRepo) ListByDNI(ctx context.Context, dni string) ([]*vitals.VitalSigns, error) {
	start := time.Now()
	list, err := r.next.ListByDNI(ctx, dni)
	observe(r.rec, "vitals_list_by_dni", start, err)
	return list, err
}
