package repositories

import (
	"context"
	"database/sql"

	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/postgres"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

const diagnosisColumns = `id, dni, temperatura, edad, f_card, f_resp, talla, peso, genero, imc,
	motivo_consulta, examen_fisico, motivo_normalized, examen_normalized, resultado, zona,
	indicaciones, medicamentos, notas, source, created_at, updated_at`

type postgresDiagnosisRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewPostgresDiagnosisRepo returns a diagnosis.Repository backed by conn.
func NewPostgresDiagnosisRepo(conn *postgres.Connection, log logging.Logger) diagnosis.Repository {
	return &postgresDiagnosisRepo{conn: conn, log: log}
}

func (r *postgresDiagnosisRepo) Create(ctx context.Context, d *diagnosis.Diagnosis) error {
	query := `
		INSERT INTO diagnoses (` + diagnosisColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`
	_, err := r.conn.DB().ExecContext(ctx, query,
		d.ID, nullString(d.DNI), d.Temperatura, d.Edad, d.FCard, d.FResp, d.Talla, d.Peso,
		genderColumn(d.Genero), d.IMC,
		d.MotivoConsulta, d.ExamenFisico, d.MotivoNormalized, d.ExamenNormalized, d.Resultado, d.Zona,
		d.Indicaciones, d.Medicamentos, d.Notas, d.Source, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return dbError(err, "failed to create diagnosis")
	}
	r.log.Debug("diagnosis stored", logging.String("id", d.ID), logging.String("source", d.Source))
	return nil
}

func (r *postgresDiagnosisRepo) GetByID(ctx context.Context, id string) (*diagnosis.Diagnosis, error) {
	if !validID(id) {
		return nil, diagnosisNotFound(id)
	}
	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses WHERE id = $1`
	d, err := scanDiagnosis(r.conn.DB().QueryRowContext(ctx, query, id))
	if isNoRows(err) {
		return nil, diagnosisNotFound(id)
	}
	if err != nil {
		return nil, dbError(err, "failed to get diagnosis")
	}
	return d, nil
}

func (r *postgresDiagnosisRepo) List(ctx context.Context, opts ...diagnosis.QueryOption) ([]*diagnosis.Diagnosis, int64, error) {
	o := diagnosis.ApplyOptions(opts...)

	var total int64
	if err := r.conn.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM diagnoses`).Scan(&total); err != nil {
		return nil, 0, dbError(err, "failed to count diagnoses")
	}
	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	list, err := r.query(ctx, query, o.Limit, o.Offset)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

func (r *postgresDiagnosisRepo) UpdateNotes(ctx context.Context, d *diagnosis.Diagnosis) error {
	if !validID(d.ID) {
		return diagnosisNotFound(d.ID)
	}
	query := `
		UPDATE diagnoses
		SET indicaciones = $1, medicamentos = $2, notas = $3, updated_at = $4
		WHERE id = $5
	`
	res, err := r.conn.DB().ExecContext(ctx, query, d.Indicaciones, d.Medicamentos, d.Notas, d.UpdatedAt, d.ID)
	if err != nil {
		return dbError(err, "failed to update diagnosis")
	}
	return requireAffected(res, diagnosisNotFound(d.ID))
}

func (r *postgresDiagnosisRepo) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return diagnosisNotFound(id)
	}
	res, err := r.conn.DB().ExecContext(ctx, `DELETE FROM diagnoses WHERE id = $1`, id)
	if err != nil {
		return dbError(err, "failed to delete diagnosis")
	}
	return requireAffected(res, diagnosisNotFound(id))
}

func (r *postgresDiagnosisRepo) ListByDNI(ctx context.Context, dni string) ([]*diagnosis.Diagnosis, error) {
	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses WHERE dni = $1 ORDER BY created_at DESC`
	return r.query(ctx, query, dni)
}

func (r *postgresDiagnosisRepo) LatestByDNI(ctx context.Context, dni string) (*diagnosis.Diagnosis, error) {
	query := `SELECT ` + diagnosisColumns + ` FROM diagnoses WHERE dni = $1 ORDER BY created_at DESC LIMIT 1`
	d, err := scanDiagnosis(r.conn.DB().QueryRowContext(ctx, query, dni))
	if isNoRows(err) {
		return nil, errors.New(errors.ErrCodeDiagnosisNotFound, "no diagnosis for patient")
	}
	if err != nil {
		return nil, dbError(err, "failed to get latest diagnosis")
	}
	return d, nil
}

func (r *postgresDiagnosisRepo) query(ctx context.Context, query string, args ...interface{}) ([]*diagnosis.Diagnosis, error) {
	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, dbError(err, "failed to query diagnoses")
	}
	defer rows.Close()

	list := make([]*diagnosis.Diagnosis, 0)
	for rows.Next() {
		d, err := scanDiagnosis(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan diagnosis")
		}
		list = append(list, d)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to iterate diagnoses")
	}
	return list, nil
}

func scanDiagnosis(s scanner) (*diagnosis.Diagnosis, error) {
	var (
		d      diagnosis.Diagnosis
		dni    sql.NullString
		genero string
	)
	err := s.Scan(
		&d.ID, &dni, &d.Temperatura, &d.Edad, &d.FCard, &d.FResp, &d.Talla, &d.Peso, &genero, &d.IMC,
		&d.MotivoConsulta, &d.ExamenFisico, &d.MotivoNormalized, &d.ExamenNormalized, &d.Resultado, &d.Zona,
		&d.Indicaciones, &d.Medicamentos, &d.Notas, &d.Source, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	d.DNI = dni.String
	d.Genero = triage_model.ParseGender(genero)
	return &d, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return dbError(err, "failed to read affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func diagnosisNotFound(id string) error {
	return errors.New(errors.ErrCodeDiagnosisNotFound, "diagnosis not found").WithDetail(id)
}
