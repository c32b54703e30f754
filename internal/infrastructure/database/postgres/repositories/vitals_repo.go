package repositories

import (
	"context"

	"github.com/Sira-Clinica/backend/internal/domain/vitals"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/postgres"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

const vitalsColumns = `id, dni, temperatura, edad, f_card, f_resp, talla, peso, genero, imc, recorded_at`

type postgresVitalsRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewPostgresVitalsRepo returns a vitals.Repository backed by conn.
func NewPostgresVitalsRepo(conn *postgres.Connection, log logging.Logger) vitals.Repository {
	return &postgresVitalsRepo{conn: conn, log: log}
}

func (r *postgresVitalsRepo) Save(ctx context.Context, v *vitals.VitalSigns) error {
	query := `
		INSERT INTO vital_signs (` + vitalsColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.conn.DB().ExecContext(ctx, query,
		v.ID, v.DNI, v.Temperatura, v.Edad, v.FCard, v.FResp, v.Talla, v.Peso,
		genderColumn(v.Genero), v.IMC, v.RecordedAt,
	)
	if err != nil {
		return dbError(err, "failed to save vital signs")
	}
	r.log.Debug("vital signs stored", logging.String("id", v.ID))
	return nil
}

func (r *postgresVitalsRepo) LatestByDNI(ctx context.Context, dni string) (*vitals.VitalSigns, error) {
	query := `SELECT ` + vitalsColumns + ` FROM vital_signs WHERE dni = $1 ORDER BY recorded_at DESC LIMIT 1`
	v, err := scanVitals(r.conn.DB().QueryRowContext(ctx, query, dni))
	if isNoRows(err) {
		return nil, errors.New(errors.ErrCodeVitalsNotFound, "no vital signs recorded for patient")
	}
	if err != nil {
		return nil, dbError(err, "failed to get latest vital signs")
	}
	return v, nil
}

func (r *postgresVitalsRepo) ListByDNI(ctx context.Context, dni string) ([]*vitals.VitalSigns, error) {
	query := `SELECT ` + vitalsColumns + ` FROM vital_signs WHERE dni = $1 ORDER BY recorded_at DESC`
	rows, err := r.conn.DB().QueryContext(ctx, query, dni)
	if err != nil {
		return nil, dbError(err, "failed to query vital signs")
	}
	defer rows.Close()

	list := make([]*vitals.VitalSigns, 0)
	for rows.Next() {
		v, err := scanVitals(rows)
		if err != nil {
			return nil, dbError(err, "failed to scan vital signs")
		}
		list = append(list, v)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError(err, "failed to iterate vital signs")
	}
	return list, nil
}

func scanVitals(s scanner) (*vitals.VitalSigns, error) {
	var (
		v      vitals.VitalSigns
		genero string
	)
	err := s.Scan(&v.ID, &v.DNI, &v.Temperatura, &v.Edad, &v.FCard, &v.FResp, &v.Talla, &v.Peso,
		&genero, &v.IMC, &v.RecordedAt)
	if err != nil {
		return nil, err
	}
	v.Genero = triage_model.ParseGender(genero)
	return &v, nil
}
