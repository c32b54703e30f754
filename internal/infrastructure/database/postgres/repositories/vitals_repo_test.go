package repositories

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/Sira-Clinica/backend/internal/domain/vitals"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/postgres"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	pkgerrors "github.com/Sira-Clinica/backend/pkg/errors"
)

var vitalsColumnNames = []string{
	"id", "dni", "temperatura", "edad", "f_card", "f_resp", "talla", "peso", "genero", "imc", "recorded_at",
}

type VitalsRepoTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo vitals.Repository
}

func (s *VitalsRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	log := logging.NewNopLogger()
	s.repo = NewPostgresVitalsRepo(postgres.NewConnectionWithDB(s.db, log), log)
}

func (s *VitalsRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *VitalsRepoTestSuite) TestSave() {
	v, err := vitals.New("123", triage_model.VitalsRecord{
		Temperatura: 37, Edad: 20, FCard: 70, FResp: 16, Talla: 1.8, Peso: 81, Genero: triage_model.GenderF,
	})
	s.Require().NoError(err)

	s.mock.ExpectExec("INSERT INTO vital_signs").
		WithArgs(v.ID, "123", 37.0, 20, 70, 16, 1.8, 81.0, "F", 25.0, v.RecordedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Save(context.Background(), v))
}

func (s *VitalsRepoTestSuite) TestLatestByDNI() {
	id := uuid.NewString()
	at := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery(`FROM vital_signs WHERE dni = \$1 ORDER BY recorded_at DESC LIMIT 1`).
		WithArgs("123").
		WillReturnRows(sqlmock.NewRows(vitalsColumnNames).
			AddRow(id, "123", 38.0, 33, 88, 20, 165.0, 60.0, "F", 22.04, at))

	v, err := s.repo.LatestByDNI(context.Background(), "123")
	s.Require().NoError(err)
	s.Equal(id, v.ID)
	s.Equal(triage_model.GenderF, v.Genero)
	s.Equal(at, v.RecordedAt)
}

func (s *VitalsRepoTestSuite) TestLatestByDNI_NotFound() {
	s.mock.ExpectQuery(`FROM vital_signs WHERE dni = \$1`).
		WithArgs("404").
		WillReturnError(sql.ErrNoRows)

	_, err := s.repo.LatestByDNI(context.Background(), "404")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeVitalsNotFound))
	s.True(pkgerrors.IsNotFound(err))
}

func (s *VitalsRepoTestSuite) TestListByDNI() {
	now := time.Now()
	s.mock.ExpectQuery(`FROM vital_signs WHERE dni = \$1 ORDER BY recorded_at DESC`).
		WithArgs("123").
		WillReturnRows(sqlmock.NewRows(vitalsColumnNames).
			AddRow(uuid.NewString(), "123", 38.0, 33, 88, 20, 165.0, 60.0, "M", 22.04, now).
			AddRow(uuid.NewString(), "123", 37.0, 33, 80, 18, 165.0, 61.0, "M", 22.41, now.Add(-time.Hour)))

	list, err := s.repo.ListByDNI(context.Background(), "123")
	s.Require().NoError(err)
	s.Len(list, 2)
	s.Equal(triage_model.GenderM, list[1].Genero)
}

func TestVitalsRepoTestSuite(t *testing.T) {
	suite.Run(t, new(VitalsRepoTestSuite))
}
