package repositories

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"github.com/Sira-Clinica/backend/internal/domain/diagnosis"
	"github.com/Sira-Clinica/backend/internal/infrastructure/database/postgres"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	pkgerrors "github.com/Sira-Clinica/backend/pkg/errors"
)

var diagnosisColumnNames = []string{
	"id", "dni", "temperatura", "edad", "f_card", "f_resp", "talla", "peso", "genero", "imc",
	"motivo_consulta", "examen_fisico", "motivo_normalized", "examen_normalized", "resultado", "zona",
	"indicaciones", "medicamentos", "notas", "source", "created_at", "updated_at",
}

func diagnosisRow(id string, dni interface{}, created time.Time) []driver.Value {
	return []driver.Value{
		id, dni, 38.5, 40, 90, 22, 170.0, 70.0, "M", 24.22,
		"Tos con flema", "Ruidos roncos", "tos productiva", "roncus", "bronquitis", "bronquios",
		"", "", "", "api", created, created,
	}
}

type DiagnosisRepoTestSuite struct {
	suite.Suite
	db   *sql.DB
	mock sqlmock.Sqlmock
	repo diagnosis.Repository
}

func (s *DiagnosisRepoTestSuite) SetupTest() {
	var err error
	s.db, s.mock, err = sqlmock.New()
	s.Require().NoError(err)

	log := logging.NewNopLogger()
	s.repo = NewPostgresDiagnosisRepo(postgres.NewConnectionWithDB(s.db, log), log)
}

func (s *DiagnosisRepoTestSuite) TearDownTest() {
	s.NoError(s.mock.ExpectationsWereMet())
	s.db.Close()
}

func (s *DiagnosisRepoTestSuite) newDiagnosis() *diagnosis.Diagnosis {
	v := triage_model.VitalsRecord{Temperatura: 38.5, Edad: 40, FCard: 90, FResp: 22, Talla: 170, Peso: 70}
	return diagnosis.New("", v, "Tos con flema", "Ruidos roncos", &triage_model.Prediction{
		Label: "bronquitis", ZoneLabel: "bronquios", MotivoNormalized: "tos productiva", ExamenNormalized: "roncus",
	}, triage_model.SourceAPI)
}

func (s *DiagnosisRepoTestSuite) TestCreate() {
	d := s.newDiagnosis()

	s.mock.ExpectExec("INSERT INTO diagnoses").
		WithArgs(d.ID, sql.NullString{}, 38.5, 40, 90, 22, 170.0, 70.0, "M", d.IMC,
			"Tos con flema", "Ruidos roncos", "tos productiva", "roncus", "bronquitis", "bronquios",
			"", "", "", "api", d.CreatedAt, d.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	s.NoError(s.repo.Create(context.Background(), d))
}

func (s *DiagnosisRepoTestSuite) TestCreate_DatabaseError() {
	s.mock.ExpectExec("INSERT INTO diagnoses").WillReturnError(errors.New("disk full"))

	err := s.repo.Create(context.Background(), s.newDiagnosis())
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDatabaseError))
}

func (s *DiagnosisRepoTestSuite) TestGetByID_Found() {
	id := uuid.NewString()
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	s.mock.ExpectQuery(`SELECT (.+) FROM diagnoses WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(diagnosisColumnNames).AddRow(diagnosisRow(id, "123", created)...))

	d, err := s.repo.GetByID(context.Background(), id)
	s.Require().NoError(err)
	s.Equal(id, d.ID)
	s.Equal("123", d.DNI)
	s.Equal(triage_model.GenderM, d.Genero)
	s.Equal("bronquitis", d.Resultado)
	s.Equal(created, d.CreatedAt)
}

func (s *DiagnosisRepoTestSuite) TestGetByID_NotFound() {
	id := uuid.NewString()
	s.mock.ExpectQuery(`SELECT (.+) FROM diagnoses WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := s.repo.GetByID(context.Background(), id)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDiagnosisNotFound))
}

func (s *DiagnosisRepoTestSuite) TestGetByID_MalformedIDSkipsQuery() {
	_, err := s.repo.GetByID(context.Background(), "42")
	s.True(pkgerrors.IsNotFound(err))
}

func (s *DiagnosisRepoTestSuite) TestList() {
	now := time.Now()
	s.mock.ExpectQuery(`SELECT COUNT\(\*\) FROM diagnoses`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	s.mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1 OFFSET \$2`).
		WithArgs(2, 1).
		WillReturnRows(sqlmock.NewRows(diagnosisColumnNames).
			AddRow(diagnosisRow(uuid.NewString(), nil, now)...).
			AddRow(diagnosisRow(uuid.NewString(), "9", now)...))

	list, total, err := s.repo.List(context.Background(), diagnosis.WithPagination(1, 2))
	s.Require().NoError(err)
	s.Equal(int64(3), total)
	s.Len(list, 2)
	s.Empty(list[0].DNI)
	s.Equal("9", list[1].DNI)
}

func (s *DiagnosisRepoTestSuite) TestUpdateNotes() {
	d := s.newDiagnosis()
	d.Notas = "control en 48h"

	s.mock.ExpectExec("UPDATE diagnoses").
		WithArgs("", "", "control en 48h", d.UpdatedAt, d.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.UpdateNotes(context.Background(), d))

	s.mock.ExpectExec("UPDATE diagnoses").WillReturnResult(sqlmock.NewResult(0, 0))
	err := s.repo.UpdateNotes(context.Background(), d)
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDiagnosisNotFound))
}

func (s *DiagnosisRepoTestSuite) TestDelete() {
	id := uuid.NewString()
	s.mock.ExpectExec(`DELETE FROM diagnoses WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	s.NoError(s.repo.Delete(context.Background(), id))

	s.mock.ExpectExec(`DELETE FROM diagnoses WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 0))
	s.True(pkgerrors.IsNotFound(s.repo.Delete(context.Background(), id)))
}

func (s *DiagnosisRepoTestSuite) TestListByDNI() {
	s.mock.ExpectQuery(`FROM diagnoses WHERE dni = \$1 ORDER BY created_at DESC`).
		WithArgs("555").
		WillReturnRows(sqlmock.NewRows(diagnosisColumnNames))

	list, err := s.repo.ListByDNI(context.Background(), "555")
	s.Require().NoError(err)
	s.NotNil(list)
	s.Empty(list)
}

func (s *DiagnosisRepoTestSuite) TestLatestByDNI() {
	id := uuid.NewString()
	s.mock.ExpectQuery(`WHERE dni = \$1 ORDER BY created_at DESC LIMIT 1`).
		WithArgs("555").
		WillReturnRows(sqlmock.NewRows(diagnosisColumnNames).AddRow(diagnosisRow(id, "555", time.Now())...))

	d, err := s.repo.LatestByDNI(context.Background(), "555")
	s.Require().NoError(err)
	s.Equal(id, d.ID)

	s.mock.ExpectQuery(`WHERE dni = \$1 ORDER BY created_at DESC LIMIT 1`).
		WithArgs("000").
		WillReturnError(sql.ErrNoRows)
	_, err = s.repo.LatestByDNI(context.Background(), "000")
	s.True(pkgerrors.IsCode(err, pkgerrors.ErrCodeDiagnosisNotFound))
}

func TestDiagnosisRepoTestSuite(t *testing.T) {
	suite.Run(t, new(DiagnosisRepoTestSuite))
}
