package repositories

import (
	"database/sql"
	stderrors "errors"

	"github.com/google/uuid"

	"github.com/Sira-Clinica/backend/internal/intelligence/triage_model"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// validID reports whether id can be a primary key.  Anything else cannot
// exist and is reported as not found without a round trip.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func dbError(err error, msg string) error {
	return errors.Wrap(err, errors.ErrCodeDatabaseError, msg)
}

func isNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}

func genderColumn(g triage_model.Gender) string { return g.String() }
