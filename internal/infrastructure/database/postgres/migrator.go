package postgres

import (
	"embed"
	stderrors "errors"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Sira-Clinica/backend/internal/config"
	"github.com/Sira-Clinica/backend/internal/infrastructure/monitoring/logging"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the schema migrations.  The embedded set is used unless
// database.migration_path names a directory.
type Migrator struct {
	m      *migrate.Migrate
	logger logging.Logger
}

// NewMigrator connects the migration driver.  It opens its own connection,
// released by Close.
func NewMigrator(cfg config.DatabaseConfig, log logging.Logger) (*Migrator, error) {
	var (
		m   *migrate.Migrate
		err error
	)
	if cfg.MigrationPath != "" {
		m, err = migrate.New(sourceURL(cfg.MigrationPath), migrationURL(cfg))
	} else {
		src, serr := iofs.New(migrationFiles, "migrations")
		if serr != nil {
			return nil, errors.Wrap(serr, errors.ErrCodeInternal, "failed to read embedded migrations")
		}
		m, err = migrate.NewWithSourceInstance("iofs", src, migrationURL(cfg))
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to create migrate instance")
	}
	return &Migrator{m: m, logger: log}, nil
}

// Up applies all pending migrations.  No pending migration is not an error.
func (mg *Migrator) Up() error {
	if err := mg.m.Up(); err != nil && !stderrors.Is(err, migrate.ErrNoChange) {
		version, _, _ := mg.m.Version()
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to run migrations").
			WithDetail("current version " + strconv.FormatUint(uint64(version), 10))
	}
	version, dirty, err := mg.Version()
	if err != nil {
		return err
	}
	mg.logger.Info("database migrations completed",
		logging.Int64("version", int64(version)),
		logging.Bool("dirty", dirty),
	)
	return nil
}

// Down rolls back steps migrations.
func (mg *Migrator) Down(steps int) error {
	if steps <= 0 {
		return errors.Validation("steps must be greater than 0")
	}
	if err := mg.m.Steps(-steps); err != nil {
		if stderrors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to roll back migrations")
	}
	mg.logger.Info("database migrations rolled back", logging.Int("steps", steps))
	return nil
}

// Version returns the applied version; 0 when nothing has been applied.
func (mg *Migrator) Version() (uint, bool, error) {
	version, dirty, err := mg.m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to read migration version")
	}
	return version, dirty, nil
}

// Close releases the source and database handles.
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		return errors.Wrap(srcErr, errors.ErrCodeInternal, "failed to close migration source")
	}
	if dbErr != nil {
		return errors.Wrap(dbErr, errors.ErrCodeDatabaseError, "failed to close migration database")
	}
	return nil
}

// migrationURL selects the pgx v5 migrate driver.
func migrationURL(cfg config.DatabaseConfig) string {
	return "pgx5" + strings.TrimPrefix(buildDSN(cfg), "postgres")
}

func sourceURL(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}
