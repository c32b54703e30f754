package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sira-Clinica/backend/internal/infrastructure/database/postgres"
	"github.com/Sira-Clinica/backend/pkg/errors"
)

// migrator is the subset of *postgres.Migrator the commands use.
type migrator interface {
	Up() error
	Down(steps int) error
	Version() (uint, bool, error)
	Close() error
}

var newMigrator = func(c *CLIContext) (migrator, error) {
	return postgres.NewMigrator(c.Config.Database, c.Logger)
}

// MigrationStatus is the output of the migrate commands.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s MigrationStatus) String() string {
	if s.Dirty {
		return fmt.Sprintf("version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("version %d", s.Version)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, func(m migrator) error { return m.Down(steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(cmd, func(m migrator) error { return m.Up() })
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Show the applied migration version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigration(cmd, nil)
			},
		},
	)
	return cmd
}

// runMigration applies op, if any, and prints the resulting version.
func runMigration(cmd *cobra.Command, op func(migrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	if !cliCtx.Config.Database.Enabled() {
		return errors.Configuration("database.host is not configured")
	}

	m, err := newMigrator(cliCtx)
	if err != nil {
		return err
	}
	defer m.Close()

	if op != nil {
		if err := op(m); err != nil {
			return err
		}
	}
	version, dirty, err := m.Version()
	if err != nil {
		return err
	}
	return PrintResult(cmd, MigrationStatus{Version: version, Dirty: dirty})
}
