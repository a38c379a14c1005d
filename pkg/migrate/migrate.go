// Package migrate applies versioned SQL schema migrations.
package migrate

import (
	"database/sql"
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Migration represents a single database migration
type Migration struct {
	Version int
	Name    string
	Up      string
	Down    string
}

// DB represents either a database connection or transaction
type DB interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// MigrationProvider defines how migrations are loaded and managed
type MigrationProvider interface {
	GetMigrations() ([]Migration, error)
	GetCurrentVersion(db *sql.DB) (int, error)
	SetVersion(db DB, version int) error
	CreateMigrationTable(db *sql.DB) error
	AppliedVersions(db *sql.DB) (map[int]string, error)
}

// AppliedMigration is a migration recorded in the migration table
type AppliedMigration struct {
	Migration
	AppliedAt string
}

// Status describes the schema of a database against the known migrations. Current is the
// highest applied version and Latest the highest version the provider knows about.
type Status struct {
	Current int
	Latest  int
	Applied []AppliedMigration
	Pending []Migration
}

// Ahead reports whether the database was migrated by a newer build than this one
func (s *Status) Ahead() bool {
	return s.Current > s.Latest
}

// Migrator handles the execution of migrations
type Migrator struct {
	db       *sql.DB
	provider MigrationProvider
	logger   *zap.SugaredLogger
}

// NewMigrator creates a new migrator instance. A nil logger discards output.
func NewMigrator(db *sql.DB, provider MigrationProvider, logger *zap.SugaredLogger) *Migrator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Migrator{
		db:       db,
		provider: provider,
		logger:   logger,
	}
}

// MigrateUp runs all pending migrations up to the latest version
func (m *Migrator) MigrateUp() error {
	return m.MigrateTo(-1)
}

// MigrateDown runs down migrations to revert to a specific version
func (m *Migrator) MigrateDown(targetVersion int) error {
	currentVersion, err := m.provider.GetCurrentVersion(m.db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	if targetVersion >= currentVersion {
		return fmt.Errorf("target version %d must be less than current version %d", targetVersion, currentVersion)
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return fmt.Errorf("failed to get migrations: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version > migrations[j].Version
	})

	for _, migration := range migrations {
		if migration.Version > targetVersion && migration.Version <= currentVersion {
			if err := m.executeMigration(migration, false); err != nil {
				return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
			}
		}
	}

	return nil
}

// MigrateTo runs migrations up or down to reach a specific version; -1 means latest
func (m *Migrator) MigrateTo(targetVersion int) error {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}

	currentVersion, err := m.provider.GetCurrentVersion(m.db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return fmt.Errorf("failed to get migrations: %w", err)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	if targetVersion == -1 {
		targetVersion = currentVersion
		if len(migrations) > 0 {
			targetVersion = migrations[len(migrations)-1].Version
		}
		if currentVersion > targetVersion {
			return fmt.Errorf("database is at version %d, newer than the latest known migration %d", currentVersion, targetVersion)
		}
	}

	if targetVersion < currentVersion {
		return m.MigrateDown(targetVersion)
	}

	for _, migration := range migrations {
		if migration.Version > currentVersion && migration.Version <= targetVersion {
			if err := m.executeMigration(migration, true); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
			}
		}
	}

	return nil
}

// GetCurrentVersion returns the current migration version
func (m *Migrator) GetCurrentVersion() (int, error) {
	if err := m.provider.CreateMigrationTable(m.db); err != nil {
		return 0, fmt.Errorf("failed to create migration table: %w", err)
	}
	return m.provider.GetCurrentVersion(m.db)
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (m *Migrator) GetPendingMigrations() ([]Migration, error) {
	currentVersion, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, err
	}

	var pending []Migration
	for _, migration := range migrations {
		if migration.Version > currentVersion {
			pending = append(pending, migration)
		}
	}

	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version < pending[j].Version
	})

	return pending, nil
}

// Status reports applied and pending migrations. Applied versions without a matching
// migration keep an empty name.
func (m *Migrator) Status() (*Status, error) {
	currentVersion, err := m.GetCurrentVersion()
	if err != nil {
		return nil, err
	}

	migrations, err := m.provider.GetMigrations()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations: %w", err)
	}
	applied, err := m.provider.AppliedVersions(m.db)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied versions: %w", err)
	}

	known := make(map[int]Migration, len(migrations))
	status := &Status{Current: currentVersion}
	for _, migration := range migrations {
		known[migration.Version] = migration
		if migration.Version > status.Latest {
			status.Latest = migration.Version
		}
		if _, ok := applied[migration.Version]; !ok && migration.Version > currentVersion {
			status.Pending = append(status.Pending, migration)
		}
	}
	for version, at := range applied {
		migration, ok := known[version]
		if !ok {
			migration = Migration{Version: version}
		}
		status.Applied = append(status.Applied, AppliedMigration{Migration: migration, AppliedAt: at})
	}

	sort.Slice(status.Applied, func(i, j int) bool { return status.Applied[i].Version < status.Applied[j].Version })
	sort.Slice(status.Pending, func(i, j int) bool { return status.Pending[i].Version < status.Pending[j].Version })
	return status, nil
}

// executeMigration runs a single migration up or down inside a transaction
func (m *Migrator) executeMigration(migration Migration, up bool) error {
	direction, stmt, newVersion := "up", migration.Up, migration.Version
	if !up {
		direction, stmt, newVersion = "down", migration.Down, migration.Version-1
	}

	if stmt == "" {
		return fmt.Errorf("migration %d has no %s SQL", migration.Version, direction)
	}

	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(stmt); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}

	if err := m.provider.SetVersion(tx, newVersion); err != nil {
		return fmt.Errorf("failed to update migration version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	m.logger.Infof("applied migration %d (%s) %s", migration.Version, migration.Name, direction)
	return nil
}

// SetVersion allows manually setting the migration version (use with caution)
func (m *Migrator) SetVersion(version int) error {
	return m.provider.SetVersion(m.db, version)
}
