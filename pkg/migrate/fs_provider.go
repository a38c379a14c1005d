package migrate

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Format: 001_migration_name.up.sql or 001_migration_name.down.sql
var migrationFile = regexp.MustCompile(`^(\d+)_(.+)\.(up|down)\.sql$`)

// FSProvider loads migrations from a file system, either a directory on disk
// or an embedded migration set
type FSProvider struct {
	fsys           fs.FS
	root           string
	migrationTable string
	dbDriver       string // "sqlite" or "postgres"
}

// NewFSProvider creates a provider reading migrations below root in fsys
func NewFSProvider(fsys fs.FS, root, migrationTable, dbDriver string) *FSProvider {
	if migrationTable == "" {
		migrationTable = "schema_migrations"
	}
	if root == "" {
		root = "."
	}
	if dbDriver == "" {
		dbDriver = "sqlite"
	}
	return &FSProvider{
		fsys:           fsys,
		root:           root,
		migrationTable: migrationTable,
		dbDriver:       dbDriver,
	}
}

// NewFileProvider creates a SQLite migration provider for a directory on disk
func NewFileProvider(dir string, migrationTable string) *FSProvider {
	return NewFSProvider(os.DirFS(dir), ".", migrationTable, "sqlite")
}

// GetMigrations loads all migrations, pairing up and down files by version
func (p *FSProvider) GetMigrations() ([]Migration, error) {
	byVersion := make(map[int]*Migration)

	err := fs.WalkDir(p.fsys, p.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := migrationFile.FindStringSubmatch(d.Name())
		if matches == nil {
			return nil
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("invalid version number in file %s: %w", d.Name(), err)
		}

		content, err := fs.ReadFile(p.fsys, path)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", path, err)
		}

		m, ok := byVersion[version]
		if !ok {
			m = &Migration{Version: version, Name: strings.ReplaceAll(matches[2], "_", " ")}
			byVersion[version] = m
		}
		if matches[3] == "up" {
			m.Up = string(content)
		} else {
			m.Down = string(content)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations from %s: %w", p.root, err)
	}

	migrations := make([]Migration, 0, len(byVersion))
	for _, m := range byVersion {
		migrations = append(migrations, *m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// CreateMigrationTable creates the migration tracking table
func (p *FSProvider) CreateMigrationTable(db *sql.DB) error {
	timestampType := "DATETIME"
	if p.dbDriver == "postgres" {
		timestampType = "TIMESTAMP"
	}

	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INTEGER PRIMARY KEY,
			applied_at %s DEFAULT CURRENT_TIMESTAMP
		)
	`, p.migrationTable, timestampType)

	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to create migration table: %w", err)
	}
	return nil
}

// GetCurrentVersion returns the highest applied migration version
func (p *FSProvider) GetCurrentVersion(db *sql.DB) (int, error) {
	query := fmt.Sprintf("SELECT COALESCE(MAX(version), 0) FROM %s", p.migrationTable)

	var version int
	if err := db.QueryRow(query).Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}
	return version, nil
}

// AppliedVersions maps every recorded version to the time it was applied
func (p *FSProvider) AppliedVersions(db *sql.DB) (map[int]string, error) {
	rows, err := db.Query(fmt.Sprintf("SELECT version, applied_at FROM %s", p.migrationTable))
	if err != nil {
		return nil, fmt.Errorf("failed to list applied versions: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var at sql.NullString
		if err := rows.Scan(&version, &at); err != nil {
			return nil, fmt.Errorf("failed to scan applied version: %w", err)
		}
		applied[version] = at.String
	}
	return applied, rows.Err()
}

// SetVersion records version as applied and forgets every later version
func (p *FSProvider) SetVersion(db DB, version int) error {
	placeholder := "?"
	if p.dbDriver == "postgres" {
		placeholder = "$1"
	}

	if _, err := db.Exec(fmt.Sprintf("DELETE FROM %s WHERE version > %s", p.migrationTable, placeholder), version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	if version == 0 {
		return nil
	}

	var query string
	if p.dbDriver == "postgres" {
		query = fmt.Sprintf(`
			INSERT INTO %s (version, applied_at)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (version) DO UPDATE SET applied_at = CURRENT_TIMESTAMP
		`, p.migrationTable)
	} else {
		query = fmt.Sprintf(`
			INSERT OR REPLACE INTO %s (version, applied_at)
			VALUES (?, CURRENT_TIMESTAMP)
		`, p.migrationTable)
	}

	if _, err := db.Exec(query, version); err != nil {
		return fmt.Errorf("failed to set version: %w", err)
	}
	return nil
}
