package migrate

import (
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func testMigrations() fstest.MapFS {
	return fstest.MapFS{
		"sql/001_create_profiles.up.sql":   {Data: []byte(`CREATE TABLE profiles (name TEXT PRIMARY KEY);`)},
		"sql/001_create_profiles.down.sql": {Data: []byte(`DROP TABLE profiles;`)},
		"sql/002_add_units.up.sql":         {Data: []byte(`ALTER TABLE profiles ADD COLUMN units TEXT;`)},
		"sql/002_add_units.down.sql":       {Data: []byte(`ALTER TABLE profiles DROP COLUMN units;`)},
		"sql/README.md":                    {Data: []byte(`ignored`)},
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetMigrationsPairsFiles(t *testing.T) {
	p := NewFSProvider(testMigrations(), "sql", "", "")

	migrations, err := p.GetMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create profiles", migrations[0].Name)
	assert.Contains(t, migrations[0].Up, "CREATE TABLE")
	assert.Contains(t, migrations[0].Down, "DROP TABLE")
	assert.Equal(t, 2, migrations[1].Version)
}

func TestMigrateUpAndDown(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations(), "sql", "", "sqlite"), nil)

	require.NoError(t, m.MigrateUp())

	version, err := m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)

	_, err = db.Exec(`INSERT INTO profiles (name, units) VALUES ('glucose', 'mmol/L')`)
	require.NoError(t, err)

	pending, err := m.GetPendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, m.MigrateTo(1))
	version, err = m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	_, err = db.Exec(`INSERT INTO profiles (name, units) VALUES ('heart-rate', 'bpm')`)
	assert.Error(t, err, "units column should be gone after rolling back")

	pending, err = m.GetPendingMigrations()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations(), "sql", "", "sqlite"), nil)

	require.NoError(t, m.MigrateUp())
	require.NoError(t, m.MigrateUp())

	version, err := m.GetCurrentVersion()
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestMigrateDownRejectsHigherTarget(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations(), "sql", "", "sqlite"), nil)
	require.NoError(t, m.MigrateUp())

	assert.Error(t, m.MigrateDown(2))
}

func TestMigrationStatus(t *testing.T) {
	db := openTestDB(t)
	m := NewMigrator(db, NewFSProvider(testMigrations(), "sql", "", "sqlite"), nil)

	status, err := m.Status()
	require.NoError(t, err)
	assert.Equal(t, 0, status.Current)
	assert.Equal(t, 2, status.Latest)
	assert.Empty(t, status.Applied)
	require.Len(t, status.Pending, 2)
	assert.False(t, status.Ahead())

	require.NoError(t, m.MigrateTo(1))
	status, err = m.Status()
	require.NoError(t, err)
	require.Len(t, status.Applied, 1)
	assert.Equal(t, 1, status.Applied[0].Version)
	assert.Equal(t, "create profiles", status.Applied[0].Name)
	assert.NotEmpty(t, status.Applied[0].AppliedAt)
	require.Len(t, status.Pending, 1)
	assert.Equal(t, 2, status.Pending[0].Version)

	// a newer build recorded a version this one has never seen
	_, err = db.Exec(`INSERT INTO schema_migrations (version) VALUES (7)`)
	require.NoError(t, err)
	status, err = m.Status()
	require.NoError(t, err)
	assert.True(t, status.Ahead())
	assert.Equal(t, 7, status.Current)
	require.Len(t, status.Applied, 2)
	assert.Equal(t, 7, status.Applied[1].Version)
	assert.Empty(t, status.Applied[1].Name)
	assert.Empty(t, status.Pending)
	assert.Error(t, m.MigrateUp(), "migrating up must not roll back a newer schema")
}
