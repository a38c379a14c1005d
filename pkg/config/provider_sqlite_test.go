package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteProvider(t *testing.T) *SQLiteProvider {
	t.Helper()
	provider, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })
	return provider
}

func TestSQLiteProviderEmpty(t *testing.T) {
	provider := newTestSQLiteProvider(t)

	cfg, err := provider.LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, cfg.Profiles)
	assert.Empty(t, cfg.Series)
	assert.Empty(t, cfg.Controllers)
	assert.Nil(t, cfg.Storage.TimescaleDB)
	assert.False(t, provider.IsReadOnly())

	profiles, err := provider.GetProfiles()
	require.NoError(t, err)
	assert.Len(t, profiles, len(BuiltinProfiles()))
}

func TestSQLiteProviderRoundTrip(t *testing.T) {
	yamlCfg, err := parseYAML([]byte(testYAML))
	require.NoError(t, err)
	yamlCfg.Storage.SQLite = &SQLiteData{Path: "/var/lib/vitalseg/samples.db"}

	provider := newTestSQLiteProvider(t)
	require.NoError(t, provider.SaveConfig(yamlCfg))

	loaded, err := provider.LoadConfig()
	require.NoError(t, err)

	if diff := cmp.Diff(yamlCfg, loaded); diff != "" {
		t.Errorf("configuration changed in the round trip (-saved +loaded):\n%s", diff)
	}

	// saving again replaces rather than duplicates
	require.NoError(t, provider.SaveConfig(yamlCfg))
	series, err := provider.GetSeries()
	require.NoError(t, err)
	assert.Len(t, series, 1)
}

func TestSQLiteProviderAddDeleteProfile(t *testing.T) {
	provider := newTestSQLiteProvider(t)

	spo2 := &ProfileData{Name: "spo2", Units: "%", TargetLow: 94, TargetHigh: 100, RiskLow: 88, RiskHigh: 101}
	require.NoError(t, provider.AddProfile(spo2))

	got, err := provider.GetProfile("spo2")
	require.NoError(t, err)
	assert.Equal(t, 94.0, got.TargetLow)

	spo2.TargetLow = 92
	require.NoError(t, provider.AddProfile(spo2))
	got, err = provider.GetProfile("spo2")
	require.NoError(t, err)
	assert.Equal(t, 92.0, got.TargetLow)

	require.NoError(t, provider.DeleteProfile("spo2"))
	_, err = provider.GetProfile("spo2")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	assert.ErrorIs(t, provider.DeleteProfile("glucose"), ErrProfileNotFound)
}

func TestSQLiteProviderRejectsInvalidProfile(t *testing.T) {
	provider := newTestSQLiteProvider(t)
	err := provider.AddProfile(&ProfileData{Name: "broken", TargetLow: 5, TargetHigh: 1})
	assert.Error(t, err)
}

func TestSQLiteProviderReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.db")
	first, err := NewSQLiteProvider(path)
	require.NoError(t, err)
	require.NoError(t, first.AddProfile(&ProfileData{Name: "ketones", TargetLow: 0.1, TargetHigh: 0.6, RiskLow: 0.05, RiskHigh: 3}))
	require.NoError(t, first.Close())

	second, err := NewSQLiteProvider(path)
	require.NoError(t, err)
	defer second.Close()

	_, err = second.GetProfile("ketones")
	assert.NoError(t, err)
}

func TestSQLiteProviderSetManagementToken(t *testing.T) {
	provider := newTestSQLiteProvider(t)
	assert.Error(t, provider.SetManagementToken("abc"))

	require.NoError(t, provider.SaveConfig(&ConfigData{
		Controllers: []ControllerData{{Type: "management", Management: &ManagementData{Port: 8081}}},
	}))
	require.NoError(t, provider.SetManagementToken("abc"))

	controllers, err := provider.GetControllers()
	require.NoError(t, err)
	require.Len(t, controllers, 1)
	assert.Equal(t, "abc", controllers[0].Management.AuthToken)
	assert.Equal(t, 8081, controllers[0].Management.Port)
}

func TestSQLiteProviderRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.db")
	first, err := NewSQLiteProvider(path)
	require.NoError(t, err)
	_, err = first.db.Exec(`INSERT INTO schema_migrations (version) VALUES (99)`)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	_, err = NewSQLiteProvider(path)
	assert.ErrorIs(t, err, ErrSchemaAhead)
}
