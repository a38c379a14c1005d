package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
profiles:
  - name: glucose-tight
    target-low: 4.4
    target-high: 7.8
series:
  - name: patient-17-cgm
    profile: glucose-tight
    source: csv
    path: /data/p17.csv
controllers:
  - type: rest
`

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "config.yaml")
	sqliteFile := filepath.Join(dir, "nested", "config.db")
	require.NoError(t, os.WriteFile(yamlFile, []byte(testConfig), 0o644))

	require.NoError(t, convert(yamlFile, sqliteFile, false, false))

	provider, err := config.NewSQLiteProvider(sqliteFile)
	require.NoError(t, err)
	defer provider.Close()

	p, err := provider.GetProfile("glucose-tight")
	require.NoError(t, err)
	assert.Equal(t, 7.8, p.TargetHigh)

	seriesData, err := provider.GetSeries()
	require.NoError(t, err)
	require.Len(t, seriesData, 1)
	assert.Equal(t, "csv", seriesData[0].Source)

	// A second conversion needs -force
	assert.Error(t, convert(yamlFile, sqliteFile, false, false))
	require.NoError(t, provider.Close())
	assert.NoError(t, convert(yamlFile, sqliteFile, true, false))
}

func TestConvertDryRun(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "config.yaml")
	sqliteFile := filepath.Join(dir, "config.db")
	require.NoError(t, os.WriteFile(yamlFile, []byte(testConfig), 0o644))

	require.NoError(t, convert(yamlFile, sqliteFile, false, true))
	_, err := os.Stat(sqliteFile)
	assert.True(t, os.IsNotExist(err))
}

func TestConvertRejectsInvalidProfile(t *testing.T) {
	dir := t.TempDir()
	yamlFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(yamlFile, []byte("profiles:\n  - name: bad\n    window-duration: often\n"), 0o644))

	assert.Error(t, convert(yamlFile, filepath.Join(dir, "config.db"), false, false))
	assert.Error(t, convert(filepath.Join(dir, "missing.yaml"), filepath.Join(dir, "x.db"), false, false))
}
