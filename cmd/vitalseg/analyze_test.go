package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func writeSamples(t *testing.T, n int) string {
	t.Helper()
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	var b strings.Builder
	b.WriteString("timestamp,glucose\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d,%.1f\n", start.Add(time.Duration(i)*15*time.Minute).Unix(), 6.0+float64(i%3)*0.1)
	}
	// a duplicate row the loader has to collapse
	fmt.Fprintf(&b, "%d,6.0\n", start.Unix())

	path := filepath.Join(t.TempDir(), "cgm.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestAnalyzeFileJSON(t *testing.T) {
	var out bytes.Buffer
	err := analyzeFile(context.Background(), analyzeOptions{
		Input:   writeSamples(t, 40),
		Profile: "glucose",
		Format:  "json",
	}, &out)
	require.NoError(t, err)

	var result segment.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, segment.StatusLowConfidence, result.Status)
	assert.Equal(t, 40, result.Samples)
	assert.Contains(t, out.String(), "\n  ")
}

func TestAnalyzeFileMsgPack(t *testing.T) {
	var out bytes.Buffer
	err := analyzeFile(context.Background(), analyzeOptions{
		Input:   writeSamples(t, 40),
		Profile: "heart-rate",
		Format:  "msgpack",
	}, &out)
	require.NoError(t, err)

	dec := msgpack.NewDecoder(&out)
	dec.SetCustomStructTag("json")
	var result segment.Result
	require.NoError(t, dec.Decode(&result))
	require.Len(t, result.Segments, 1)
}

func TestAnalyzeFileErrors(t *testing.T) {
	input := writeSamples(t, 10)

	tests := []struct {
		name string
		opts analyzeOptions
	}{
		{"unknown format", analyzeOptions{Input: input, Profile: "glucose", Format: "xml"}},
		{"unknown profile", analyzeOptions{Input: input, Profile: "cholesterol"}},
		{"missing input", analyzeOptions{Input: filepath.Join(t.TempDir(), "none.csv"), Profile: "glucose"}},
		{"missing events", analyzeOptions{Input: input, Profile: "glucose", Events: filepath.Join(t.TempDir(), "none.csv")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, analyzeFile(context.Background(), tt.opts, &out))
			assert.Zero(t, out.Len())
		})
	}
}

func TestResolveProfileFromProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  - name: glucose\n    target-low: 4.4\n    target-high: 7.8\n"), 0o644))

	provider, err := loadConfig(path, "yaml")
	require.NoError(t, err)

	p, err := resolveProfile(provider, "glucose")
	require.NoError(t, err)
	assert.Equal(t, 4.4, p.TargetLow)

	_, err = resolveProfile(nil, "cholesterol")
	assert.ErrorIs(t, err, config.ErrProfileNotFound)

	_, err = loadConfig(path, "toml")
	assert.Error(t, err)
}
