package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRunStopsWhenContextCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("controllers: []\n"), 0o644))

	a := New(config.NewYAMLProvider(path), zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRunRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("controllers:\n  - type: telemetry\n"), 0o644))

	err := New(config.NewYAMLProvider(path), zap.NewNop().Sugar()).Run(context.Background())
	assert.Error(t, err)
}

func TestRunChecksSeriesProfiles(t *testing.T) {
	tests := []struct {
		name   string
		yaml   string
		target error
		text   string
	}{
		{
			name: "unknown profile",
			yaml: `
series:
  - name: ward-3
    profile: ketones
    source: csv
    path: ward-3.csv
`,
			target: config.ErrProfileNotFound,
		},
		{
			name: "invalid profile",
			yaml: `
profiles:
  - name: overnight
    target-low: 4
    target-high: 8
    window-duration: soon
series:
  - name: ward-3
    profile: overnight
    source: csv
    path: ward-3.csv
`,
			text: "window_duration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))

			err := New(config.NewYAMLProvider(path), zap.NewNop().Sugar()).Run(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), "ward-3")
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.text != "" {
				assert.Contains(t, err.Error(), tt.text)
			}
		})
	}
}
