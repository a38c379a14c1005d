package config

import (
	"errors"
	"testing"
	"time"

	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinProfilesAreValid(t *testing.T) {
	for _, p := range BuiltinProfiles() {
		t.Run(p.Name, func(t *testing.T) {
			cfg, err := p.SegmentConfig()
			require.NoError(t, err)
			assert.Equal(t, p.TargetLow, cfg.TargetRange.Low)
			assert.Equal(t, p.TargetHigh, cfg.TargetRange.High)
		})
	}
}

func TestSegmentConfigOverridesOnlySetFields(t *testing.T) {
	defaults := segment.DefaultConfig()

	p := ProfileData{
		Name:               "custom",
		TargetLow:          4.0,
		TargetHigh:         8.0,
		WindowDuration:     "3h",
		MinSegmentDuration: "36h",
		TargetMaxSegments:  5,
		ImportanceSeverity: 0.6,
		Parallel:           true,
	}
	cfg, err := p.SegmentConfig()
	require.NoError(t, err)

	assert.Equal(t, segment.Range{Low: 4.0, High: 8.0}, cfg.TargetRange)
	assert.Equal(t, 3*time.Hour, cfg.WindowDuration)
	assert.Equal(t, 36*time.Hour, cfg.MinSegmentDuration)
	assert.Equal(t, 5, cfg.TargetMax)
	assert.Equal(t, 0.6, cfg.Importance.Severity)
	assert.True(t, cfg.Parallel)

	assert.Equal(t, defaults.TargetMin, cfg.TargetMin)
	assert.Equal(t, defaults.Thresholds, cfg.Thresholds)
	assert.Equal(t, defaults.Statistical, cfg.Statistical)
	assert.Equal(t, defaults.Importance.Duration, cfg.Importance.Duration)
}

func TestSegmentConfigErrors(t *testing.T) {
	_, err := ProfileData{Name: "bad-duration", WindowDuration: "six hours"}.SegmentConfig()
	assert.Error(t, err)

	_, err = ProfileData{Name: "inverted", TargetLow: 10, TargetHigh: 4}.SegmentConfig()
	var cfgErr *segment.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "TargetRange", cfgErr.Field)

	_, err = ProfileData{Name: "too-many", TargetMaxSegments: 12}.SegmentConfig()
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "MaxSegments", cfgErr.Field)
}

func TestMergeProfiles(t *testing.T) {
	merged := mergeProfiles([]ProfileData{
		{Name: "glucose", TargetLow: 3.9, TargetHigh: 7.8, Description: "tight"},
		{Name: "spo2", TargetLow: 94, TargetHigh: 100},
	})

	require.Len(t, merged, len(BuiltinProfiles())+1)

	glucose, err := findProfile(merged, "glucose")
	require.NoError(t, err)
	assert.Equal(t, 7.8, glucose.TargetHigh)
	assert.Equal(t, "tight", glucose.Description)

	_, err = findProfile(merged, "spo2")
	assert.NoError(t, err)

	_, err = findProfile(merged, "lactate")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
