package main

import (
	"bytes"
	"testing"

	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/stretchr/testify/assert"
)

func TestCompareConfigs(t *testing.T) {
	base := &config.ConfigData{
		Profiles:    []config.ProfileData{{Name: "glucose-tight", TargetLow: 4.4, TargetHigh: 7.8}},
		Controllers: []config.ControllerData{{Type: "rest"}},
	}

	t.Run("equal", func(t *testing.T) {
		other := *base
		other.Series = []config.SeriesData{}

		var out bytes.Buffer
		assert.True(t, compareConfigs(&out, base, &other))
		assert.Contains(t, out.String(), "✓ Profiles match")
	})

	t.Run("profile differs", func(t *testing.T) {
		other := *base
		other.Profiles = []config.ProfileData{{Name: "glucose-tight", TargetLow: 4.4, TargetHigh: 8.0}}

		var out bytes.Buffer
		assert.False(t, compareConfigs(&out, base, &other))
		assert.Contains(t, out.String(), "✗ Profiles differ")
		assert.Contains(t, out.String(), "TargetHigh")
	})

	t.Run("invalid stored profile", func(t *testing.T) {
		bad := &config.ConfigData{Profiles: []config.ProfileData{{Name: "bad", MinSegmentDuration: "later"}}}

		var out bytes.Buffer
		assert.False(t, compareConfigs(&out, bad, bad))
		assert.Contains(t, out.String(), "profile bad")
	})
}
