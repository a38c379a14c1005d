package analysiscache

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/vitalseg/internal/database"
	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/chrissnell/vitalseg/internal/series"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type stubProvider struct {
	series []config.SeriesData
}

func (s *stubProvider) LoadConfig() (*config.ConfigData, error) {
	return &config.ConfigData{Series: s.series}, nil
}
func (s *stubProvider) GetProfiles() ([]config.ProfileData, error) {
	return config.BuiltinProfiles(), nil
}
func (s *stubProvider) GetProfile(name string) (*config.ProfileData, error) {
	for _, p := range config.BuiltinProfiles() {
		if p.Name == name {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", config.ErrProfileNotFound, name)
}
func (s *stubProvider) GetSeries() ([]config.SeriesData, error) { return s.series, nil }
func (s *stubProvider) GetStorageConfig() (*config.StorageData, error) {
	return &config.StorageData{}, nil
}
func (s *stubProvider) GetControllers() ([]config.ControllerData, error) { return nil, nil }
func (s *stubProvider) IsReadOnly() bool { return true }
func (s *stubProvider) Close() error { return nil }

type memoryStore struct {
	mu      sync.Mutex
	results map[string]*database.StoredResult
}

func newMemoryStore() *memoryStore {
	return &memoryStore{results: make(map[string]*database.StoredResult)}
}

func (m *memoryStore) SaveResult(_ context.Context, name, profile string, r *segment.Result) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.results[name] = &database.StoredResult{RunID: id, Series: name, Profile: profile, Result: r}
	return id, nil
}

func (m *memoryStore) LatestResult(_ context.Context, name string) (*database.StoredResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.results[name]; ok {
		return r, nil
	}
	return nil, database.ErrNoResult
}

func (m *memoryStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.results)
}

type panicSource struct{}

func (panicSource) Fetch(context.Context, string, time.Time, time.Time) ([]segment.Sample, error) {
	panic("driver exploded")
}

// writeCSV writes hours of 15-minute samples ending at now
func writeCSV(t *testing.T, hours int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("time,value\n")
	start := now.Add(-time.Duration(hours) * time.Hour)
	for ts := start; ts.Before(now); ts = ts.Add(15 * time.Minute) {
		fmt.Fprintf(&b, "%s,%.1f\n", ts.Format(time.RFC3339), 6.5)
	}
	path := filepath.Join(t.TempDir(), "samples.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func csvSources(sd config.SeriesData) (series.Source, error) {
	return series.NewSource(sd, nil, "")
}

func newTestController(ctx context.Context, provider config.ConfigProvider, store database.ResultStore, newSource SourceFunc) *Controller {
	c := newController(ctx, &sync.WaitGroup{}, provider, store, newSource, time.Hour, DefaultLookback, nil)
	c.now = func() time.Time { return now }
	return c
}

func TestRefreshAllSkipsFailingSeries(t *testing.T) {
	path := writeCSV(t, 12)
	provider := &stubProvider{series: []config.SeriesData{
		{Name: "good", Profile: "glucose", Source: "csv", Path: path},
		{Name: "missing-file", Profile: "glucose", Source: "csv", Path: filepath.Join(t.TempDir(), "nope.csv")},
		{Name: "unknown-profile", Profile: "cholesterol", Source: "csv", Path: path},
		{Name: "no-storage", Profile: "glucose", Source: "sql"},
	}}
	store := newMemoryStore()
	c := newTestController(context.Background(), provider, store, csvSources)

	assert.Equal(t, 1, c.RefreshAll(context.Background()))

	stored, err := store.LatestResult(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "glucose", stored.Profile)
	assert.Equal(t, segment.StatusLowConfidence, stored.Result.Status)
	assert.Equal(t, 48, stored.Result.Samples)
}

func TestRefreshSeriesDefaultsToGlucose(t *testing.T) {
	store := newMemoryStore()
	c := newTestController(context.Background(), &stubProvider{}, store, csvSources)

	err := c.refreshSeries(context.Background(), config.SeriesData{Name: "a", Source: "csv", Path: writeCSV(t, 6)})
	require.NoError(t, err)

	stored, err := store.LatestResult(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "glucose", stored.Profile)
}

func TestRefreshSeriesOutsideLookback(t *testing.T) {
	c := newTestController(context.Background(), &stubProvider{}, newMemoryStore(), csvSources)
	c.lookback = time.Hour
	c.now = func() time.Time { return now.Add(30 * 24 * time.Hour) }

	err := c.refreshSeries(context.Background(), config.SeriesData{Name: "a", Source: "csv", Path: writeCSV(t, 6)})
	assert.ErrorContains(t, err, "no samples")
}

func TestRefreshSeriesWithEvents(t *testing.T) {
	events := filepath.Join(t.TempDir(), "events.csv")
	require.NoError(t, os.WriteFile(events, []byte("time\n"+now.Add(-3*time.Hour).Format(time.RFC3339)+"\n"), 0o644))

	store := newMemoryStore()
	c := newTestController(context.Background(), &stubProvider{}, store, csvSources)

	sd := config.SeriesData{Name: "a", Source: "csv", Path: writeCSV(t, 6), EventsPath: events}
	require.NoError(t, c.refreshSeries(context.Background(), sd))

	sd.EventsPath = filepath.Join(t.TempDir(), "missing.csv")
	assert.Error(t, c.refreshSeries(context.Background(), sd))
}

func TestRefreshSeriesRecoversPanic(t *testing.T) {
	c := newTestController(context.Background(), &stubProvider{}, newMemoryStore(),
		func(config.SeriesData) (series.Source, error) { return panicSource{}, nil })

	err := c.refreshSeries(context.Background(), config.SeriesData{Name: "a"})
	assert.ErrorContains(t, err, "driver exploded")
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		name         string
		in           config.AnalysisCacheData
		wantInterval time.Duration
		wantLookback time.Duration
		wantErr      bool
	}{
		{"defaults", config.AnalysisCacheData{}, DefaultInterval, DefaultLookback, false},
		{"explicit", config.AnalysisCacheData{Interval: "5m", Lookback: "72h"}, 5 * time.Minute, 72 * time.Hour, false},
		{"bad interval", config.AnalysisCacheData{Interval: "often"}, 0, 0, true},
		{"bad lookback", config.AnalysisCacheData{Lookback: "2 weeks"}, 0, 0, true},
		{"negative", config.AnalysisCacheData{Interval: "-1m"}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			interval, lookback, err := parseSchedule(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantInterval, interval)
			assert.Equal(t, tt.wantLookback, lookback)
		})
	}
}

func TestStartControllerRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	provider := &stubProvider{series: []config.SeriesData{
		{Name: "a", Profile: "glucose", Source: "csv", Path: writeCSV(t, 6)},
	}}
	store := newMemoryStore()
	c := newTestController(ctx, provider, store, csvSources)

	require.NoError(t, c.StartController())
	require.Eventually(t, func() bool { return store.count() == 1 }, 5*time.Second, 10*time.Millisecond)

	cancel()
	waitOrFail(t, c.wg)
}

func TestStopEndsLoop(t *testing.T) {
	c := newTestController(context.Background(), &stubProvider{}, newMemoryStore(), csvSources)

	require.NoError(t, c.StartController())
	require.NoError(t, c.Stop())
	require.NoError(t, c.Stop())
	waitOrFail(t, c.wg)
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not stop")
	}
}
