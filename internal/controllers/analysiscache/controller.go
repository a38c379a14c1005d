// Package analysiscache provides a controller that periodically re-segments every
// configured series and stores the results in the result database. It runs
// independently of the REST server, which serves the cached results.
package analysiscache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/vitalseg/internal/database"
	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/chrissnell/vitalseg/internal/series"
	"github.com/chrissnell/vitalseg/pkg/config"
	"go.uber.org/zap"
)

// Defaults for an analysiscache controller without explicit settings
const (
	DefaultInterval = 15 * time.Minute
	DefaultLookback = 14 * 24 * time.Hour
)

// SourceFunc builds the sample source of a configured series
type SourceFunc func(sd config.SeriesData) (series.Source, error)

// Controller manages the analysis cache refresh lifecycle
type Controller struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	store          database.ResultStore
	newSource      SourceFunc
	interval       time.Duration
	lookback       time.Duration
	logger         *zap.SugaredLogger
	now            func() time.Time
	stopChan       chan struct{}
	stopOnce       sync.Once
}

// NewController creates a new analysis cache controller. The result database
// is the configured TimescaleDB; series samples come from the configured storage
// or from CSV files.
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, ac config.AnalysisCacheData, logger *zap.SugaredLogger) (*Controller, error) {
	interval, lookback, err := parseSchedule(ac)
	if err != nil {
		return nil, err
	}

	storage, err := configProvider.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load storage configuration: %w", err)
	}
	if storage.TimescaleDB == nil || storage.TimescaleDB.ConnectionString == "" {
		return nil, fmt.Errorf("analysis cache requires a TimescaleDB result database")
	}

	client := database.NewClient(storage.TimescaleDB.ConnectionString, logger)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("analysis cache could not connect to database: %w", err)
	}

	db, driver, err := series.OpenStorage(storage)
	if err != nil {
		return nil, err
	}

	newSource := func(sd config.SeriesData) (series.Source, error) {
		return series.NewSource(sd, db, driver)
	}

	return newController(ctx, wg, configProvider, client, newSource, interval, lookback, logger), nil
}

func newController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, store database.ResultStore, newSource SourceFunc, interval, lookback time.Duration, logger *zap.SugaredLogger) *Controller {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		store:          store,
		newSource:      newSource,
		interval:       interval,
		lookback:       lookback,
		logger:         logger,
		now:            time.Now,
		stopChan:       make(chan struct{}),
	}
}

// parseSchedule applies the defaults to the configured interval and lookback
func parseSchedule(ac config.AnalysisCacheData) (interval, lookback time.Duration, err error) {
	interval, lookback = DefaultInterval, DefaultLookback

	if ac.Interval != "" {
		if interval, err = time.ParseDuration(ac.Interval); err != nil {
			return 0, 0, fmt.Errorf("invalid analysiscache interval %q: %w", ac.Interval, err)
		}
	}
	if ac.Lookback != "" {
		if lookback, err = time.ParseDuration(ac.Lookback); err != nil {
			return 0, 0, fmt.Errorf("invalid analysiscache lookback %q: %w", ac.Lookback, err)
		}
	}
	if interval <= 0 || lookback <= 0 {
		return 0, 0, fmt.Errorf("analysiscache interval and lookback must be positive")
	}
	return interval, lookback, nil
}

// StartController runs the refresh loop in the background
func (c *Controller) StartController() error {
	c.logger.Infof("Starting analysis cache controller (interval %v, lookback %v)...", c.interval, c.lookback)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()
		c.run()
	}()

	return nil
}

// run refreshes immediately and then on every tick until the context is
// cancelled or Stop is called
func (c *Controller) run() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.logger.Info("Running initial analysis cache refresh...")
	c.RefreshAll(c.ctx)

	for {
		select {
		case <-c.ctx.Done():
			c.logger.Info("Analysis cache refresh job stopped (context cancelled)")
			return
		case <-c.stopChan:
			c.logger.Info("Analysis cache refresh job stopped (stop requested)")
			return
		case <-ticker.C:
			c.RefreshAll(c.ctx)
		}
	}
}

// Stop gracefully stops the controller
func (c *Controller) Stop() error {
	c.logger.Info("Stopping analysis cache controller...")
	c.stopOnce.Do(func() { close(c.stopChan) })
	return nil
}

// RefreshAll re-segments every configured series and returns how many results
// were stored. A failing series is logged and skipped.
func (c *Controller) RefreshAll(ctx context.Context) int {
	configured, err := c.configProvider.GetSeries()
	if err != nil {
		c.logger.Errorf("Analysis cache could not load series configuration: %v", err)
		return 0
	}

	stored := 0
	for _, sd := range configured {
		if ctx.Err() != nil {
			break
		}
		if err := c.refreshSeries(ctx, sd); err != nil {
			c.logger.Errorf("Analysis cache refresh failed for series %s: %v", sd.Name, err)
			continue
		}
		stored++
	}

	c.logger.Debugf("Analysis cache refreshed %d of %d series", stored, len(configured))
	return stored
}

// refreshSeries fetches, cleans and segments one series and stores the result
func (c *Controller) refreshSeries(ctx context.Context, sd config.SeriesData) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during analysis: %v", r)
		}
	}()

	profileName := sd.Profile
	if profileName == "" {
		profileName = config.DefaultProfile
	}
	profile, err := c.configProvider.GetProfile(profileName)
	if err != nil {
		return err
	}
	cfg, err := profile.SegmentConfig()
	if err != nil {
		return err
	}

	src, err := c.newSource(sd)
	if err != nil {
		return err
	}

	key := sd.Key
	if key == "" {
		key = sd.Name
	}
	to := c.now()
	samples, err := src.Fetch(ctx, key, to.Add(-c.lookback), to)
	if err != nil {
		return err
	}

	samples, report := series.Clean(samples)
	if report.Dropped() > 0 {
		c.logger.Warnf("series %s: dropped %d non-finite and %d duplicate samples",
			sd.Name, report.NonFinite, report.Duplicates)
	}
	if len(samples) == 0 {
		return fmt.Errorf("no samples in the last %v", c.lookback)
	}

	var events []time.Time
	if sd.EventsPath != "" {
		if events, err = series.ReadEventsFile(sd.EventsPath); err != nil {
			return err
		}
	}

	result, err := segment.Analyze(ctx, samples, events, cfg, c.logger.With("series", sd.Name))
	if err != nil {
		if !errors.Is(err, segment.ErrInsufficientData) {
			return err
		}
		c.logger.Warnf("series %s: %v", sd.Name, err)
	}

	id, err := c.store.SaveResult(ctx, sd.Name, profileName, result)
	if err != nil {
		return err
	}
	c.logger.Infof("series %s: stored run %s with %d segments (%s)", sd.Name, id, len(result.Segments), result.Status)
	return nil
}
