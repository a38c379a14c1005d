package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/internal/managers"
	"github.com/chrissnell/vitalseg/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.checkSeries(); err != nil {
		return err
	}

	// Initialize the controller manager
	cm, err := managers.NewControllerManager(ctx, &wg, a.configProvider, a.logger)
	if err != nil {
		return err
	}
	err = cm.StartControllers()
	if err != nil {
		return err
	}

	log.Info("Application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}

// checkSeries makes sure every configured series names a usable profile before any
// controller starts analyzing it
func (a *App) checkSeries() error {
	series, err := a.configProvider.GetSeries()
	if err != nil {
		return fmt.Errorf("error loading series configuration: %w", err)
	}

	for _, sd := range series {
		name := sd.Profile
		if name == "" {
			name = config.DefaultProfile
		}
		profile, err := a.configProvider.GetProfile(name)
		if err != nil {
			return fmt.Errorf("series %s: %w", sd.Name, err)
		}
		if _, err := profile.SegmentConfig(); err != nil {
			return fmt.Errorf("series %s: %w", sd.Name, err)
		}
	}

	if len(series) > 0 {
		a.logger.Infof("%d series configured for analysis", len(series))
	}
	return nil
}
