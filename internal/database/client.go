// Package database stores segmentation results in TimescaleDB through gorm.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/internal/segment"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNoResult is returned when no result has been stored for a series
var ErrNoResult = errors.New("no stored result")

// ResultStore is the part of Client the controllers depend on
type ResultStore interface {
	SaveResult(ctx context.Context, series, profile string, r *segment.Result) (uuid.UUID, error)
	LatestResult(ctx context.Context, series string) (*StoredResult, error)
}

// Client holds the connection to a TimescaleDB database
type Client struct {
	connectionString string
	DB               *gorm.DB // Exported so it can be accessed from other packages
	logger           *zap.SugaredLogger
	now              func() time.Time
}

// NewClient creates a new database client
func NewClient(connectionString string, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		connectionString: connectionString,
		logger:           logger,
		now:              time.Now,
	}
}

// Connect connects to the TimescaleDB database and creates the result tables
func (c *Client) Connect() error {
	db, err := CreateConnection(c.connectionString)
	if err != nil {
		return err
	}
	c.DB = db
	return c.Migrate()
}

// Migrate creates or updates the result cache tables
func (c *Client) Migrate() error {
	if err := c.DB.AutoMigrate(&AnalysisRun{}, &SegmentRecord{}, &TransitionRecord{}); err != nil {
		return fmt.Errorf("error migrating result cache tables: %w", err)
	}
	return nil
}

// SaveResult stores r as the newest result of series and returns the run ID
func (c *Client) SaveResult(ctx context.Context, series, profile string, r *segment.Result) (uuid.UUID, error) {
	if r == nil {
		return uuid.Nil, fmt.Errorf("nil result for series %s", series)
	}

	id := uuid.New()
	run, err := newAnalysisRun(id, series, profile, r, c.now().UTC())
	if err != nil {
		return uuid.Nil, err
	}

	// Create inserts the run and its segment and transition rows in one transaction
	if err := c.DB.WithContext(ctx).Create(run).Error; err != nil {
		return uuid.Nil, fmt.Errorf("error saving result for series %s: %w", series, err)
	}

	c.logger.Debugf("stored analysis run %s for series %s (%d segments)", id, series, len(r.Segments))
	return id, nil
}

// LatestResult returns the most recently stored result of series
func (c *Client) LatestResult(ctx context.Context, series string) (*StoredResult, error) {
	var run AnalysisRun
	err := c.DB.WithContext(ctx).
		Where("series_name = ?", series).
		Order("created_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w for series %s", ErrNoResult, series)
	}
	if err != nil {
		return nil, fmt.Errorf("error querying database for latest result: %w", err)
	}
	return storedResult(&run)
}

// CreateConnection is a helper function to create a database connection with standard GORM configuration
func CreateConnection(connectionString string) (*gorm.DB, error) {
	// Create a logger for gorm
	dbLogger := logger.New(
		zap.NewStdLog(log.GetZapLogger()),
		logger.Config{
			SlowThreshold:             time.Second, // Slow SQL threshold
			LogLevel:                  logger.Warn, // Log level
			IgnoreRecordNotFoundError: true,        // LatestResult reports a missing result itself
			Colorful:                  false,
		},
	)

	log.Info("connecting to TimescaleDB...")
	db, err := gorm.Open(postgres.Open(connectionString), &gorm.Config{Logger: dbLogger})
	if err != nil {
		log.Warn("warning: unable to create a TimescaleDB connection:", err)
		return nil, err
	}
	log.Info("TimescaleDB connection successful")

	return db, nil
}
