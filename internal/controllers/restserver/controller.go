package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/vitalseg/internal/database"
	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Controller represents the REST server controller
type Controller struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	restConfig     config.RESTServerData
	Server         http.Server
	Store          database.ResultStore
	DBEnabled      bool
	logger         *zap.SugaredLogger
	handlers       *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, rc config.RESTServerData, logger *zap.SugaredLogger) (*Controller, error) {
	ctrl := &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		restConfig:     rc,
		logger:         logger,
	}

	// Make sure every configured profile converts before we accept requests
	profiles, err := configProvider.GetProfiles()
	if err != nil {
		return nil, fmt.Errorf("error loading profiles: %v", err)
	}
	for _, p := range profiles {
		if _, err := p.SegmentConfig(); err != nil {
			return nil, err
		}
	}

	// If a DefaultListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("rest.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	// Set default HTTP port if not specified
	if rc.Port == 0 {
		logger.Info("rest.port not provided; defaulting to 8080")
		rc.Port = 8080
	}
	ctrl.restConfig = rc

	// If a TimescaleDB database was configured, set up a result cache client so
	// that the handlers can serve cached segmentations
	storage, err := configProvider.GetStorageConfig()
	if err != nil {
		return nil, fmt.Errorf("error loading storage configuration: %v", err)
	}
	if storage.TimescaleDB != nil && storage.TimescaleDB.ConnectionString != "" {
		client := database.NewClient(storage.TimescaleDB.ConnectionString, logger)
		if err := client.Connect(); err != nil {
			return nil, fmt.Errorf("REST server could not connect to database: %v", err)
		}
		ctrl.Store = client
		ctrl.DBEnabled = true
	}

	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	log.Info("Starting REST server controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		if c.restConfig.Cert != "" && c.restConfig.Key != "" {
			if err := c.Server.ListenAndServeTLS(c.restConfig.Cert, c.restConfig.Key); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		} else {
			if err := c.Server.ListenAndServe(); err != http.ErrServerClosed {
				log.Errorf("REST server error: %v", err)
			}
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the REST server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.Server.Shutdown(shutdownCtx)
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(requestLogMiddleware)

	router.HandleFunc("/analyze", c.handlers.Analyze).Methods(http.MethodPost)
	router.HandleFunc("/profiles", c.handlers.GetProfiles).Methods(http.MethodGet)
	router.HandleFunc("/profiles/{name}", c.handlers.GetProfile).Methods(http.MethodGet)
	router.HandleFunc("/series/{name}/segments", c.handlers.GetSeriesSegments).Methods(http.MethodGet)
	router.HandleFunc("/healthz", c.handlers.Healthz).Methods(http.MethodGet)
	router.HandleFunc("/debug/requests", c.handlers.GetRequestLog).Methods(http.MethodGet)

	return router
}
