// Package management provides an authenticated HTTP API for maintaining analysis
// profiles in a writable configuration backend.
package management

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// sessionCookie carries the auth token for browser sessions
const sessionCookie = "vs_session"

// ProfileWriter is implemented by configuration backends that can store profiles
type ProfileWriter interface {
	AddProfile(profile *config.ProfileData) error
	DeleteProfile(name string) error
}

// TokenSaver is implemented by configuration backends that can persist a generated token
type TokenSaver interface {
	SetManagementToken(token string) error
}

// Controller represents the management API controller
type Controller struct {
	ctx              context.Context
	wg               *sync.WaitGroup
	configProvider   config.ConfigProvider
	managementConfig config.ManagementData
	Server           http.Server
	logger           *zap.SugaredLogger
	handlers         *Handlers
}

// NewController creates a new management API controller
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, mc config.ManagementData, logger *zap.SugaredLogger) (*Controller, error) {
	ctrl := &Controller{
		ctx:              ctx,
		wg:               wg,
		configProvider:   configProvider,
		managementConfig: mc,
		logger:           logger,
	}

	// Set default values
	if ctrl.managementConfig.Port == 0 {
		logger.Info("management API port not specified; defaulting to 8081")
		ctrl.managementConfig.Port = 8081
	}

	if ctrl.managementConfig.ListenAddr == "" {
		logger.Info("management API listen-addr not provided; defaulting to 127.0.0.1 (localhost only)")
		ctrl.managementConfig.ListenAddr = "127.0.0.1"
	}

	// Use the configured token or generate a new one
	if mc.AuthToken == "" {
		ctrl.managementConfig.AuthToken = generateAuthToken()

		persisted := false
		if saver, ok := configProvider.(TokenSaver); ok && !configProvider.IsReadOnly() {
			if err := saver.SetManagementToken(ctrl.managementConfig.AuthToken); err != nil {
				logger.Errorf("Failed to save auth token to database: %v", err)
			} else {
				persisted = true
			}
		}

		logger.Info("═══════════════════════════════════════════════════════════════")
		logger.Info("        NEW MANAGEMENT API ACCESS TOKEN GENERATED             ")
		logger.Info("═══════════════════════════════════════════════════════════════")
		logger.Infof("   Token: %s", ctrl.managementConfig.AuthToken)
		if persisted {
			logger.Info("   *** SAVE THIS TOKEN - IT WILL NOT CHANGE ON RESTART ***")
		} else {
			logger.Info("   This token changes on every restart; set management.auth-token to keep one")
		}
		logger.Info("═══════════════════════════════════════════════════════════════")
	}

	// Create handlers
	ctrl.handlers = NewHandlers(ctrl)

	// Set up router
	ctrl.Server.Addr = fmt.Sprintf("%v:%v", ctrl.managementConfig.ListenAddr, ctrl.managementConfig.Port)
	ctrl.Server.Handler = ctrl.setupRouter()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the management API server
func (c *Controller) StartController() error {
	log.Info("Starting management API controller...")
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		c.logger.Infof("Management API server starting on %s", c.Server.Addr)

		var err error
		if c.managementConfig.Cert != "" && c.managementConfig.Key != "" {
			c.logger.Info("Starting management API server with TLS")
			err = c.Server.ListenAndServeTLS(c.managementConfig.Cert, c.managementConfig.Key)
		} else {
			c.logger.Info("Starting management API server without TLS")
			err = c.Server.ListenAndServe()
		}

		if err != http.ErrServerClosed {
			log.Errorf("Management API server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		log.Info("Shutting down the management API server...")
		c.Server.Shutdown(context.Background())
	}()

	return nil
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(c.loggingMiddleware)
	router.Use(c.corsMiddleware)

	// Authentication routes (no auth required)
	router.HandleFunc("/login", c.handlers.Login).Methods("POST")
	router.HandleFunc("/logout", c.handlers.Logout).Methods("POST")
	router.HandleFunc("/auth/status", c.handlers.GetAuthStatus).Methods("GET")

	// API routes (with authentication)
	api := router.PathPrefix("/api").Subrouter()
	api.Use(c.authMiddleware)

	api.HandleFunc("/config", c.handlers.GetConfig).Methods("GET")

	api.HandleFunc("/profiles", c.handlers.GetProfiles).Methods("GET")
	api.HandleFunc("/profiles/validate", c.handlers.ValidateProfile).Methods("POST")
	api.HandleFunc("/profiles/{name}", c.handlers.GetProfile).Methods("GET")
	api.HandleFunc("/profiles/{name}", c.handlers.PutProfile).Methods("PUT")
	api.HandleFunc("/profiles/{name}", c.handlers.DeleteProfile).Methods("DELETE")

	api.HandleFunc("/logs", c.handlers.GetLogs).Methods("GET")

	return router
}

// loggingMiddleware logs all requests except for noisy endpoints
func (c *Controller) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		// Don't log requests to /api/logs to avoid cluttering the log viewer
		if r.URL.Path != "/api/logs" {
			c.logger.Infof("%s %s %s %v", r.Method, r.RequestURI, r.RemoteAddr, time.Since(start))
		}
	})
}

// corsMiddleware adds CORS headers
func (c *Controller) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authenticated reports whether r carries the bearer token or session cookie
func (c *Controller) authenticated(r *http.Request) bool {
	if r.Header.Get("Authorization") == "Bearer "+c.managementConfig.AuthToken {
		return true
	}
	cookie, err := r.Cookie(sessionCookie)
	return err == nil && cookie.Value == c.managementConfig.AuthToken
}

// authMiddleware validates the bearer token or session cookie
func (c *Controller) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c.authenticated(r) {
			next.ServeHTTP(w, r)
			return
		}
		c.logger.Debugf("Auth failed for %s - no valid token or cookie", r.URL.Path)
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	})
}
