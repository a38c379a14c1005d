// Package healthserver provides a gRPC controller that exposes the standard
// grpc.health.v1.Health service so orchestrators can check the analysis service.
package healthserver

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/chrissnell/vitalseg/internal/log"
	"github.com/chrissnell/vitalseg/pkg/config"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// AnalysisService is the service name reported alongside the overall server status
const AnalysisService = "vitalseg.Analysis"

// DefaultPort is used when the health server configuration names no port
const DefaultPort = 50051

// Controller represents the gRPC health controller
type Controller struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	Server         *grpc.Server
	Health         *health.Server
	listenAddr     string
	logger         *zap.SugaredLogger
	stopOnce       sync.Once
}

// NewController creates a new gRPC health controller instance
func NewController(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, hc config.HealthServerData, logger *zap.SugaredLogger) (*Controller, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctrl := &Controller{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		Health:         health.NewServer(),
		logger:         logger,
	}

	// Create gRPC server with optional TLS
	if hc.Cert != "" && hc.Key != "" {
		creds, err := credentials.NewServerTLSFromFile(hc.Cert, hc.Key)
		if err != nil {
			return nil, fmt.Errorf("could not create TLS server from keypair: %v", err)
		}
		ctrl.Server = grpc.NewServer(grpc.Creds(creds))
	} else {
		ctrl.Server = grpc.NewServer()
	}

	if hc.Port == 0 {
		logger.Infof("healthserver.port not provided; defaulting to %d", DefaultPort)
		hc.Port = DefaultPort
	}
	ctrl.listenAddr = fmt.Sprintf("%v:%v", hc.ListenAddr, hc.Port)

	// Register the health service and reflection
	healthpb.RegisterHealthServer(ctrl.Server, ctrl.Health)
	reflection.Register(ctrl.Server)

	ctrl.updateStatus()

	return ctrl, nil
}

// updateStatus marks the analysis service SERVING when every profile converts
// into a valid engine configuration
func (c *Controller) updateStatus() {
	c.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	status := healthpb.HealthCheckResponse_SERVING
	profiles, err := c.configProvider.GetProfiles()
	if err != nil {
		c.logger.Warnf("health server could not load profiles: %v", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	for _, p := range profiles {
		if _, err := p.SegmentConfig(); err != nil {
			c.logger.Warnf("health server: %v", err)
			status = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	c.Health.SetServingStatus(AnalysisService, status)
}

// StartController starts the gRPC health controller
func (c *Controller) StartController() error {
	log.Info("Starting gRPC health controller...")

	l, err := net.Listen("tcp", c.listenAddr)
	if err != nil {
		return fmt.Errorf("gRPC health controller could not create listener: %v", err)
	}
	log.Infof("gRPC health controller listening on %s", l.Addr())

	c.serve(l)
	return nil
}

// serve runs the server on l until the context is cancelled
func (c *Controller) serve(l net.Listener) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.Server.Serve(l); err != nil {
			log.Errorf("gRPC health controller serve error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.StopController()
	}()
}

// StopController reports NOT_SERVING for every service and stops the server
func (c *Controller) StopController() {
	c.stopOnce.Do(func() {
		log.Info("Stopping gRPC health controller...")
		c.Health.Shutdown()
		c.Server.GracefulStop()
	})
}
