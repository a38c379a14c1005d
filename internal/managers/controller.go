package managers

import (
	"context"
	"fmt"
	"sync"

	"github.com/chrissnell/vitalseg/internal/controllers/analysiscache"
	"github.com/chrissnell/vitalseg/internal/controllers/healthserver"
	"github.com/chrissnell/vitalseg/internal/controllers/management"
	"github.com/chrissnell/vitalseg/internal/controllers/restserver"
	"github.com/chrissnell/vitalseg/pkg/config"
	"go.uber.org/zap"
)

// ControllerManager interface for the controller manager
type ControllerManager interface {
	StartControllers() error
}

// Controller is an interface that provides standard methods for various controller backends
type Controller interface {
	StartController() error
}

// NewControllerManager creates a new controller manager
func NewControllerManager(ctx context.Context, wg *sync.WaitGroup, configProvider config.ConfigProvider, logger *zap.SugaredLogger) (ControllerManager, error) {
	cm := &controllerManager{
		ctx:            ctx,
		wg:             wg,
		configProvider: configProvider,
		logger:         logger,
		controllers:    make([]Controller, 0),
	}

	controllerConfigs, err := configProvider.GetControllers()
	if err != nil {
		return nil, fmt.Errorf("error loading controller configuration: %v", err)
	}

	// Create controllers based on configuration
	for _, con := range controllerConfigs {
		controller, err := cm.createController(con)
		if err != nil {
			return nil, fmt.Errorf("error creating %s controller: %v", con.Type, err)
		}
		cm.controllers = append(cm.controllers, controller)
	}

	return cm, nil
}

type controllerManager struct {
	ctx            context.Context
	wg             *sync.WaitGroup
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
	controllers    []Controller
}

func (c *controllerManager) StartControllers() error {
	c.logger.Info("Starting controller manager...")

	for _, controller := range c.controllers {
		err := controller.StartController()
		if err != nil {
			return fmt.Errorf("error starting controller: %v", err)
		}
	}

	c.logger.Infof("Started %d controllers successfully", len(c.controllers))
	return nil
}

// createController creates a controller based on the controller configuration
func (cm *controllerManager) createController(cc config.ControllerData) (Controller, error) {
	switch cc.Type {
	case "restserver", "rest":
		var rc config.RESTServerData
		if cc.RESTServer != nil {
			rc = *cc.RESTServer
		}
		return restserver.NewController(cm.ctx, cm.wg, cm.configProvider, rc, cm.logger)
	case "analysiscache":
		var ac config.AnalysisCacheData
		if cc.AnalysisCache != nil {
			ac = *cc.AnalysisCache
		}
		return analysiscache.NewController(cm.ctx, cm.wg, cm.configProvider, ac, cm.logger)
	case "healthserver", "health":
		var hc config.HealthServerData
		if cc.HealthServer != nil {
			hc = *cc.HealthServer
		}
		return healthserver.NewController(cm.ctx, cm.wg, cm.configProvider, hc, cm.logger)
	case "management":
		var mc config.ManagementData
		if cc.Management != nil {
			mc = *cc.Management
		}
		return management.NewController(cm.ctx, cm.wg, cm.configProvider, mc, cm.logger)
	default:
		return nil, fmt.Errorf("unknown controller type: %s", cc.Type)
	}
}
