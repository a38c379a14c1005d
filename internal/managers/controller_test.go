package managers

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chrissnell/vitalseg/internal/controllers/healthserver"
	"github.com/chrissnell/vitalseg/internal/controllers/management"
	"github.com/chrissnell/vitalseg/internal/controllers/restserver"
	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func yamlProvider(t *testing.T, body string) config.ConfigProvider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return config.NewYAMLProvider(path)
}

func TestCreateControllers(t *testing.T) {
	provider := yamlProvider(t, `
controllers:
  - type: rest
    rest:
      port: 18080
  - type: healthserver
  - type: management
    management:
      auth-token: s3cret
`)

	cm, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, provider, zap.NewNop().Sugar())
	require.NoError(t, err)

	controllers := cm.(*controllerManager).controllers
	require.Len(t, controllers, 3)

	rest, ok := controllers[0].(*restserver.Controller)
	require.True(t, ok)
	assert.Equal(t, "0.0.0.0:18080", rest.Server.Addr)
	assert.False(t, rest.DBEnabled)

	_, ok = controllers[1].(*healthserver.Controller)
	assert.True(t, ok)

	mgmt, ok := controllers[2].(*management.Controller)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:8081", mgmt.Server.Addr)
}

func TestUnknownControllerType(t *testing.T) {
	provider := yamlProvider(t, `
controllers:
  - type: aprs
`)
	_, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, provider, zap.NewNop().Sugar())
	assert.ErrorContains(t, err, "unknown controller type: aprs")
}

func TestAnalysisCacheNeedsDatabase(t *testing.T) {
	provider := yamlProvider(t, `
controllers:
  - type: analysiscache
    analysiscache:
      interval: 5m
`)
	_, err := NewControllerManager(context.Background(), &sync.WaitGroup{}, provider, zap.NewNop().Sugar())
	assert.ErrorContains(t, err, "TimescaleDB")
}
