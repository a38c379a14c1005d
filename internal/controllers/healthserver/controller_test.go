package healthserver

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/vitalseg/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type stubProvider struct {
	profiles []config.ProfileData
}

func (s *stubProvider) LoadConfig() (*config.ConfigData, error) { return &config.ConfigData{}, nil }
func (s *stubProvider) GetProfiles() ([]config.ProfileData, error) {
	return append(config.BuiltinProfiles(), s.profiles...), nil
}
func (s *stubProvider) GetProfile(string) (*config.ProfileData, error) {
	return nil, config.ErrProfileNotFound
}
func (s *stubProvider) GetSeries() ([]config.SeriesData, error) { return nil, nil }
func (s *stubProvider) GetStorageConfig() (*config.StorageData, error) {
	return &config.StorageData{}, nil
}
func (s *stubProvider) GetControllers() ([]config.ControllerData, error) { return nil, nil }
func (s *stubProvider) IsReadOnly() bool { return true }
func (s *stubProvider) Close() error { return nil }

// startBufconn serves c over an in-memory listener and returns a health client
func startBufconn(t *testing.T, c *Controller) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	c.serve(lis)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthServing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wg := &sync.WaitGroup{}

	c, err := NewController(ctx, wg, &stubProvider{}, config.HealthServerData{}, nil)
	require.NoError(t, err)
	assert.Equal(t, ":50051", c.listenAddr)

	client := startBufconn(t, c)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, AnalysisService))

	cancel()
	wg.Wait()
}

func TestHealthInvalidProfile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := config.ProfileData{Name: "broken", WindowDuration: "soon"}
	c, err := NewController(ctx, &sync.WaitGroup{}, &stubProvider{profiles: []config.ProfileData{bad}},
		config.HealthServerData{ListenAddr: "127.0.0.1", Port: 6000}, nil)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:6000", c.listenAddr)

	client := startBufconn(t, c)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, client, AnalysisService))
}

func TestHealthShutdownReportsNotServing(t *testing.T) {
	c, err := NewController(context.Background(), &sync.WaitGroup{}, &stubProvider{}, config.HealthServerData{}, nil)
	require.NoError(t, err)

	c.Health.Shutdown()
	resp, err := c.Health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: AnalysisService})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)
}

func TestStopControllerTwice(t *testing.T) {
	wg := &sync.WaitGroup{}
	c, err := NewController(context.Background(), wg, &stubProvider{}, config.HealthServerData{}, nil)
	require.NoError(t, err)

	startBufconn(t, c)
	c.StopController()
	c.StopController()
	wg.Wait()
}
