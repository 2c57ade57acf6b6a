package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

type mockService struct {
	started atomic.Bool
	stopped atomic.Bool
	startFn func() error
	order   *[]string
	name    string
	mu      *sync.Mutex
}

func (m *mockService) Start() error {
	m.started.Store(true)
	if m.startFn != nil {
		return m.startFn()
	}
	for !m.stopped.Load() {
		time.Sleep(10 * time.Millisecond)
	}
	return nil
}

func (m *mockService) Stop(context.Context) {
	if m.order != nil {
		m.mu.Lock()
		*m.order = append(*m.order, m.name)
		m.mu.Unlock()
	}
	m.stopped.Store(true)
}

func waitStarted(t *testing.T, svcs ...*mockService) {
	t.Helper()
	require.Eventually(t, func() bool {
		for _, s := range svcs {
			if !s.started.Load() {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLifecycle_StopsInReverseOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	svc1 := &mockService{name: "store", order: &order, mu: &mu}
	svc2 := &mockService{name: "grpc", order: &order, mu: &mu}

	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	lc.Add("store", svc1)
	lc.Add("grpc", svc2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()
	waitStarted(t, svc1, svc2)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}
	assert.Equal(t, []string{"grpc", "store"}, order)
}

func TestLifecycle_ReturnsFirstServiceError(t *testing.T) {
	boom := errors.New("address in use")
	failing := &mockService{startFn: func() error { return boom }}
	steady := &mockService{}

	lc := NewLifecycle(zaptest.NewLogger(t), 0)
	lc.Add("steady", steady)
	lc.Add("grpc", failing)

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "service grpc")
	assert.True(t, steady.stopped.Load())
}

func TestGRPCService_ServesHealthThenDrains(t *testing.T) {
	lis := bufconn.Listen(1 << 16)
	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("dndai.v1.ActionService", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	svc := GRPCService(srv, lis, hs)
	served := make(chan error, 1)
	go func() { served <- svc.Start() }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: "dndai.v1.ActionService"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	svc.Stop(ctx)

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("grpc service did not stop")
	}
}

func TestFuncService(t *testing.T) {
	started, stopped := false, false
	svc := &FuncService{
		StartFn: func() error { started = true; return nil },
		StopFn:  func(context.Context) { stopped = true },
	}

	assert.NoError(t, svc.Start())
	svc.Stop(context.Background())
	assert.True(t, started)
	assert.True(t, stopped)
}
