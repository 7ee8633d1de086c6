package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/deeds-tracker/internal/common"
)

type flakyPinger struct{ down atomic.Bool }

func (p *flakyPinger) Ping(context.Context) error {
	if p.down.Load() {
		return errors.New("connection refused")
	}
	return nil
}

func healthStatus(t *testing.T, check func(context.Context, *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error)) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	return resp.GetStatus()
}

func TestWatchHealth_FollowsPinger(t *testing.T) {
	gs, hs := NewGRPCServer()
	defer gs.Stop()
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, healthStatus(t, hs.Check))

	p := &flakyPinger{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		WatchHealth(ctx, hs, p, 5*time.Millisecond, nil)
	}()

	require.Eventually(t, func() bool {
		return healthStatus(t, hs.Check) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 5*time.Millisecond)

	p.down.Store(true)
	require.Eventually(t, func() bool {
		return healthStatus(t, hs.Check) == healthpb.HealthCheckResponse_NOT_SERVING
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestConnectDB_SQLiteAutoMigrate(t *testing.T) {
	ctx := context.Background()
	drv, pool, err := ConnectDB(ctx, common.DatabaseConfig{
		Driver:      "sqlite",
		DSN:         "connect-" + uuid.NewString(),
		DialTimeout: time.Second,
		AutoMigrate: true,
	}, nil)
	require.NoError(t, err)
	assert.Nil(t, pool)
	defer CloseDB(drv, pool, nil)

	require.NoError(t, PingDB(ctx, drv, nil, time.Second))
	_, err = drv.DB().ExecContext(ctx, "SELECT COUNT(*) FROM transactions")
	require.NoError(t, err)
}

func TestConnectDB_UnknownDriver(t *testing.T) {
	_, _, err := ConnectDB(context.Background(), common.DatabaseConfig{Driver: "mysql", DSN: "x"}, nil)
	require.Error(t, err)
}
