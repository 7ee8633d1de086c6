package server

import (
	"context"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health service name reported alongside the overall "" status.
const ServiceName = "deeds.Transactions"

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewGRPCServer returns a gRPC server with the health and reflection services
// registered. The health status starts NOT_SERVING until a probe succeeds.
func NewGRPCServer() (*grpc.Server, *health.Server) {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)
	setServing(hs, false)
	return gs, hs
}

// WatchHealth probes p every interval and mirrors the result into hs until ctx
// ends, at which point everything is marked NOT_SERVING.
func WatchHealth(ctx context.Context, hs *health.Server, p Pinger, interval time.Duration, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	serving := false
	probe := func() {
		pctx, cancel := context.WithTimeout(ctx, interval)
		defer cancel()
		ok := p.Ping(pctx) == nil
		if ok != serving {
			logger.Info("grpc.health.changed", zap.Bool("serving", ok))
			serving = ok
		}
		setServing(hs, ok)
	}

	probe()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			probe()
		}
	}
}

func setServing(hs *health.Server, ok bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		status = healthpb.HealthCheckResponse_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}
