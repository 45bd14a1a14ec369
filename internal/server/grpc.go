package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthServiceName is reported alongside the overall ("") status.
const HealthServiceName = "tender.v1.Extractor"

// GRPCHealth serves the standard gRPC health protocol. Its status follows
// the document store ping.
type GRPCHealth struct {
	server   *grpc.Server
	health   *health.Server
	store    Pinger
	interval time.Duration
	logger   *slog.Logger
}

func NewGRPCHealth(store Pinger, interval time.Duration, logger *slog.Logger) *GRPCHealth {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	// Reflection for grpcurl
	reflection.Register(srv)

	return &GRPCHealth{server: srv, health: hs, store: store, interval: interval, logger: logger}
}

// Refresh pings the store once and publishes the result.
func (g *GRPCHealth) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := g.store.Ping(pingCtx); err != nil {
		g.logger.Warn("grpc.health.not_serving", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", status)
	g.health.SetServingStatus(HealthServiceName, status)
	return status
}

// Check answers a health request without going over the network.
func (g *GRPCHealth) Check(ctx context.Context, service string) (healthpb.HealthCheckResponse_ServingStatus, error) {
	resp, err := g.health.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		return healthpb.HealthCheckResponse_UNKNOWN, err
	}
	return resp.GetStatus(), nil
}

// Serve listens on addr until ctx is cancelled, refreshing the status every interval.
func (g *GRPCHealth) Serve(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return g.serve(ctx, lis)
}

func (g *GRPCHealth) serve(ctx context.Context, lis net.Listener) error {
	g.Refresh(ctx)
	go func() {
		t := time.NewTicker(g.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				g.Refresh(ctx)
			}
		}
	}()
	go func() {
		<-ctx.Done()
		g.health.Shutdown()
		g.server.GracefulStop()
	}()

	g.logger.Info("grpc.server.start", "addr", lis.Addr().String())
	if err := g.server.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	g.logger.Info("grpc.server.stop")
	return nil
}
