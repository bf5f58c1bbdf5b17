package handler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// GRPCHealth publishes dependency health through the standard gRPC health
// service. The empty service name reports overall health.
type GRPCHealth struct {
	server *health.Server
	log    *slog.Logger

	mu     sync.Mutex
	checks map[string]CheckFunc
}

func NewGRPCHealth(log *slog.Logger) *GRPCHealth {
	return &GRPCHealth{
		server: health.NewServer(),
		log:    log,
		checks: make(map[string]CheckFunc),
	}
}

func (h *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
	reflection.Register(s)
}

func (h *GRPCHealth) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	h.checks[name] = fn
	h.mu.Unlock()
	h.server.SetServingStatus(name, healthpb.HealthCheckResponse_UNKNOWN)
}

// Run probes every dependency on each tick until ctx is done.
func (h *GRPCHealth) Run(ctx context.Context, interval time.Duration) error {
	h.CheckOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			h.CheckOnce(ctx)
		}
	}
}

func (h *GRPCHealth) CheckOnce(ctx context.Context) {
	h.mu.Lock()
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.Unlock()

	overall := healthpb.HealthCheckResponse_SERVING
	for name, fn := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := fn(checkCtx)
		cancel()

		status := healthpb.HealthCheckResponse_SERVING
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			h.log.Warn("health check failed", slog.String("check", name), slog.Any("err", err))
		}
		h.server.SetServingStatus(name, status)
	}
	h.server.SetServingStatus("", overall)
}

// Shutdown marks every service NOT_SERVING.
func (h *GRPCHealth) Shutdown() {
	h.server.Shutdown()
}

// Server exposes the health server for in-process checks.
func (h *GRPCHealth) Server() healthpb.HealthServer {
	return h.server
}
