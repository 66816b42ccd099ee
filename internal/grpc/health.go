// Package grpc serves the gRPC health and reflection services for the storefront.
package grpc

import (
	"context"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const (
	AdminStoreService = "storefront.admin-store"
	CartStoreService  = "storefront.cart-store"
)

// Check probes one dependency. A nil error means the dependency is serving.
type Check struct {
	Service string
	Probe   func(ctx context.Context) error
}

type HealthServer struct {
	server   *grpc.Server
	health   *health.Server
	checks   []Check
	interval time.Duration
	timeout  time.Duration
	log      *zap.Logger

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewHealthServer(checks []Check, interval time.Duration, log *zap.Logger) *HealthServer {
	srv := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	h := &HealthServer{
		server:   srv,
		health:   hs,
		checks:   checks,
		interval: interval,
		timeout:  2 * time.Second,
		log:      log,
		stop:     make(chan struct{}),
	}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	for _, c := range checks {
		hs.SetServingStatus(c.Service, healthpb.HealthCheckResponse_NOT_SERVING)
	}
	return h
}

// Refresh runs every check once. The overall status is SERVING only when all checks pass.
func (h *HealthServer) Refresh(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, c := range h.checks {
		status := healthpb.HealthCheckResponse_SERVING
		checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
		err := c.Probe(checkCtx)
		cancel()
		if err != nil {
			status = healthpb.HealthCheckResponse_NOT_SERVING
			overall = healthpb.HealthCheckResponse_NOT_SERVING
			h.log.Warn("health check failed", zap.String("service", c.Service), zap.Error(err))
		}
		h.health.SetServingStatus(c.Service, status)
	}
	h.health.SetServingStatus("", overall)
}

// Serve refreshes statuses every interval and serves gRPC on lis until Shutdown.
func (h *HealthServer) Serve(lis net.Listener) error {
	h.Refresh(context.Background())

	h.wg.Add(1)
	go h.checkLoop()

	return h.server.Serve(lis)
}

func (h *HealthServer) checkLoop() {
	defer h.wg.Done()
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Refresh(context.Background())
		case <-h.stop:
			return
		}
	}
}

// Shutdown reports NOT_SERVING for every service and stops the server gracefully.
func (h *HealthServer) Shutdown() {
	h.stopOnce.Do(func() {
		h.health.Shutdown()
		close(h.stop)
		h.wg.Wait()
		h.server.GracefulStop()
	})
}
