package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
)

// ServicePrefix namespaces the per-class health services
const ServicePrefix = "marketscan.api."

// HealthSource reports the API client's resilience state
type HealthSource interface {
	Health() api.Health
}

// HealthServer exposes breaker states through the standard gRPC health protocol.
//
// Each endpoint class is a service named ServicePrefix+class: SERVING while its circuit is
// closed, NOT_SERVING while open or probing. The overall ("") status follows market-read,
// the class every scan depends on.
type HealthServer struct {
	source   HealthSource
	refresh  time.Duration
	logger   *zap.Logger
	listener net.Listener
	server   *grpc.Server
	health   *health.Server

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthServer listens on address (host:port) and registers the health service
func NewHealthServer(address string, source HealthSource, refresh time.Duration, logger *zap.Logger) (*HealthServer, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", address, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if refresh <= 0 {
		refresh = 5 * time.Second
	}

	s := &HealthServer{
		source:   source,
		refresh:  refresh,
		logger:   logger,
		listener: listener,
		server:   grpc.NewServer(),
		health:   health.NewServer(),
		last:     make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.Refresh()
	return s, nil
}

// Addr returns the bound address (useful with port 0)
func (s *HealthServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Start serves until ctx is cancelled, refreshing statuses every refresh interval
func (s *HealthServer) Start(ctx context.Context) error {
	s.logger.Info("health server listening", zap.String("addr", s.listener.Addr().String()))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	ticker := time.NewTicker(s.refresh)
	defer ticker.Stop()

	for {
		select {
		case err := <-errChan:
			return err
		case <-ticker.C:
			s.Refresh()
		case <-ctx.Done():
			s.health.Shutdown()
			s.server.GracefulStop()
			return nil
		}
	}
}

// Refresh pushes the current breaker states into the health service
func (s *HealthServer) Refresh() {
	h := s.source.Health()

	statuses := make(map[string]healthpb.HealthCheckResponse_ServingStatus, len(h.Circuits)+1)
	for class, snap := range h.Circuits {
		statuses[ServicePrefix+string(class)] = servingStatus(snap.State)
	}
	if snap, ok := h.Circuits[api.ClassMarketRead]; ok {
		statuses[""] = servingStatus(snap.State)
	} else {
		statuses[""] = healthpb.HealthCheckResponse_SERVING
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for service, status := range statuses {
		if prev, seen := s.last[service]; seen && prev == status {
			continue
		}
		s.last[service] = status
		s.health.SetServingStatus(service, status)
		s.logger.Debug("health status changed", zap.String("service", service), zap.String("status", status.String()))
	}
}

func servingStatus(state api.CircuitState) healthpb.HealthCheckResponse_ServingStatus {
	if state == api.CircuitClosed {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
