package grpc_control

import (
	"fmt"
	"net"

	"sentiment-observer/src/config"
	"sentiment-observer/src/logger"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// HealthService exposes the standard gRPC health protocol. The empty service name
// reports the process; each symbol is its own service, SERVING while its feed
// worker holds a live subscription.
type HealthService struct {
	Host   string
	Port   int
	Logger *logger.Logger

	health *health.Server
	server *grpc.Server
}

// -----------------------------------------------------------------------------

func NewHealthService(cfg *config.Config, symbols []string, log *logger.Logger) *HealthService {
	h := &HealthService{
		Host:   cfg.GrpcHost,
		Port:   cfg.GrpcPort,
		Logger: log,
		health: health.NewServer(),
		server: grpc.NewServer(),
	}

	// Known symbols start NOT_SERVING until their first subscription.
	for _, symbol := range symbols {
		h.health.SetServingStatus(symbol, healthpb.HealthCheckResponse_NOT_SERVING)
	}

	healthpb.RegisterHealthServer(h.server, h.health)
	reflection.Register(h.server)
	return h
}

// -----------------------------------------------------------------------------

// ReportConnected implements interfaces.IStatusReporter.
func (h *HealthService) ReportConnected(symbol string, connected bool, _ error) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if connected {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(symbol, status)
}

// -----------------------------------------------------------------------------

// Start listens on Host:Port and serves until Stop.
func (h *HealthService) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", h.Host, h.Port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	return h.Serve(lis)
}

// -----------------------------------------------------------------------------

// Serve blocks serving on lis.
func (h *HealthService) Serve(lis net.Listener) error {
	h.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.Logger.Info("gRPC health service listening on %s", lis.Addr())
	return h.server.Serve(lis)
}

// -----------------------------------------------------------------------------

// Stop flips every status to NOT_SERVING and drains in-flight calls.
func (h *HealthService) Stop() error {
	h.health.Shutdown()
	h.server.GracefulStop()
	h.Logger.Info("gRPC health service stopped")
	return nil
}
