package grpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/andrescamacho/marketscan-go/internal/adapters/api"
)

// HealthReport is what a daemon's health server says about itself
type HealthReport struct {
	Overall healthpb.HealthCheckResponse_ServingStatus
	Classes map[api.EndpointClass]healthpb.HealthCheckResponse_ServingStatus
}

// Serving reports whether the daemon can currently scan
func (r HealthReport) Serving() bool {
	return r.Overall == healthpb.HealthCheckResponse_SERVING
}

// CheckHealth queries the overall and per-class statuses of the daemon at address.
// Classes the daemon does not know report SERVICE_UNKNOWN.
func CheckHealth(ctx context.Context, address string) (HealthReport, error) {
	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return HealthReport{}, fmt.Errorf("failed to create health client for %s: %w", address, err)
	}
	defer conn.Close()

	client := healthpb.NewHealthClient(conn)
	overall, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	if err != nil {
		return HealthReport{}, fmt.Errorf("health check against %s failed: %w", address, err)
	}

	report := HealthReport{
		Overall: overall.GetStatus(),
		Classes: make(map[api.EndpointClass]healthpb.HealthCheckResponse_ServingStatus),
	}
	for _, class := range api.KnownClasses() {
		resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: ServicePrefix + string(class)})
		switch {
		case status.Code(err) == codes.NotFound:
			report.Classes[class] = healthpb.HealthCheckResponse_SERVICE_UNKNOWN
		case err != nil:
			return HealthReport{}, fmt.Errorf("health check for %s failed: %w", class, err)
		default:
			report.Classes[class] = resp.GetStatus()
		}
	}
	return report, nil
}
