package statusd

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/store"
)

// ServiceName is the health service name reported for the tuning run
const ServiceName = "thptune.Run"

// HealthServer mirrors the live run status into the standard gRPC health service
type HealthServer struct {
	*health.Server
}

// NewHealthServer creates a health server that reports SERVING until the run
// ends and NOT_SERVING afterwards
func NewHealthServer(status *store.LiveStatus) *HealthServer {
	h := &HealthServer{Server: health.NewServer()}
	h.update(status.Snapshot().Status)
	status.OnStatusChange(h.update)
	return h
}

// Register attaches the health service to a gRPC server
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.Server)
}

func (h *HealthServer) update(status store.RunStatus) {
	serving := healthpb.HealthCheckResponse_SERVING
	if status.Terminal() {
		serving = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.SetServingStatus("", serving)
	h.SetServingStatus(ServiceName, serving)
}
