// Package health reports whether the gateway is serving. The same state
// backs the HTTP /health endpoint and the standard gRPC health service.
package health

import (
	"net/http"
	"sync/atomic"

	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/Keksclan/swrgate/apierror"
)

// ServiceName is the gRPC health service name reported for the gateway.
const ServiceName = "swrgate.Gateway"

const (
	statusOK           = "ok"
	statusShuttingDown = "shutting_down"
)

// Status tracks the serving state. The zero value is not usable; call New.
type Status struct {
	shuttingDown atomic.Bool
	grpc         *grpchealth.Server
}

// New returns a Status that reports serving.
func New() *Status {
	s := &Status{grpc: grpchealth.NewServer()}
	s.grpc.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.grpc.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// ShuttingDown reports whether BeginShutdown has been called.
func (s *Status) ShuttingDown() bool {
	return s.shuttingDown.Load()
}

// BeginShutdown flips the state to shutting down. It is idempotent.
func (s *Status) BeginShutdown() {
	if s.shuttingDown.CompareAndSwap(false, true) {
		// Marks every service NOT_SERVING and ignores later updates.
		s.grpc.Shutdown()
	}
}

type response struct {
	Status string `json:"status"`
}

// ServeHTTP answers 200 {"status":"ok"} or, once shutdown has begun,
// 503 {"status":"shutting_down"}.
func (s *Status) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	if s.ShuttingDown() {
		apierror.WriteJSON(w, http.StatusServiceUnavailable, response{Status: statusShuttingDown})
		return
	}
	apierror.WriteJSON(w, http.StatusOK, response{Status: statusOK})
}
