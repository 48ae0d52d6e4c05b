package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// HealthChecker serves readiness over gRPC health and HTTP /healthz.
// The process is ready while it is not shutting down and every registered
// dependency check passes.
type HealthChecker struct {
	grpcHealth *health.Server
	httpServer *http.Server
	logger     *zap.Logger
	timeout    time.Duration

	mu     sync.RWMutex
	ready  bool
	checks map[string]CheckFunc
}

// NewHealthChecker creates a health checker with no dependency checks
func NewHealthChecker(logger *zap.Logger) *HealthChecker {
	return &HealthChecker{
		grpcHealth: health.NewServer(),
		logger:     logger,
		timeout:    2 * time.Second,
		ready:      true,
		checks:     make(map[string]CheckFunc),
	}
}

// AddCheck registers a dependency probe, e.g. "storage" or "kafka"
func (h *HealthChecker) AddCheck(name string, fn CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = fn
}

// RegisterGRPC registers the health service with the gRPC server
func (h *HealthChecker) RegisterGRPC(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.grpcHealth)
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// Check runs every probe and returns the failures by name
func (h *HealthChecker) Check(ctx context.Context) (bool, map[string]string) {
	h.mu.RLock()
	ready := h.ready
	checks := make(map[string]CheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	failures := make(map[string]string)
	for name, fn := range checks {
		if err := fn(ctx); err != nil {
			failures[name] = err.Error()
		}
	}
	return ready && len(failures) == 0, failures
}

// Watch re-runs the probes every interval and mirrors the result into the
// gRPC health status until ctx is done
func (h *HealthChecker) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ok, failures := h.Check(ctx)
			if ok == serving {
				continue
			}
			serving = ok
			if ok {
				h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
				h.logger.Info("dependencies healthy")
			} else {
				h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
				h.logger.Warn("dependency check failed", zap.Any("failures", failures))
			}
		}
	}
}

// Handler returns the /healthz handler
func (h *HealthChecker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	return mux
}

// StartHTTPServer serves /healthz on addr until Shutdown
func (h *HealthChecker) StartHTTPServer(addr string) error {
	h.httpServer = &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	h.logger.Info("starting HTTP health server", zap.String("addr", addr))
	return h.httpServer.ListenAndServe()
}

// Shutdown marks the process not ready and stops the HTTP server
func (h *HealthChecker) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.ready = false
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	h.mu.Unlock()

	if h.httpServer != nil {
		return h.httpServer.Shutdown(ctx)
	}
	return nil
}

type healthResponse struct {
	Status   string            `json:"status"`
	Checks   []string          `json:"checks"`
	Failures map[string]string `json:"failures,omitempty"`
}

func (h *HealthChecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ok, failures := h.Check(r.Context())

	h.mu.RLock()
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	resp := healthResponse{Status: "OK", Checks: names}
	code := http.StatusOK
	if !ok {
		resp.Status = "NOT_READY"
		resp.Failures = failures
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// UnaryLoggingInterceptor logs every unary gRPC call with its status code
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC call",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.String("status_code", status.Code(err).String()),
		)
		return resp, err
	}
}
