package syncd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Pinger reports whether the mirror is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthServer provides HTTP health check and metrics endpoints for the daemon.
type HealthServer struct {
	addr     string
	pinger   Pinger
	gatherer prometheus.Gatherer
	status   func() []RootStatus
	server   *http.Server
	listener net.Listener
}

// NewHealthServer creates a health server bound to addr. A nil gatherer
// disables /metrics; a nil status func leaves roots out of /healthz.
func NewHealthServer(addr string, pinger Pinger, gatherer prometheus.Gatherer, status func() []RootStatus) *HealthServer {
	return &HealthServer{
		addr:     addr,
		pinger:   pinger,
		gatherer: gatherer,
		status:   status,
	}
}

// Handler returns the server's routes.
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.healthCheckHandler)
	if h.gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

// Start listens on the configured address and serves in the background.
func (h *HealthServer) Start() error {
	listener, err := net.Listen("tcp", h.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", h.addr, err)
	}
	h.listener = listener

	h.server = &http.Server{
		Handler:      h.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	// Start server in background
	go func() {
		if err := h.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Printf("Health server error: %v\n", err)
		}
	}()

	return nil
}

// Addr returns the bound address once started, which resolves ":0".
func (h *HealthServer) Addr() string {
	if h.listener == nil {
		return h.addr
	}
	return h.listener.Addr().String()
}

// Shutdown gracefully shuts down the health check server.
func (h *HealthServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

// healthCheckHandler handles GET /healthz requests.
// Returns 200 OK if Redis is accessible, 503 Service Unavailable otherwise.
func (h *HealthServer) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Check Redis connectivity with timeout
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status: "healthy",
		Redis:  "connected",
	}
	if h.status != nil {
		response.Roots = h.status()
	}

	code := http.StatusOK
	if err := h.pinger.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		response.Redis = "disconnected"
		response.Error = err.Error()
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

// HealthResponse is the JSON response structure for health checks.
type HealthResponse struct {
	Status string       `json:"status"`
	Redis  string       `json:"redis,omitempty"`
	Error  string       `json:"error,omitempty"`
	Roots  []RootStatus `json:"roots,omitempty"`
}
