package statusd

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/store"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
)

const defaultTrialLimit = 50

// HTTPServer serves the live run status and the metrics registry
type HTTPServer struct {
	mux    *http.ServeMux
	status *store.LiveStatus
}

// NewHTTPServer creates the status handler. A nil registry disables /metrics.
func NewHTTPServer(status *store.LiveStatus, registry *prometheus.Registry) *HTTPServer {
	s := &HTTPServer{
		mux:    http.NewServeMux(),
		status: status,
	}

	s.mux.HandleFunc("/healthz", s.handleHealthz)
	s.mux.HandleFunc("/v1/run", s.handleRun)
	s.mux.HandleFunc("/v1/run/front", s.handleFront)
	s.mux.HandleFunc("/v1/run/trials", s.handleTrials)
	if registry != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	return s
}

func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.status.Snapshot()
	code := http.StatusOK
	state := "ok"
	if snap.Status == store.RunStatusFailed {
		code = http.StatusServiceUnavailable
		state = "failed"
	}
	s.writeJSON(w, code, map[string]any{
		"status":     state,
		"run_status": snap.Status,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	})
}

// handleRun returns the run snapshot
func (s *HTTPServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"run": s.status.Snapshot()})
}

// handleFront returns the current Pareto front in benchmark units
func (s *HTTPServer) handleFront(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	front := s.status.Front()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"front": front,
		"size":  len(front),
	})
}

// handleTrials returns the most recent trials; ?limit=N bounds the count
func (s *HTTPServer) handleTrials(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := defaultTrialLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	trials := s.status.Trials(limit)
	s.writeJSON(w, http.StatusOK, map[string]any{
		"trials": trials,
		"count":  len(trials),
	})
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode JSON response", "error", err)
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]any{
		"error": message,
	})
}
