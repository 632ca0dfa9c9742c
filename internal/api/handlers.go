package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/pingwatch/internal/models"
)

// StatusSource exposes the engine's per-target state.
type StatusSource interface {
	Snapshot() []models.TargetStatus
	Status(address string) (models.TargetStatus, bool)
}

// TargetsResponse is the body of GET /api/v1/targets.
type TargetsResponse struct {
	Targets []models.TargetStatus `json:"targets"`
}

// ErrorResponse is returned for failed lookups.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewRouter wires the status API, liveness and metrics endpoints.
func NewRouter(source StatusSource, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	h := &handlers{source: source, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Get("/healthz", h.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/api/v1/targets", h.listTargets)
	r.Get("/api/v1/targets/{address}", h.getTarget)
	return r
}

type handlers struct {
	source StatusSource
	logger *slog.Logger
}

func (h *handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handlers) listTargets(w http.ResponseWriter, _ *http.Request) {
	targets := h.source.Snapshot()
	if targets == nil {
		targets = []models.TargetStatus{}
	}
	h.writeJSON(w, http.StatusOK, TargetsResponse{Targets: targets})
}

func (h *handlers) getTarget(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	status, ok := h.source.Status(address)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown target " + address})
		return
	}
	h.writeJSON(w, http.StatusOK, status)
}

func (h *handlers) writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("encode response", slog.Any("error", err))
	}
}
