// Package api exposes extraction and monitors over JSON HTTP.
//
// Routes:
//
//	POST /extract          → run one search through the tier chain
//	POST /monitors         → create a monitor
//	GET  /monitors         → list monitors
//	GET  /monitors/{id}    → monitor status
//	POST /monitors/sweep   → poll every due monitor now
//	GET  /metrics          → prometheus metrics
//	GET  /healthz          → liveness
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"realty_watch/logging"
	"realty_watch/models"
	"realty_watch/scheduler"
	"realty_watch/services"
)

const maxBodyBytes = 1 << 20

// Monitors is the monitor CRUD surface the handler serves.
type Monitors interface {
	Create(ctx context.Context, input models.MonitorConfig) (*models.MonitorConfig, error)
	GetStatus(ctx context.Context, id string) (*services.MonitorStatus, error)
	List(ctx context.Context) ([]models.MonitorConfig, error)
}

// SweepTrigger runs a sweep on request.
type SweepTrigger interface {
	TriggerNow(ctx context.Context) (services.SweepStats, error)
}

type Handler struct {
	extractor services.Extractor
	monitors  Monitors
	sweeps    SweepTrigger
	charge    services.ChargeSink
	gatherer  prometheus.Gatherer
}

// NewHandler wires the handler. gatherer may be nil to leave /metrics unmounted.
func NewHandler(extractor services.Extractor, monitors Monitors, sweeps SweepTrigger, charge services.ChargeSink, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		extractor: extractor,
		monitors:  monitors,
		sweeps:    sweeps,
		charge:    charge,
		gatherer:  gatherer,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /extract", h.handleExtract)
	mux.HandleFunc("POST /monitors", h.handleCreateMonitor)
	mux.HandleFunc("GET /monitors", h.handleListMonitors)
	mux.HandleFunc("POST /monitors/sweep", h.handleSweep)
	mux.HandleFunc("GET /monitors/{id}", h.handleMonitorStatus)
	mux.HandleFunc("GET /healthz", handleHealth)
	if h.gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	}
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	var c models.SearchCriteria
	if !decodeBody(w, r, &c) {
		return
	}

	result, err := h.extractor.Extract(r.Context(), c)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !result.Failed() {
		services.Charge(r.Context(), h.charge, services.EventExtractionCompleted)
	}
	jsonOK(w, result)
}

func (h *Handler) handleCreateMonitor(w http.ResponseWriter, r *http.Request) {
	var input models.MonitorConfig
	if !decodeBody(w, r, &input) {
		return
	}

	m, err := h.monitors.Create(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonStatus(w, http.StatusCreated, m)
}

func (h *Handler) handleListMonitors(w http.ResponseWriter, r *http.Request) {
	all, err := h.monitors.List(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, all)
}

func (h *Handler) handleMonitorStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.monitors.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, status)
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	stats, err := h.sweeps.TriggerNow(r.Context())
	if errors.Is(err, scheduler.ErrSweepRunning) {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	jsonOK(w, stats)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, map[string]string{"status": "ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonError(w, verr.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrMonitorNotFound):
		jsonError(w, err.Error(), http.StatusNotFound)
	default:
		logging.Errorf("Request failed: %v", err)
		jsonError(w, "internal error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v interface{}) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warnf("Encode response: %v", err)
	}
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonStatus(w, status, map[string]string{"error": msg})
}
