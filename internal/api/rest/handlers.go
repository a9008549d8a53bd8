package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/fortuna/sibyl/internal/logging"
	"github.com/fortuna/sibyl/internal/report"
	"github.com/fortuna/sibyl/internal/scheduler"
	"github.com/fortuna/sibyl/internal/store"
)

// Version is reported by /health.
var Version = "dev"

// ReportStore reads persisted reports.
type ReportStore interface {
	GetReport(ctx context.Context, name string) (*report.Report, error)
	LatestReport(ctx context.Context) (*report.Report, error)
}

// LatestSource holds the last report generated by this process.
type LatestSource interface {
	Latest() *report.Report
}

// Trigger starts a report run on demand without waiting for it.
type Trigger interface {
	TriggerAsync(trigger string) error
}

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Handler contains dependencies for HTTP handlers
type Handler struct {
	store   ReportStore
	latest  LatestSource
	trigger Trigger
	checks  map[string]HealthCheck
	status  func() any
}

// Deps are the handler dependencies. Any field may be nil; the matching
// endpoint then falls back or answers 503.
type Deps struct {
	Store   ReportStore
	Latest  LatestSource
	Trigger Trigger
	Checks  map[string]HealthCheck
	Status  func() any
}

// NewHandler creates a new handler
func NewHandler(d Deps) *Handler {
	return &Handler{
		store:   d.Store,
		latest:  d.Latest,
		trigger: d.Trigger,
		checks:  d.Checks,
		status:  d.Status,
	}
}

// HealthCheck runs every dependency check and answers 503 if any fails.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK
	checks := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	respondJSON(w, code, map[string]any{
		"status":  status,
		"service": "sibyl",
		"version": Version,
		"checks":  checks,
	})
}

// GetStatus returns scheduler and generator state.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	if h.status == nil {
		respondError(w, http.StatusServiceUnavailable, "Status is not available", nil)
		return
	}
	respondJSON(w, http.StatusOK, h.status())
}

// GetLatestReport returns the newest stored report, or the last one this
// process generated when no store is configured.
func (h *Handler) GetLatestReport(w http.ResponseWriter, r *http.Request) {
	if h.store != nil {
		rep, err := h.store.LatestReport(r.Context())
		if err == nil {
			h.writeReport(w, r, rep)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			logging.FromContext(r.Context()).Error().Err(err).Msg("Loading latest report")
			respondError(w, http.StatusInternalServerError, "Failed to load latest report", err)
			return
		}
	}

	if rep := h.inMemory(""); rep != nil {
		h.writeReport(w, r, rep)
		return
	}
	respondError(w, http.StatusNotFound, "No report has been generated yet", nil)
}

// GetReport returns the report named in the path.
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	if h.store != nil {
		rep, err := h.store.GetReport(r.Context(), name)
		if err == nil {
			h.writeReport(w, r, rep)
			return
		}
		if !errors.Is(err, store.ErrNotFound) {
			logging.FromContext(r.Context()).Error().Err(err).Str("report", name).Msg("Loading report")
			respondError(w, http.StatusInternalServerError, "Failed to load report", err)
			return
		}
	}

	if rep := h.inMemory(name); rep != nil {
		h.writeReport(w, r, rep)
		return
	}
	respondError(w, http.StatusNotFound, "Report not found", nil)
}

// RunReport starts a report run and answers 202 at once; progress shows in
// /api/v1/status and on the websocket feed. 409 while another run is in
// flight.
func (h *Handler) RunReport(w http.ResponseWriter, r *http.Request) {
	if h.trigger == nil {
		respondError(w, http.StatusServiceUnavailable, "Report runs are not enabled", nil)
		return
	}

	err := h.trigger.TriggerAsync("api")
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		respondError(w, http.StatusConflict, "A report run is already in progress", nil)
		return
	case err != nil:
		logging.FromContext(r.Context()).Error().Err(err).Msg("Starting report run")
		respondError(w, http.StatusInternalServerError, "Could not start report run", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status":  "started",
		"trigger": "api",
	})
}

func (h *Handler) inMemory(name string) *report.Report {
	if h.latest == nil {
		return nil
	}
	rep := h.latest.Latest()
	if rep == nil || (name != "" && rep.Name != name) {
		return nil
	}
	return rep
}

// writeReport answers with the report, or with its sheet rows when
// ?view=rows is given.
func (h *Handler) writeReport(w http.ResponseWriter, r *http.Request, rep *report.Report) {
	if r.URL.Query().Get("view") == "rows" {
		respondJSON(w, http.StatusOK, map[string]any{
			"name": rep.Name,
			"rows": rep.Rows(),
		})
		return
	}
	respondJSON(w, http.StatusOK, rep)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	response := map[string]any{
		"error":  message,
		"status": status,
	}
	if err != nil {
		response["details"] = err.Error()
	}
	respondJSON(w, status, response)
}
