package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"riskgate/internal/action"
	"riskgate/internal/audit"
	"riskgate/internal/config"
	"riskgate/internal/engine"
	"riskgate/internal/metrics"
)

const maxBatchSize = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng      *engine.Engine
	store    *audit.Store
	loader   *config.Loader
	registry *action.Registry
	mux      *http.ServeMux
}

// New creates an HTTP handler and registers all routes.
func New(eng *engine.Engine, store *audit.Store, loader *config.Loader, reg *action.Registry) http.Handler {
	h := &Handler{eng: eng, store: store, loader: loader, registry: reg, mux: http.NewServeMux()}

	h.mux.HandleFunc("POST /v1/events", h.processEvent)
	h.mux.HandleFunc("POST /v1/events/batch", h.processBatch)
	h.mux.HandleFunc("POST /v1/actions/dispatch", h.dispatchAction)
	h.mux.HandleFunc("GET /v1/activity", h.listActivity)
	h.mux.HandleFunc("GET /v1/activity/{id}", h.getActivity)
	h.mux.HandleFunc("GET /v1/rules", h.showRules)
	h.mux.HandleFunc("POST /v1/rules/reload", h.reloadRules)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.mux)
}

// POST /v1/events — synchronous triage of a single raw event.
// Schema-invalid events are a 200 with is_valid=false: rejection is a risk
// decision, not a transport failure.
func (h *Handler) processEvent(w http.ResponseWriter, r *http.Request) {
	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}

	res, err := h.eng.ProcessSync(r.Context(), raw)
	if err != nil {
		if errors.Is(err, audit.ErrUnavailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/events/batch — async batch ingestion (up to 100 events).
func (h *Handler) processBatch(w http.ResponseWriter, r *http.Request) {
	var events []map[string]any
	if err := json.NewDecoder(r.Body).Decode(&events); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(events) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(events) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(events), maxBatchSize))
		return
	}

	jobID := uuid.New().String()
	queued := 0
	for _, raw := range events {
		if h.eng.ProcessAsync(raw) {
			queued++
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":   jobID,
		"total":    len(events),
		"queued":   queued,
		"rejected": len(events) - queued,
	})
}

// dispatchRequest is the body of POST /v1/actions/dispatch.
type dispatchRequest struct {
	Action  string         `json:"action"`
	Context map[string]any `json:"context"`
}

// POST /v1/actions/dispatch — uniform entry point for callers that arrive
// with a pre-classified payload and an action id (document/email agents use
// the same dispatch vocabulary as the event pipeline).
func (h *Handler) dispatchAction(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if strings.TrimSpace(req.Action) == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	res, err := h.eng.Dispatcher().Dispatch(r.Context(), req.Action, req.Context)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /v1/activity — full audit trail, newest first.
func (h *Handler) listActivity(w http.ResponseWriter, r *http.Request) {
	records := h.store.List()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(records),
		"activities": records,
	})
}

// GET /v1/activity/{id} — one audit record.
func (h *Handler) getActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "activity id must be an integer")
		return
	}
	rec, err := h.store.Get(id)
	if err != nil {
		if errors.Is(err, audit.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GET /v1/rules — active risk rule set and registered actions.
func (h *Handler) showRules(w http.ResponseWriter, r *http.Request) {
	rules := h.eng.Rules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"suspicious_events":    rules.SuspiciousEvents,
		"high_value_threshold": rules.HighValueThreshold,
		"stale_after_seconds":  int(rules.StaleAfter / time.Second),
		"suspicious_locations": rules.SuspiciousLocations,
		"registered_actions":   h.registry.Names(),
	})
}

// POST /v1/rules/reload — hot-reload the risk rules from disk.
func (h *Handler) reloadRules(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := config.Validate(cfg); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	rules, err := cfg.Risk.Rules()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.eng.SwapRules(rules)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":          true,
		"suspicious_events": len(rules.SuspiciousEvents),
	})
}

// GET /healthz — always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz — 503 if the triage queue is >80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
