package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/convoflow/convoflow/finance"
	"github.com/convoflow/convoflow/internal/metrics"
	"github.com/convoflow/convoflow/store"
	"github.com/convoflow/convoflow/summarizer"
)

// Handlers serves the REST API over the two pipelines.
type Handlers struct {
	finance   *finance.Assistant
	calls     *summarizer.Pipeline
	collector *metrics.Collector
	logger    *zap.Logger
}

// NewHandlers builds the API surface. The collector is optional.
func NewHandlers(fin *finance.Assistant, calls *summarizer.Pipeline, collector *metrics.Collector, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		finance:   fin,
		calls:     calls,
		collector: collector,
		logger:    logger.With(zap.String("component", "api")),
	}
}

// Router returns the fully wired mux.
func (h *Handlers) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/finance/runs", h.handleFinanceRun)
	mux.HandleFunc("GET /v1/finance/conversations", h.handleFinanceConversations)
	mux.HandleFunc("GET /v1/finance/conversations/{id}/runs", h.handleFinanceRuns)
	mux.HandleFunc("GET /v1/finance/conversations/{id}/result", h.handleFinanceResult)

	mux.HandleFunc("POST /v1/calls/runs", h.handleCallRun)
	mux.HandleFunc("GET /v1/calls/conversations", h.handleCallConversations)
	mux.HandleFunc("GET /v1/calls/conversations/{id}/runs", h.handleCallRuns)
	mux.HandleFunc("GET /v1/calls/conversations/{id}/result", h.handleCallResult)

	mux.HandleFunc("GET /healthz", h.handleHealth)
	if h.collector != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.collector.Registry(), promhttp.HandlerOpts{}))
	}

	return h.instrument(mux)
}

func (h *Handlers) handleFinanceRun(w http.ResponseWriter, r *http.Request) {
	var payload finance.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.finance.Run(r.Context(), payload)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) handleFinanceConversations(w http.ResponseWriter, r *http.Request) {
	records, err := h.finance.ListConversations(r.Context())
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"conversations": records})
}

func (h *Handlers) handleFinanceRuns(w http.ResponseWriter, r *http.Request) {
	records, err := h.finance.GetRuns(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": records})
}

func (h *Handlers) handleFinanceResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.finance.GetLatestResult(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) handleCallRun(w http.ResponseWriter, r *http.Request) {
	var payload summarizer.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := h.calls.Run(r.Context(), payload)
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) handleCallConversations(w http.ResponseWriter, r *http.Request) {
	records, err := h.calls.ListConversations(r.Context())
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"conversations": records})
}

func (h *Handlers) handleCallRuns(w http.ResponseWriter, r *http.Request) {
	records, err := h.calls.GetRuns(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"runs": records})
}

func (h *Handlers) handleCallResult(w http.ResponseWriter, r *http.Request) {
	result, err := h.calls.GetLatestResult(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writePipelineError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, summarizer.ErrInvalidInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		h.writeError(w, http.StatusNotFound, "conversation not found")
	default:
		h.logger.Error("request failed", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// instrument records request counts and latency per route.
func (h *Handlers) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		if h.collector != nil {
			h.collector.RecordHTTPRequest(r.Method, r.URL.Path, rec.status, time.Since(start))
		}
		h.logger.Debug("request served",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
