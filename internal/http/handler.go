package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidbz/polyglot/internal/domain"
	"github.com/davidbz/polyglot/internal/observability"
)

const maxRequestBytes = 4 << 20

// TranslationService runs a translation and returns its recorded outcome.
type TranslationService interface {
	Translate(ctx context.Context, req *domain.TranslateRequest) (*domain.TranslationOutcome, error)
}

// Handler handles HTTP requests.
type Handler struct {
	translator TranslationService
	outcomes   domain.OutcomeStore
	metrics    http.Handler
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(translator TranslationService, outcomes domain.OutcomeStore, gatherer prometheus.Gatherer) *Handler {
	return &Handler{
		translator: translator,
		outcomes:   outcomes,
		metrics:    promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
	}
}

// Routes registers the handler's endpoints on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/translations", h.HandleTranslate)
	mux.HandleFunc("GET /v1/translations/{id}", h.HandleGetOutcome)
	mux.HandleFunc("GET /v1/records/{recordID}/translations", h.HandleListOutcomes)
	mux.HandleFunc("GET /health", h.HandleHealth)
	mux.Handle("GET /metrics", h.metrics)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// HandleTranslate runs one translation. The outcome is returned with 200
// whether it completed or failed; transport-level problems use error codes.
func (h *Handler) HandleTranslate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.FromContext(ctx)

	var req domain.TranslateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	outcome, err := h.translator.Translate(ctx, &req)

	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(ctx, w, http.StatusBadRequest, errorResponse{Error: verr.Error(), Fields: verr.Fields})
		return
	case err != nil:
		logger.Error("translation failed", observability.Error(err))
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	logger.Info("translation finished",
		observability.String("outcome_id", outcome.ID),
		observability.String("status", string(outcome.Status)),
		observability.Int("attempts", outcome.Attempts))

	writeJSON(ctx, w, http.StatusOK, outcome)
}

// HandleGetOutcome returns one stored outcome.
func (h *Handler) HandleGetOutcome(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	outcome, err := h.outcomes.Get(ctx, r.PathValue("id"))
	if errors.Is(err, domain.ErrOutcomeNotFound) {
		writeJSON(ctx, w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		observability.FromContext(ctx).Error("outcome lookup failed", observability.Error(err))
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(ctx, w, http.StatusOK, outcome)
}

// HandleListOutcomes returns the outcomes recorded for a record, oldest
// first.
func (h *Handler) HandleListOutcomes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	outcomes, err := h.outcomes.ListByRecord(ctx, r.PathValue("recordID"))
	if err != nil {
		observability.FromContext(ctx).Error("outcome listing failed", observability.Error(err))
		writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	writeJSON(ctx, w, http.StatusOK, map[string]any{"translations": outcomes})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Status is already written.
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}
