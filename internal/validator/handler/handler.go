package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"travelguard/internal/validator"
	"travelguard/pkg/platform/httputil"
	"travelguard/pkg/platform/sentinel"
	"travelguard/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

// Service is the validator as seen by the transport.
type Service interface {
	Validate(ctx context.Context, ev validator.LocationEvent) validator.Decision
}

// Handler exposes event validation over HTTP. A malformed event is still a
// decision (INVALID_FORMAT, 200); only an undecodable body is a 400.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Register mounts the validation endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/events/validate", h.HandleValidate)
	r.Post("/v1/events/validate/batch", h.HandleValidateBatch)
}

// HandleValidate handles POST /v1/events/validate.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	payload, err := httputil.DecodeJSON[validator.EventPayload](w, r)
	if err != nil {
		h.logger.InfoContext(ctx, "rejected request body",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	d := h.service.Validate(ctx, payload.Event(requestcontext.Now(ctx)))
	httputil.WriteJSON(w, http.StatusOK, d)
}

// HandleValidateBatch handles POST /v1/events/validate/batch. Events are
// decided in the order given. Every event must carry a timestamp: stamping a
// batch with one request time would make its events simultaneous.
func (h *Handler) HandleValidateBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, err := httputil.DecodeJSON[BatchRequest](w, r)
	if err == nil {
		err = checkBatch(req)
	}
	if err != nil {
		h.logger.InfoContext(ctx, "rejected batch body",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	now := requestcontext.Now(ctx)
	resp := BatchResponse{Decisions: make([]validator.Decision, 0, len(req.Events))}
	for _, p := range req.Events {
		resp.Decisions = append(resp.Decisions, h.service.Validate(ctx, p.Event(now)))
	}

	h.logger.DebugContext(ctx, "batch validated",
		"request_id", requestID,
		"events", len(req.Events),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func checkBatch(req BatchRequest) error {
	if len(req.Events) > MaxBatchSize {
		return fmt.Errorf("batch of %d events exceeds %d: %w", len(req.Events), MaxBatchSize, sentinel.ErrInvalidInput)
	}
	for i, p := range req.Events {
		if p.Timestamp == nil {
			return fmt.Errorf("events[%d]: timestamp is required in a batch: %w", i, sentinel.ErrInvalidInput)
		}
	}
	return nil
}
