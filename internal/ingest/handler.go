// Package ingest turns consumed location event records into decisions.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"travelguard/internal/platform/kafka/consumer"
	"travelguard/internal/validator"
)

// EventValidator decides one event.
type EventValidator interface {
	Validate(ctx context.Context, ev validator.LocationEvent) validator.Decision
}

// Handler implements consumer.Handler for the location events topic.
// Malformed payloads are reported as INVALID_FORMAT and committed since a
// redelivery would fail the same way.
type Handler struct {
	validator EventValidator
	publisher validator.DecisionPublisher
	logger    *slog.Logger
	metrics   *Metrics
	now       func() time.Time
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithPublisher sets where decisions for malformed payloads go. Decisions
// made by the validator are published by the validator itself.
func WithPublisher(p validator.DecisionPublisher) Option {
	return func(h *Handler) {
		h.publisher = p
	}
}

// WithClock stamps events that arrive without a timestamp.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

func NewHandler(v EventValidator, opts ...Option) *Handler {
	h := &Handler{
		validator: v,
		logger:    slog.Default(),
		metrics:   NewMetrics(nil),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Handle(ctx context.Context, msg *consumer.Message) error {
	var payload validator.EventPayload
	if err := json.Unmarshal(msg.Value, &payload); err != nil {
		h.malformed(ctx, msg, err)
		return nil
	}
	if payload.EntityID == "" {
		payload.EntityID = string(msg.Key)
	}

	d := h.validator.Validate(ctx, payload.Event(h.now()))
	h.metrics.Records.WithLabelValues(resultDecided).Inc()
	h.logger.DebugContext(ctx, "decided consumed event",
		"entity_id", d.EntityID,
		"code", d.Code,
		"partition", msg.Partition,
		"offset", msg.Offset,
	)
	return nil
}

func (h *Handler) malformed(ctx context.Context, msg *consumer.Message, err error) {
	h.metrics.Records.WithLabelValues(resultMalformed).Inc()
	h.logger.WarnContext(ctx, "malformed location event",
		"entity_id", string(msg.Key),
		"topic", msg.Topic,
		"partition", msg.Partition,
		"offset", msg.Offset,
		"error", err,
	)
	if h.publisher == nil {
		return
	}
	h.publisher.Publish(ctx, validator.Decision{
		EntityID: string(msg.Key),
		Accepted: false,
		Code:     validator.CodeInvalidFormat,
		Detail:   fmt.Sprintf("malformed payload: %v", err),
	})
}

var _ consumer.Handler = (*Handler)(nil)
