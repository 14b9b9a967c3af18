// Package validator decides, per location observation, whether an entity's
// reported move is plausible. It never sees raw sensor data: only entity id,
// timestamp and zone.
//
// Per entity the validator walks
//
//	NO_STATE -> OBSERVED -> (CONFLICT | VIOLATION_PENDING) -> OBSERVED | CONFIRMED_VIOLATION
//
// Simultaneous contradictory reports are resolved by zone weight, and an
// implausible jump must persist for the debounce threshold (PCVF) before it
// is confirmed.
package validator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"travelguard/internal/state"
	"travelguard/internal/validator/metrics"
	"travelguard/pkg/platform/sentinel"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Topology,DecisionPublisher

var tracer = otel.Tracer("travelguard/internal/validator")

// Topology is the zone geometry the validator needs.
type Topology interface {
	Distance(a, b string) float64
	Weight(zone string) float64
}

// DecisionPublisher receives every decision after it is made. Publishing is
// best effort and never changes the decision.
type DecisionPublisher interface {
	Publish(ctx context.Context, d Decision)
}

type Validator struct {
	store     state.Store
	topology  Topology
	config    Config
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher DecisionPublisher
	locks     entityLocks
}

type Option func(*Validator)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		v.logger = logger
	}
}

func WithConfig(cfg Config) Option {
	return func(v *Validator) {
		v.config = cfg
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(v *Validator) {
		v.metrics = m
	}
}

func WithPublisher(p DecisionPublisher) Option {
	return func(v *Validator) {
		v.publisher = p
	}
}

func New(store state.Store, topology Topology, opts ...Option) (*Validator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if topology == nil {
		return nil, errors.New("topology is required")
	}

	v := &Validator{
		store:    store,
		topology: topology,
		config:   DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if err := v.config.Validate(); err != nil {
		return nil, err
	}
	return v, nil
}

// Config returns the thresholds in effect.
func (v *Validator) Config() Config {
	return v.config
}

// Validate decides one event. It always returns a decision: malformed input
// yields INVALID_FORMAT, and store trouble is absorbed below this call.
func (v *Validator) Validate(ctx context.Context, ev LocationEvent) (d Decision) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "validator.Validate", trace.WithSpanKind(trace.SpanKindInternal))

	defer func() {
		if r := recover(); r != nil {
			v.logger.ErrorContext(ctx, "validation panicked",
				"entity_id", ev.EntityID,
				"zone", ev.Zone,
				"panic", r,
			)
			d = invalid(ev, fmt.Sprintf("internal error: %v", r))
			span.SetStatus(codes.Error, "panic")
		}
		span.SetAttributes(
			attribute.String("travelguard.entity_id", d.EntityID),
			attribute.String("travelguard.code", string(d.Code)),
		)
		span.End()
		v.emit(ctx, d, time.Since(start))
	}()

	ev, err := normalize(ev)
	if err != nil {
		v.logger.DebugContext(ctx, "rejected malformed event", "error", err)
		return invalid(ev, err.Error())
	}

	unlock := v.locks.lock(ev.EntityID)
	defer unlock()

	return v.decide(ctx, ev)
}

// emit records and publishes d. It runs outside the decision's recover, so
// it carries its own: a failing collaborator never reaches the caller.
func (v *Validator) emit(ctx context.Context, d Decision, elapsed time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			v.logger.ErrorContext(ctx, "decision publishing panicked",
				"entity_id", d.EntityID,
				"code", d.Code,
				"panic", r,
			)
		}
	}()
	if v.metrics != nil {
		v.metrics.RecordDecision(string(d.Code), elapsed)
	}
	if v.publisher != nil {
		v.publisher.Publish(ctx, d)
	}
}

func normalize(ev LocationEvent) (LocationEvent, error) {
	ev.EntityID = strings.TrimSpace(ev.EntityID)
	ev.Zone = strings.TrimSpace(ev.Zone)

	switch {
	case ev.EntityID == "":
		return ev, fmt.Errorf("missing entity_id: %w", sentinel.ErrInvalidInput)
	case ev.Zone == "":
		return ev, fmt.Errorf("missing zone: %w", sentinel.ErrInvalidInput)
	case math.IsNaN(ev.Timestamp) || math.IsInf(ev.Timestamp, 0):
		return ev, fmt.Errorf("non-finite timestamp: %w", sentinel.ErrInvalidInput)
	}
	if c := ev.Confidence; c != nil && (math.IsNaN(*c) || *c < 0 || *c > 1) {
		return ev, fmt.Errorf("confidence %v outside [0,1]: %w", *c, sentinel.ErrInvalidInput)
	}
	return ev, nil
}

// decide runs with the entity lock held.
func (v *Validator) decide(ctx context.Context, ev LocationEvent) Decision {
	prior, ok := v.store.GetState(ctx, ev.EntityID)
	if !ok {
		v.commit(ctx, ev.EntityID, ev.Zone, ev.Timestamp)
		return accept(ev, CodeFirstObservation, "first observation")
	}

	dt := ev.Timestamp - prior.Timestamp
	window := v.config.ConflictWindow.Seconds()

	switch {
	case math.Abs(dt) <= window:
		return v.resolveConflict(ctx, ev, prior)
	case dt < 0:
		return v.ignoreStale(ctx, ev, prior, -dt)
	default:
		return v.checkTravel(ctx, ev, prior, dt)
	}
}

// resolveConflict handles two reports for the same instant. The strictly
// heavier zone wins; ties keep the stored zone.
func (v *Validator) resolveConflict(ctx context.Context, ev LocationEvent, prior state.EntityState) Decision {
	if ev.Zone == prior.Zone {
		return accept(ev, CodeDuplicate, "duplicate of stored state")
	}

	wPrior := v.topology.Weight(prior.Zone)
	wCurr := v.topology.Weight(ev.Zone)
	if wCurr > wPrior {
		v.commit(ctx, ev.EntityID, ev.Zone, math.Max(prior.Timestamp, ev.Timestamp))
		detail := fmt.Sprintf("conflict resolved: %s (%.2f) > %s (%.2f), state updated", ev.Zone, wCurr, prior.Zone, wPrior)
		v.logger.InfoContext(ctx, "conflict resolved in favor of new report",
			"entity_id", ev.EntityID,
			"winner", ev.Zone,
			"loser", prior.Zone,
		)
		return accept(ev, CodeValidTransition, detail)
	}

	v.logger.InfoContext(ctx, "conflict resolved in favor of stored state",
		"entity_id", ev.EntityID,
		"winner", prior.Zone,
		"loser", ev.Zone,
	)
	return accept(ev, CodeConflictResolvedIgnored,
		fmt.Sprintf("conflict resolved: %s (%.2f) >= %s (%.2f), event ignored", prior.Zone, wPrior, ev.Zone, wCurr))
}

// ignoreStale handles an event older than the stored state by more than the
// conflict window. Logical order wins over arrival order, so state is kept.
func (v *Validator) ignoreStale(ctx context.Context, ev LocationEvent, prior state.EntityState, age float64) Decision {
	if ev.Zone == prior.Zone {
		return accept(ev, CodeDuplicate,
			fmt.Sprintf("stale: older than stored state %s@%.3f by %.3fs", prior.Zone, prior.Timestamp, age))
	}
	v.logger.InfoContext(ctx, "late event ignored",
		"entity_id", ev.EntityID,
		"zone", ev.Zone,
		"stored_zone", prior.Zone,
		"age_s", age,
	)
	return accept(ev, CodeConflictResolvedIgnored,
		fmt.Sprintf("stale: older than stored state %s@%.3f by %.3fs", prior.Zone, prior.Timestamp, age))
}

// checkTravel applies the velocity bound and, past it, persistence filtering.
func (v *Validator) checkTravel(ctx context.Context, ev LocationEvent, prior state.EntityState, dt float64) Decision {
	distance := v.topology.Distance(prior.Zone, ev.Zone)
	velocity := distance / dt

	if velocity <= v.config.MaxVelocity {
		v.store.DeleteViolation(ctx, ev.EntityID)
		v.commit(ctx, ev.EntityID, ev.Zone, ev.Timestamp)
		d := accept(ev, CodeValidTransition, fmt.Sprintf("v=%.1f m/s", velocity))
		d.Velocity = velocity
		return d
	}

	rec, pending := v.store.GetViolation(ctx, ev.EntityID)
	if !pending {
		v.store.SetViolation(ctx, ev.EntityID, state.ViolationRecord{StartTime: ev.Timestamp}, v.config.ViolationTTL)
		v.logger.WarnContext(ctx, "potential violation, debouncing",
			"entity_id", ev.EntityID,
			"from", prior.Zone,
			"to", ev.Zone,
			"velocity_mps", velocity,
		)
		d := accept(ev, CodeWarningPotentialViolation, fmt.Sprintf("v=%.1f m/s, debouncing", velocity))
		d.Velocity = velocity
		return d
	}

	duration := ev.Timestamp - rec.StartTime
	if duration < v.config.DebounceThreshold.Seconds() {
		v.logger.WarnContext(ctx, "pending violation",
			"entity_id", ev.EntityID,
			"to", ev.Zone,
			"duration_s", duration,
		)
		d := accept(ev, CodeWarningPendingViolation,
			fmt.Sprintf("v=%.1f m/s, persisted %.1fs of %.1fs", velocity, duration, v.config.DebounceThreshold.Seconds()))
		d.Velocity = velocity
		return d
	}

	v.commit(ctx, ev.EntityID, ev.Zone, ev.Timestamp)
	v.store.DeleteViolation(ctx, ev.EntityID)
	v.logger.ErrorContext(ctx, "confirmed impossible travel",
		"entity_id", ev.EntityID,
		"from", prior.Zone,
		"to", ev.Zone,
		"velocity_mps", velocity,
		"duration_s", duration,
	)
	return Decision{
		EntityID:  ev.EntityID,
		Zone:      ev.Zone,
		Timestamp: ev.Timestamp,
		Accepted:  false,
		Code:      CodeConfirmedViolation,
		Detail:    fmt.Sprintf("IMPOSSIBLE TRAVEL (CONFIRMED): v=%.1f m/s, persisted %.1fs", velocity, duration),
		Velocity:  velocity,
	}
}

// commit writes the entity state and renews its TTL.
func (v *Validator) commit(ctx context.Context, entityID, zone string, ts float64) {
	v.store.SetState(ctx, entityID, state.EntityState{Zone: zone, Timestamp: ts}, v.config.StateTTL)
}

func accept(ev LocationEvent, code Code, detail string) Decision {
	return Decision{
		EntityID:  ev.EntityID,
		Zone:      ev.Zone,
		Timestamp: ev.Timestamp,
		Accepted:  true,
		Code:      code,
		Detail:    detail,
	}
}

func invalid(ev LocationEvent, detail string) Decision {
	return Decision{
		EntityID:  ev.EntityID,
		Zone:      ev.Zone,
		Timestamp: ev.Timestamp,
		Accepted:  false,
		Code:      CodeInvalidFormat,
		Detail:    detail,
	}
}
