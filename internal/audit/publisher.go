package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"travelguard/internal/audit/metrics"
	"travelguard/internal/validator"
)

// Publisher fans decisions out to the ledger and alert sinks. In sync mode
// Publish delivers before returning; with WithAsyncBuffer decisions are
// queued for a worker and dropped (with a warning) when the queue is full.
// Sink failures are logged and never reach the validator.
type Publisher struct {
	ledger  Sink
	alerts  Sink
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	inbox     chan validator.Decision
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// WithAlertSink sets where CONFIRMED_VIOLATION decisions are sent.
func WithAlertSink(s Sink) Option {
	return func(p *Publisher) {
		p.alerts = s
	}
}

// WithAsyncBuffer queues up to size decisions for background delivery.
// Zero keeps delivery synchronous.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan validator.Decision, size)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPublisher builds a publisher writing every decision to ledger.
func NewPublisher(ledger Sink, opts ...Option) *Publisher {
	p := &Publisher{
		ledger:  ledger,
		logger:  slog.Default(),
		metrics: metrics.New(nil),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		w := NewWorker(p.deliver, p.inbox)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.Run()
		}()
	}
	return p
}

// Publish implements validator.DecisionPublisher.
func (p *Publisher) Publish(ctx context.Context, d validator.Decision) {
	if p.inbox == nil {
		p.deliver(ctx, d)
		return
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.WarnContext(ctx, "publisher closed, decision dropped",
			"entity_id", d.EntityID,
			"code", d.Code,
		)
		p.metrics.Dropped.Inc()
		return
	}
	select {
	case p.inbox <- d:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, decision dropped",
			"entity_id", d.EntityID,
			"code", d.Code,
		)
		p.metrics.Dropped.Inc()
	}
}

// Close stops accepting decisions and waits for queued ones to be delivered.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if p.inbox == nil {
			return
		}
		p.mu.Lock()
		p.closed = true
		close(p.inbox)
		p.mu.Unlock()
		p.wg.Wait()
	})
}

func (p *Publisher) deliver(ctx context.Context, d validator.Decision) {
	now := p.now()
	if p.ledger != nil {
		p.send(ctx, p.ledger, newRecord(CategoryDecision, d, now))
	}
	if p.alerts != nil && d.IsAlert() {
		p.send(ctx, p.alerts, newRecord(CategoryAlert, d, now))
	}
}

func (p *Publisher) send(ctx context.Context, sink Sink, rec Record) {
	cat := string(rec.Category)
	if err := sink.Publish(ctx, rec); err != nil {
		p.metrics.Failed.WithLabelValues(cat).Inc()
		p.logger.ErrorContext(ctx, "publish decision",
			"category", cat,
			"entity_id", rec.Decision.EntityID,
			"code", rec.Decision.Code,
			"error", err,
		)
		return
	}
	p.metrics.Published.WithLabelValues(cat).Inc()
}

var _ validator.DecisionPublisher = (*Publisher)(nil)
