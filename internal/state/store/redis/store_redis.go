package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"travelguard/internal/state"
	"travelguard/internal/state/store/memory"
	"travelguard/pkg/platform/circuit"
)

var (
	opDurationMs = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "travelguard_state_backend_op_duration_ms",
		Help:    "Latency of state backend operations in milliseconds",
		Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	}, []string{"op"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "travelguard_state_backend_fallback_total",
		Help: "State operations served by the local fallback because the backend failed or the circuit was open",
	}, []string{"op"})

	circuitOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "travelguard_state_circuit_open",
		Help: "1 while the state backend circuit breaker is open",
	})
)

const (
	// DefaultOpTimeout bounds every backend round trip.
	DefaultOpTimeout = 50 * time.Millisecond

	// pendingDeleteTTL bounds how long a delete that missed the backend is
	// remembered locally.
	pendingDeleteTTL = 10 * time.Minute

	opGet    = "get"
	opSet    = "set"
	opDelete = "delete"
)

// RedisStore keeps entity state in Redis so several validator nodes share it.
// Every write also lands in a local in-memory store; when Redis errors, times
// out or the breaker is open, reads are served from that local copy and a
// warning is logged. Callers never see backend errors.
//
// Writes made during an outage reach only the local copy and are marked
// unsynced. When Redis answers again, the newer of the two copies is returned
// and written back.
type RedisStore struct {
	client  redis.Cmdable
	local   *memory.InMemoryStore
	breaker *circuit.Breaker
	timeout time.Duration
	logger  *slog.Logger
}

type Option func(*RedisStore)

func WithLogger(logger *slog.Logger) Option {
	return func(s *RedisStore) {
		s.logger = logger
	}
}

// WithOpTimeout bounds each backend call.
func WithOpTimeout(d time.Duration) Option {
	return func(s *RedisStore) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithBreaker replaces the default circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(s *RedisStore) {
		if b != nil {
			s.breaker = b
		}
	}
}

// WithLocal replaces the local fallback store.
func WithLocal(local *memory.InMemoryStore) Option {
	return func(s *RedisStore) {
		if local != nil {
			s.local = local
		}
	}
}

// New wraps client. The client lifecycle stays with the caller.
func New(client redis.Cmdable, opts ...Option) *RedisStore {
	s := &RedisStore{
		client:  client,
		local:   memory.New(),
		breaker: circuit.New("state-redis"),
		timeout: DefaultOpTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Degraded reports whether reads are currently served from the local copy.
func (s *RedisStore) Degraded() bool {
	return s.breaker.IsOpen()
}

// Local exposes the fallback store so the host can sweep it.
func (s *RedisStore) Local() *memory.InMemoryStore {
	return s.local
}

func (s *RedisStore) GetState(ctx context.Context, entityID string) (state.EntityState, bool) {
	key := state.StateKey(entityID)
	local, hasLocal := s.local.GetState(ctx, entityID)

	var remote state.EntityState
	found, ok := s.get(ctx, key, &remote)
	if !ok {
		return local, hasLocal
	}
	if s.unsynced(key) {
		if hasLocal && (!found || local.Timestamp > remote.Timestamp) {
			s.writeBack(ctx, key, local)
			return local, true
		}
		s.local.Delete(unsyncedKey(key))
	}
	return remote, found
}

func (s *RedisStore) SetState(ctx context.Context, entityID string, st state.EntityState, ttl time.Duration) {
	key := state.StateKey(entityID)
	s.local.SetState(ctx, entityID, st, ttl)
	s.track(key, s.set(ctx, key, st, ttl), ttl)
}

func (s *RedisStore) GetViolation(ctx context.Context, entityID string) (state.ViolationRecord, bool) {
	key := state.ViolationKey(entityID)
	local, hasLocal := s.local.GetViolation(ctx, entityID)

	var remote state.ViolationRecord
	found, ok := s.get(ctx, key, &remote)
	if !ok {
		return local, hasLocal
	}
	if found && s.flushPendingDelete(ctx, key) {
		found = false
	}
	if s.unsynced(key) {
		if hasLocal && (!found || local.StartTime > remote.StartTime) {
			s.writeBack(ctx, key, local)
			return local, true
		}
		s.local.Delete(unsyncedKey(key))
	}
	return remote, found
}

func (s *RedisStore) SetViolation(ctx context.Context, entityID string, v state.ViolationRecord, ttl time.Duration) {
	key := state.ViolationKey(entityID)
	s.local.Delete(pendingDeleteKey(key))
	s.local.SetViolation(ctx, entityID, v, ttl)
	s.track(key, s.set(ctx, key, v, ttl), ttl)
}

func (s *RedisStore) DeleteViolation(ctx context.Context, entityID string) {
	key := state.ViolationKey(entityID)
	s.local.DeleteViolation(ctx, entityID)
	s.local.Delete(unsyncedKey(key))
	if !s.del(ctx, key) {
		s.local.Set(pendingDeleteKey(key), struct{}{}, pendingDeleteTTL)
	}
}

// Local markers for writes that missed the backend. An unsynced key's local
// value may be newer than Redis; a pending delete means the Redis value is
// stale. Without a marker Redis is authoritative, so other nodes' writes and
// deletes win.
func unsyncedKey(key string) string      { return "unsynced:" + key }
func pendingDeleteKey(key string) string { return "pending-delete:" + key }

func (s *RedisStore) track(key string, synced bool, ttl time.Duration) {
	if synced {
		s.local.Delete(unsyncedKey(key))
		return
	}
	s.local.Set(unsyncedKey(key), struct{}{}, ttl)
}

func (s *RedisStore) unsynced(key string) bool {
	_, ok := s.local.Get(unsyncedKey(key))
	return ok
}

// flushPendingDelete retries a delete that missed the backend. It reports
// whether key was deleted locally, in which case the remote value is stale.
func (s *RedisStore) flushPendingDelete(ctx context.Context, key string) bool {
	marker := pendingDeleteKey(key)
	if _, pending := s.local.Get(marker); !pending {
		return false
	}
	if s.del(ctx, key) {
		s.local.Delete(marker)
	}
	return true
}

// writeBack copies a local value the backend missed, keeping its remaining TTL.
func (s *RedisStore) writeBack(ctx context.Context, key string, v any) {
	ttl, live := s.local.TTL(key)
	if !live {
		return
	}
	s.logger.InfoContext(ctx, "restoring state value written during backend outage", "key", key)
	if s.set(ctx, key, v, ttl) {
		s.local.Delete(unsyncedKey(key))
	}
}

func (s *RedisStore) del(ctx context.Context, key string) bool {
	return s.do(ctx, opDelete, key, func(ctx context.Context) error {
		return s.client.Del(ctx, key).Err()
	})
}

// get decodes key into dst. ok is false when the backend could not answer and
// the caller should use the local copy; found reports key presence otherwise.
func (s *RedisStore) get(ctx context.Context, key string, dst any) (found, ok bool) {
	var raw []byte
	ok = s.do(ctx, opGet, key, func(ctx context.Context) error {
		b, err := s.client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		raw = b
		return err
	})
	if !ok {
		return false, false
	}
	if raw == nil {
		return false, true
	}
	if err := msgpack.Unmarshal(raw, dst); err != nil {
		s.logger.WarnContext(ctx, "undecodable state value, using local fallback",
			"key", key,
			"error", err,
		)
		fallbacksTotal.WithLabelValues(opGet).Inc()
		return false, false
	}
	return true, true
}

// set reports whether the value reached the backend.
func (s *RedisStore) set(ctx context.Context, key string, v any, ttl time.Duration) bool {
	raw, err := msgpack.Marshal(v)
	if err != nil {
		s.logger.ErrorContext(ctx, "encode state value", "key", key, "error", err)
		return false
	}
	return s.do(ctx, opSet, key, func(ctx context.Context) error {
		return s.client.Set(ctx, key, raw, ttl).Err()
	})
}

// do runs fn against the backend under the op timeout and the breaker. It
// returns false when the result must come from the fallback instead.
func (s *RedisStore) do(ctx context.Context, op, key string, fn func(context.Context) error) bool {
	if !s.breaker.Allow() {
		fallbacksTotal.WithLabelValues(op).Inc()
		return false
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	opDurationMs.WithLabelValues(op).Observe(float64(time.Since(start).Microseconds()) / 1000.0)

	if err != nil {
		fallbacksTotal.WithLabelValues(op).Inc()
		_, change := s.breaker.RecordFailure()
		s.logger.WarnContext(ctx, "state backend unavailable, using local fallback",
			"op", op,
			"key", key,
			"error", err,
		)
		if change.Opened {
			circuitOpen.Set(1)
			s.logger.WarnContext(ctx, "state backend circuit opened", "breaker", s.breaker.Name())
		}
		return false
	}

	_, change := s.breaker.RecordSuccess()
	if change.Closed {
		circuitOpen.Set(0)
		s.logger.InfoContext(ctx, "state backend circuit closed", "breaker", s.breaker.Name())
	}
	return true
}

var _ state.Store = (*RedisStore)(nil)
