// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"travelguard/pkg/platform/sentinel"
	tgstrings "travelguard/pkg/platform/strings"
)

// Config is the full process configuration.
type Config struct {
	Server     Server
	Validation Validation
	State      State
	Redis      RedisConfig
	Kafka      KafkaConfig
	Audit      Audit
	Log        Log
	// TopologyFile is a YAML topology; empty selects the built-in campus.
	TopologyFile string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr           string
	RequestTimeout time.Duration
}

// Validation holds the decision thresholds.
type Validation struct {
	ConflictWindow    time.Duration
	MaxVelocity       float64
	DebounceThreshold time.Duration
	StateTTL          time.Duration
	ViolationTTL      time.Duration
}

type State struct {
	Backend       string
	SweepInterval time.Duration
}

// RedisConfig tunes the shared state backend client.
type RedisConfig struct {
	URL          string
	OpTimeout    time.Duration
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers        []string
	EventsTopic    string
	DecisionsTopic string
	AlertsTopic    string
	Group          string
}

// Enabled reports whether brokers were configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

type Audit struct {
	// Buffer is the async publish queue size; 0 publishes synchronously.
	Buffer int
}

type Log struct {
	Level  string
	Format string
}

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// FromEnv builds the configuration from environment variables so main stays lean.
func FromEnv() (Config, error) {
	return Load(os.Getenv)
}

// Load builds the configuration from getenv. Every invalid variable is
// reported, each wrapped with sentinel.ErrInvalidConfig.
func Load(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Server: Server{
			Addr:           p.str("TRAVELGUARD_ADDR", ":8080"),
			RequestTimeout: p.duration("REQUEST_TIMEOUT", 2*time.Second),
		},
		Validation: Validation{
			ConflictWindow:    p.seconds("CONFLICT_WINDOW_SECONDS", 500*time.Millisecond),
			MaxVelocity:       p.float("MAX_PLAUSIBLE_VELOCITY_MPS", 5.0),
			DebounceThreshold: p.seconds("DEBOUNCE_THRESHOLD_SECONDS", 30*time.Second),
			StateTTL:          p.seconds("STATE_TTL_SECONDS", 1200*time.Second),
			ViolationTTL:      p.seconds("VIOLATION_TTL_SECONDS", 60*time.Second),
		},
		State: State{
			Backend:       strings.ToLower(p.str("STATE_BACKEND", BackendMemory)),
			SweepInterval: p.duration("SWEEP_INTERVAL", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:          p.str("REDIS_URL", ""),
			OpTimeout:    p.duration("REDIS_OP_TIMEOUT", 50*time.Millisecond),
			PoolSize:     p.int("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.int("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 2*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 50*time.Millisecond),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 50*time.Millisecond),
		},
		Kafka: KafkaConfig{
			Brokers:        tgstrings.SplitList(p.str("KAFKA_BROKERS", ""), ","),
			EventsTopic:    p.str("KAFKA_EVENTS_TOPIC", "location_events"),
			DecisionsTopic: p.str("KAFKA_DECISIONS_TOPIC", "decisions"),
			AlertsTopic:    p.str("KAFKA_ALERTS_TOPIC", "alerts"),
			Group:          p.str("KAFKA_GROUP", "travelguard"),
		},
		Audit: Audit{
			Buffer: p.int("AUDIT_BUFFER", 1024),
		},
		Log: Log{
			Level:  strings.ToLower(p.str("LOG_LEVEL", "info")),
			Format: strings.ToLower(p.str("LOG_FORMAT", "json")),
		},
		TopologyFile: p.str("TOPOLOGY_FILE", ""),
	}

	switch cfg.State.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Redis.URL == "" {
			p.fail("REDIS_URL", "required when STATE_BACKEND=redis")
		}
	default:
		p.fail("STATE_BACKEND", fmt.Sprintf("unknown backend %q", cfg.State.Backend))
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		p.fail("LOG_FORMAT", fmt.Sprintf("must be json or text, got %q", cfg.Log.Format))
	}
	if cfg.Audit.Buffer < 0 {
		p.fail("AUDIT_BUFFER", "must not be negative")
	}
	if cfg.Redis.PoolSize <= 0 {
		p.fail("REDIS_POOL_SIZE", "must be positive")
	}

	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(name, reason string) {
	p.errs = append(p.errs, fmt.Errorf("%s: %s: %w", name, reason, sentinel.ErrInvalidConfig))
}

func (p *parser) str(name, def string) string {
	if v := strings.TrimSpace(p.getenv(name)); v != "" {
		return v
	}
	return def
}

func (p *parser) int(name string, def int) int {
	raw := strings.TrimSpace(p.getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(name, fmt.Sprintf("not an integer: %q", raw))
		return def
	}
	return n
}

func (p *parser) float(name string, def float64) float64 {
	raw := strings.TrimSpace(p.getenv(name))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.fail(name, fmt.Sprintf("not a finite number: %q", raw))
		return def
	}
	return f
}

// seconds reads a possibly fractional number of seconds.
func (p *parser) seconds(name string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(name))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		p.fail(name, fmt.Sprintf("not a non-negative number of seconds: %q", raw))
		return def
	}
	return time.Duration(f * float64(time.Second))
}

func (p *parser) duration(name string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(p.getenv(name))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		p.fail(name, fmt.Sprintf("not a non-negative duration: %q", raw))
		return def
	}
	return d
}
