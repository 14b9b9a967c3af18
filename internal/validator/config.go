package validator

import (
	"fmt"
	"math"
	"time"

	"travelguard/pkg/platform/sentinel"
)

// Config holds the decision thresholds.
type Config struct {
	// ConflictWindow: events closer than this to the stored state are simultaneous.
	ConflictWindow time.Duration
	// MaxVelocity in m/s; anything strictly faster is implausible.
	MaxVelocity float64
	// DebounceThreshold is how long an implausible claim must persist before
	// it is confirmed. Interactive deployments often lower it to a few seconds.
	DebounceThreshold time.Duration
	StateTTL          time.Duration
	ViolationTTL      time.Duration
}

const (
	DefaultConflictWindow    = 500 * time.Millisecond
	DefaultMaxVelocity       = 5.0 // sustained human running speed
	DefaultDebounceThreshold = 30 * time.Second
	DefaultStateTTL          = 1200 * time.Second
	DefaultViolationTTL      = 60 * time.Second
)

func DefaultConfig() Config {
	return Config{
		ConflictWindow:    DefaultConflictWindow,
		MaxVelocity:       DefaultMaxVelocity,
		DebounceThreshold: DefaultDebounceThreshold,
		StateTTL:          DefaultStateTTL,
		ViolationTTL:      DefaultViolationTTL,
	}
}

// Validate rejects thresholds the state machine cannot honor. A violation
// record that expires before the debounce threshold could never confirm.
func (c Config) Validate() error {
	switch {
	case c.ConflictWindow < 0:
		return fmt.Errorf("conflict window %s is negative: %w", c.ConflictWindow, sentinel.ErrInvalidConfig)
	case math.IsNaN(c.MaxVelocity) || math.IsInf(c.MaxVelocity, 0) || c.MaxVelocity <= 0:
		return fmt.Errorf("max velocity %v must be positive: %w", c.MaxVelocity, sentinel.ErrInvalidConfig)
	case c.DebounceThreshold <= 0:
		return fmt.Errorf("debounce threshold %s must be positive: %w", c.DebounceThreshold, sentinel.ErrInvalidConfig)
	case c.ConflictWindow >= c.DebounceThreshold:
		return fmt.Errorf("conflict window %s must be shorter than debounce threshold %s: %w",
			c.ConflictWindow, c.DebounceThreshold, sentinel.ErrInvalidConfig)
	case c.StateTTL <= 0:
		return fmt.Errorf("state ttl %s must be positive: %w", c.StateTTL, sentinel.ErrInvalidConfig)
	case c.ViolationTTL < c.DebounceThreshold:
		return fmt.Errorf("violation ttl %s shorter than debounce threshold %s: %w",
			c.ViolationTTL, c.DebounceThreshold, sentinel.ErrInvalidConfig)
	}
	return nil
}
