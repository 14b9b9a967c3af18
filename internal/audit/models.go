// Package audit forwards validation decisions to downstream collaborators:
// every decision goes to the audit ledger sink, confirmed violations also go
// to the alert sink.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"travelguard/internal/validator"
)

//go:generate mockgen -source=models.go -destination=mocks/mocks.go -package=mocks Sink

// Category routes a record to its collaborator.
type Category string

const (
	// CategoryDecision covers every decision; the ledger keeps them all.
	CategoryDecision Category = "decision"
	// CategoryAlert covers CONFIRMED_VIOLATION only.
	CategoryAlert Category = "alert"
)

// Record is one published decision. Transport-agnostic so sinks can fan out.
type Record struct {
	ID         uuid.UUID          `json:"id"`
	Category   Category           `json:"category"`
	RecordedAt time.Time          `json:"recorded_at"`
	Decision   validator.Decision `json:"decision"`
}

// Sink accepts records for one collaborator.
type Sink interface {
	Publish(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Publish(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

func newRecord(cat Category, d validator.Decision, now time.Time) Record {
	return Record{
		ID:         uuid.New(),
		Category:   cat,
		RecordedAt: now,
		Decision:   d,
	}
}
