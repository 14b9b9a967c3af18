package audit

import (
	"context"

	"travelguard/internal/validator"
)

// Worker drains queued decisions into a delivery function until the inbox is
// closed. The request context is gone by the time a queued decision is
// delivered, so delivery runs under a background context.
type Worker struct {
	deliver func(context.Context, validator.Decision)
	inbox   <-chan validator.Decision
}

func NewWorker(deliver func(context.Context, validator.Decision), inbox <-chan validator.Decision) *Worker {
	return &Worker{deliver: deliver, inbox: inbox}
}

func (w *Worker) Run() {
	ctx := context.Background()
	for d := range w.inbox {
		w.deliver(ctx, d)
	}
}
