package handler

import "travelguard/internal/validator"

// BatchRequest is the body of POST /v1/events/validate/batch.
type BatchRequest struct {
	Events []validator.EventPayload `json:"events"`
}

type BatchResponse struct {
	Decisions []validator.Decision `json:"decisions"`
}

// MaxBatchSize bounds one batch request.
const MaxBatchSize = 1000
