package validator

import "time"

// LocationEvent is one sensor observation. Timestamp is epoch seconds, taken
// as given; transports fill it from their clock when a sensor omits it.
type LocationEvent struct {
	EntityID   string   `json:"entity_id"`
	Timestamp  float64  `json:"timestamp"`
	Zone       string   `json:"zone"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Code classifies a decision.
type Code string

const (
	CodeFirstObservation          Code = "FIRST_OBSERVATION"
	CodeDuplicate                 Code = "DUPLICATE"
	CodeConflictResolvedIgnored   Code = "CONFLICT_RESOLVED_IGNORED"
	CodeValidTransition           Code = "VALID_TRANSITION"
	CodeWarningPotentialViolation Code = "WARNING_POTENTIAL_VIOLATION"
	CodeWarningPendingViolation   Code = "WARNING_PENDING_VIOLATION"
	CodeConfirmedViolation        Code = "CONFIRMED_VIOLATION"
	CodeInvalidFormat             Code = "INVALID_FORMAT"
)

// Codes lists every decision code.
var Codes = []Code{
	CodeFirstObservation,
	CodeDuplicate,
	CodeConflictResolvedIgnored,
	CodeValidTransition,
	CodeWarningPotentialViolation,
	CodeWarningPendingViolation,
	CodeConfirmedViolation,
	CodeInvalidFormat,
}

// Decision is the outcome of validating one event. Only CONFIRMED_VIOLATION
// is meant to reach operators.
type Decision struct {
	EntityID  string  `json:"entity_id"`
	Zone      string  `json:"zone"`
	Timestamp float64 `json:"timestamp"`
	Accepted  bool    `json:"accepted"`
	Code      Code    `json:"code"`
	Detail    string  `json:"detail"`
	// Velocity is the implied speed in m/s for sequential events, zero otherwise.
	Velocity float64 `json:"velocity_mps,omitempty"`
}

// IsAlert reports whether the decision should trigger alerting.
func (d Decision) IsAlert() bool {
	return d.Code == CodeConfirmedViolation
}

// EventPayload is the wire form of a LocationEvent shared by the transports.
// Timestamp is optional on the wire.
type EventPayload struct {
	EntityID   string   `json:"entity_id"`
	Timestamp  *float64 `json:"timestamp,omitempty"`
	Zone       string   `json:"zone"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Event converts the payload, stamping it with now when no timestamp was sent.
func (p EventPayload) Event(now time.Time) LocationEvent {
	ev := LocationEvent{
		EntityID:   p.EntityID,
		Zone:       p.Zone,
		Confidence: p.Confidence,
	}
	if p.Timestamp != nil {
		ev.Timestamp = *p.Timestamp
	} else {
		ev.Timestamp = float64(now.UnixNano()) / float64(time.Second)
	}
	return ev
}
