// Package state defines the per-entity records the validator keeps between
// observations and the Store contract both backends implement.
package state

// EntityState is the last accepted location of an entity.
type EntityState struct {
	Zone      string  `json:"zone" msgpack:"zone"`
	Timestamp float64 `json:"timestamp" msgpack:"timestamp"`
}

// ViolationRecord marks an implausible transition that has not yet persisted
// long enough to be confirmed.
type ViolationRecord struct {
	StartTime float64 `json:"start_time" msgpack:"start_time"`
}
