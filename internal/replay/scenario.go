// Package replay runs recorded event sequences through a fresh validator and
// compares the decisions with expected codes.
package replay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"travelguard/internal/validator"
	"travelguard/pkg/platform/sentinel"
)

// ErrMismatch is returned when decisions differ from a scenario's expectations.
var ErrMismatch = errors.New("decisions do not match expectations")

type Event struct {
	EntityID  string  `yaml:"entity_id"`
	Timestamp float64 `yaml:"timestamp"`
	Zone      string  `yaml:"zone"`
}

// Scenario is an ordered event sequence with optional expected codes, one per
// event.
type Scenario struct {
	Name string `yaml:"name"`
	// Debounce overrides the default debounce threshold when set.
	Debounce time.Duration    `yaml:"debounce"`
	Events   []Event          `yaml:"events"`
	Expect   []validator.Code `yaml:"expect"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return Scenario{}, fmt.Errorf("open scenario: %w", err)
	}
	defer f.Close()
	return ParseScenario(f)
}

func ParseScenario(r io.Reader) (Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return Scenario{}, fmt.Errorf("decode scenario: %v: %w", err, sentinel.ErrInvalidInput)
	}
	if len(sc.Events) == 0 {
		return Scenario{}, fmt.Errorf("scenario has no events: %w", sentinel.ErrInvalidInput)
	}
	if len(sc.Expect) > 0 && len(sc.Expect) != len(sc.Events) {
		return Scenario{}, fmt.Errorf("scenario has %d events but %d expectations: %w",
			len(sc.Events), len(sc.Expect), sentinel.ErrInvalidInput)
	}
	return sc, nil
}

// Validator decides one event.
type Validator interface {
	Validate(ctx context.Context, ev validator.LocationEvent) validator.Decision
}

// Run feeds the events in order and writes one line per decision to w.
// Decisions are returned even when expectations fail.
func Run(ctx context.Context, sc Scenario, v Validator, w io.Writer) ([]validator.Decision, error) {
	decisions := make([]validator.Decision, 0, len(sc.Events))
	mismatches := 0
	for i, e := range sc.Events {
		d := v.Validate(ctx, validator.LocationEvent{
			EntityID:  e.EntityID,
			Timestamp: e.Timestamp,
			Zone:      e.Zone,
		})
		decisions = append(decisions, d)

		mark := ""
		if len(sc.Expect) > 0 && sc.Expect[i] != d.Code {
			mark = fmt.Sprintf("  (expected %s)", sc.Expect[i])
			mismatches++
		}
		fmt.Fprintf(w, "%-10s t=%8.2f %-12s %-28s %s%s\n",
			d.EntityID, d.Timestamp, d.Zone, d.Code, d.Detail, mark)
	}
	if mismatches > 0 {
		return decisions, fmt.Errorf("%d of %d: %w", mismatches, len(sc.Events), ErrMismatch)
	}
	return decisions, nil
}
