package validation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetResponseField(field string) (any, error)
	EntityID(name string) string
}

// RegisterSteps registers event validation step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &validationSteps{tc: tc}

	ctx.Step(`^entity "([^"]*)" reports zone "([^"]*)" at t=([0-9.]+)$`, steps.report)
	ctx.Step(`^the decision code should be "([^"]*)"$`, steps.codeShouldBe)
	ctx.Step(`^the decision should be (accepted|rejected)$`, steps.acceptedShouldBe)
}

type validationSteps struct {
	tc TestContext
}

func (s *validationSteps) report(_ context.Context, entity, zone, ts string) error {
	t, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/events/validate", map[string]any{
		"entity_id": s.tc.EntityID(entity),
		"zone":      zone,
		"timestamp": t,
	})
}

func (s *validationSteps) codeShouldBe(_ context.Context, want string) error {
	v, err := s.tc.GetResponseField("code")
	if err != nil {
		return err
	}
	if v != want {
		detail, _ := s.tc.GetResponseField("detail")
		return fmt.Errorf("expected code %s, got %v (%v)", want, v, detail)
	}
	return nil
}

func (s *validationSteps) acceptedShouldBe(_ context.Context, want string) error {
	v, err := s.tc.GetResponseField("accepted")
	if err != nil {
		return err
	}
	if accepted, _ := v.(bool); accepted != (want == "accepted") {
		return fmt.Errorf("expected decision to be %s, got accepted=%v", want, v)
	}
	return nil
}
