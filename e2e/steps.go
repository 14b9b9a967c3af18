package e2e

import (
	"github.com/cucumber/godog"

	"travelguard/e2e/steps/common"
	"travelguard/e2e/steps/validation"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	common.RegisterSteps(ctx, tc)
	validation.RegisterSteps(ctx, tc)
}
