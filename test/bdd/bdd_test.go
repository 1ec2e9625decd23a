package bdd

import (
	"testing"

	"github.com/cucumber/godog"

	"github.com/andrescamacho/marketscan-go/test/bdd/steps"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features/domain", "features/application", "features/adapters"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	// Fee and scanner steps share the fee schedule step, so they live in one context
	steps.InitializeArbitrageScenario(sc)
	steps.InitializeResilientClientScenario(sc)
}
