package runtime

import (
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/connectors"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// LiveChecker reports whether a connector kind can really move data.
type LiveChecker interface {
	HasLive(kind connectors.Kind) bool
}

// SelectStrategy decides how a pipeline runs. Its endpoints are the first
// source step and the first destination step. When either endpoint resolves
// to a kind without a live adapter the run is simulated. Otherwise a present
// script artifact selects the external script, and the interpreter runs the
// steps in every other case.
func SelectStrategy(p connector.Pipeline, live LiveChecker, hasArtifacts bool) connector.Strategy {
	for _, t := range []connector.StepType{connector.StepSource, connector.StepDestination} {
		step := p.FirstStep(t)
		if step == nil {
			continue
		}
		if !live.HasLive(connectors.ResolveKind(*step)) {
			return connector.StrategySimulated
		}
	}
	if hasArtifacts {
		return connector.StrategyExternalScript
	}
	return connector.StrategyInterpreter
}
