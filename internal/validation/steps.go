// Package validation checks pipelines at the API and CLI boundary. ValidateSteps
// rejects step configurations the engine could not decode, and Checklist
// produces the advisory report shown before a pipeline is run.
package validation

import (
	"errors"
	"fmt"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/connectors"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/errhandling"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/internal/transform"
	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

// StepError describes one invalid step.
type StepError struct {
	Index  int
	StepID string
	Err    error
}

func (e *StepError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("steps[%d] (%s): %v", e.Index, e.StepID, e.Err)
	}
	return fmt.Sprintf("steps[%d]: %v", e.Index, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// ValidateStep decodes the step configuration into its typed form.
// Endpoints whose connector has no typed configuration are accepted as is.
func ValidateStep(step connector.Step) error {
	switch step.Type {
	case connector.StepSource:
		if kind := connectors.ResolveKind(step); kind == connectors.KindGoogleSheets {
			_, err := connectors.DecodeSourceConfig(kind, step.Config)
			return err
		}
	case connector.StepDestination:
		if kind := connectors.ResolveKind(step); kind == connectors.KindGoogleSheets {
			_, err := connectors.DecodeDestinationConfig(kind, step.Config)
			return err
		}
	case connector.StepTransform:
		if len(step.Config) > 0 {
			_, err := transform.DecodeConfig(step.Config)
			return err
		}
	default:
		return fmt.Errorf("unknown step type %q", step.Type)
	}
	return nil
}

// ValidateSteps validates every step and returns a validation error listing
// all failures, or nil.
func ValidateSteps(steps []connector.Step) error {
	var errs []error
	for i, s := range steps {
		if err := ValidateStep(s); err != nil {
			errs = append(errs, &StepError{Index: i, StepID: s.ID, Err: err})
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return errhandling.Validation("validation.steps", "invalid step configuration", errors.Join(errs...))
}
