package pipeline

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidStep marks a step whose parameters are missing or malformed.
	ErrInvalidStep = errors.New("invalid step")
	// ErrMissingDataSet marks a step that needs a dataset the model does not hold.
	ErrMissingDataSet = errors.New("dataset not found")
	ErrModelMustBeSet = errors.New("model must be set")
)

// StepError identifies the step that stopped a run.
type StepError struct {
	Index     int
	Operation string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Operation, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// invalidStep builds a configuration error wrapping ErrInvalidStep.
func invalidStep(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidStep, format, args...)
}
