package migrate

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned when a run is requested while another
	// run is in progress in the same process.
	ErrAlreadyRunning = errors.New("migrate: a migration run is already in progress")

	// ErrInvalidTarget is returned when a provided target is not a well
	// formed migration identifier.
	ErrInvalidTarget = errors.New("migrate: invalid target identifier")

	// ErrInvalidDirection is returned for directions other than Forward
	// and Backward.
	ErrInvalidDirection = errors.New("migrate: invalid direction")

	// ErrScriptNotFound is returned by catalogs when an identifier does
	// not resolve to a script.
	ErrScriptNotFound = errors.New("migrate: script not found")
)

// PlanError reports a failure while resolving which scripts must run.
// No scripts have executed when a PlanError surfaces.
type PlanError struct {
	Direction Direction
	Target    string
	Err       error
}

// Error implements the error interface.
func (e *PlanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("resolve %s plan to %q: %v", e.Direction, e.Target, e.Err)
	}
	return fmt.Sprintf("resolve %s plan: %v", e.Direction, e.Err)
}

// Unwrap returns the underlying error.
func (e *PlanError) Unwrap() error {
	return e.Err
}

// StepError reports a failure while executing a single migration step or
// persisting its ledger update. Steps after the failing one did not run.
type StepError struct {
	Name      string    // Migration identifier of the failing step
	Direction Direction // Direction the step ran in
	Operation string    // What failed: load, entry point, ledger update
	Err       error     // Underlying error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("migration %s (%s): %s: %v", e.Name, e.Direction, e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Is matches the wrapped error chain.
func (e *StepError) Is(target error) bool {
	return errors.Is(e.Err, target)
}
