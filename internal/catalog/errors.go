package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidScriptName indicates a file in the scripts directory that
	// does not follow the {name}.up.sql / {name}.down.sql convention.
	ErrInvalidScriptName = errors.New("catalog: invalid script file name")

	// ErrUnpairedScript indicates an up script without a down counterpart
	// or vice versa.
	ErrUnpairedScript = errors.New("catalog: script is missing its up/down counterpart")

	// ErrEmptyScript indicates a script file with no SQL statements.
	ErrEmptyScript = errors.New("catalog: script file contains no SQL statements")
)

// ScanError wraps a filesystem failure during script discovery.
type ScanError struct {
	Path      string // File or directory being processed
	Operation string // What was being done: scan, read, parse
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	return fmt.Sprintf("catalog: %s %s: %v", e.Operation, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ScanError) Unwrap() error {
	return e.Err
}
