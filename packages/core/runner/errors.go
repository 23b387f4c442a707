package runner

import (
	"errors"
	"fmt"
)

var (
	// ErrCyclicDependency is returned when a definition is needed to
	// prepare its own request.
	ErrCyclicDependency = errors.New("cyclic dependency")
	// ErrUnknownName is returned for selector names that are not registered.
	ErrUnknownName = errors.New("name not found")
	// ErrIndexOutOfRange is returned for a selector index outside the
	// top-level definitions.
	ErrIndexOutOfRange = errors.New("index out of range")
	// ErrStopped is returned when stop-on-fail halts the run.
	ErrStopped = errors.New("stopped on first failure")
)

// FatalError aborts the whole run. Definition is the display name of the
// definition that was running, if any.
type FatalError struct {
	Definition string
	Err        error
}

func (e *FatalError) Error() string {
	if e.Definition == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Definition, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatal(d *Definition, err error) error {
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	name := ""
	if d != nil {
		name = d.DisplayName()
	}
	return &FatalError{Definition: name, Err: err}
}

// IsFatal reports whether err must abort the run rather than fail a single
// assertion.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
