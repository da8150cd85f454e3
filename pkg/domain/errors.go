package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration is returned when a tree definition or an option set
	// cannot be compiled. It signals a programming error in application setup.
	ErrConfiguration = errors.New("invalid mode tree configuration")

	// ErrInvalidPath is returned when a macro or sub handle is built from a
	// partial path that matches no mode.
	ErrInvalidPath = errors.New("invalid partial path")

	// ErrInvalidTransition is returned by Next when the current mode does not
	// match the handle or when the rewrite would not form a valid mode.
	ErrInvalidTransition = errors.New("invalid mode transition")

	// ErrUnknownMode is returned when a string crossing a boundary (user
	// input, persisted state) does not name a leaf of the tree.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")

	// ErrNothingToUndo is returned when the undo stack of a session is empty.
	ErrNothingToUndo = errors.New("nothing to undo")

	// ErrNothingToRedo is returned when the redo stack of a session is empty.
	ErrNothingToRedo = errors.New("nothing to redo")
)

// ConfigurationError describes a malformed definition or option reference.
type ConfigurationError struct {
	Path   string // Node path where the problem was found ("" is the root)
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration: %s", e.Reason)
	}
	return fmt.Sprintf("configuration: %q: %s", e.Path, e.Reason)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// PathKind tells which end of a mode a partial path is anchored to.
type PathKind string

const (
	MacroPath PathKind = "macro"
	SubPath   PathKind = "sub"
)

// InvalidPathError reports a partial path that matches no mode.
type InvalidPathError struct {
	Kind PathKind
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("%s path %q matches no mode", e.Kind, e.Path)
}

func (e *InvalidPathError) Is(target error) bool {
	return target == ErrInvalidPath
}

// InvalidTransitionError reports a rejected Next call.
type InvalidTransitionError struct {
	Kind        PathKind
	Mode        Mode
	Replacement string
	Reason      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s transition of %q to %q: %s", e.Kind, e.Mode, e.Replacement, e.Reason)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// UnknownModeError carries the rejected string.
type UnknownModeError struct {
	Value string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown mode %q", e.Value)
}

func (e *UnknownModeError) Is(target error) bool {
	return target == ErrUnknownMode
}

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Key    string // Field name
	Reason string // Human-readable reason for failure
	Value  any    // The value that failed validation
}

func (e *ValidationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("field %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("field %q: %s (got %v)", e.Key, e.Reason, e.Value)
}

// AggregateError represents multiple failures found in one pass.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Join returns nil for no errors, the error itself for one, and an
// AggregateError otherwise.
func Join(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &AggregateError{Errors: errs}
	}
}

// Errors returns all errors if err is an AggregateError, or err alone.
func Errors(err error) []error {
	if err == nil {
		return nil
	}
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return []error{err}
}
