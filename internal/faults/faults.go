// Package faults holds the error taxonomy shared by the folder, lifecycle and
// reconcile packages. Component errors wrap one of the Err* kinds so callers can
// classify any failure with errors.Is.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration indicates a missing or unusable configuration value.
	ErrConfiguration = errors.New("configuration error")
	// ErrInvalidInput indicates a caller-supplied value that cannot be used.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates a folder or record that should exist does not.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousState indicates drift that cannot be resolved automatically.
	ErrAmbiguousState = errors.New("ambiguous state")
	// ErrPermission indicates the filesystem refused an operation.
	ErrPermission = errors.New("permission denied")
	// ErrConflict indicates the target of a write is not in the expected state.
	ErrConflict = errors.New("conflict")
	// ErrPartialApplication indicates some, but not all, planned mutations were committed.
	ErrPartialApplication = errors.New("partial application")
)

// Error attaches the canonical number and the failing sub-step to a failure.
type Error struct {
	Kind   error
	Number string
	Step   string
	Path   string
	Err    error
}

// New builds an Error of the given kind.
func New(kind error, number, step string, err error) *Error {
	return &Error{Kind: kind, Number: number, Step: step, Err: err}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	parts := make([]string, 0, 4)
	if e.Step != "" {
		parts = append(parts, e.Step)
	}
	if e.Number != "" {
		parts = append(parts, e.Number)
	}
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	msg := strings.Join(parts, ": ")
	if e.Path != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Path)
	}
	if e.Err != nil && (e.Kind == nil || e.Err.Error() != e.Kind.Error()) {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the taxonomy kind and the underlying cause.
func (e *Error) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Classify returns the taxonomy kind err belongs to, or nil.
func Classify(err error) error {
	for _, kind := range []error{
		ErrConfiguration,
		ErrInvalidInput,
		ErrNotFound,
		ErrAmbiguousState,
		ErrPermission,
		ErrConflict,
		ErrPartialApplication,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
