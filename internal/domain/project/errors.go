package project

import (
	"errors"
	"fmt"

	"github.com/ganot/feeflow/internal/faults"
)

var (
	// ErrProjectNotFound indicates the project doesn't exist.
	ErrProjectNotFound = fmt.Errorf("project %w", faults.ErrNotFound)
	// ErrInvalidInput indicates invalid project input.
	ErrInvalidInput = errors.New("invalid project input")
	// ErrAlreadyExists indicates the number is taken by a record or a folder.
	ErrAlreadyExists = fmt.Errorf("%w: project number already in use", faults.ErrConflict)
	// ErrSequenceExhausted indicates all 99 sequence numbers of a year and country are used.
	ErrSequenceExhausted = errors.New("project sequence exhausted")
)
