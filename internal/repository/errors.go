package repository

import (
	"errors"
	"fmt"

	"github.com/ganot/feeflow/internal/faults"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = fmt.Errorf("record %w", faults.ErrNotFound)

	// ErrConflict is returned when a write collides with an existing record
	ErrConflict = fmt.Errorf("record %w", faults.ErrConflict)

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
)
