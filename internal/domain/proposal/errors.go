package proposal

import (
	"errors"
	"fmt"

	"github.com/ganot/feeflow/internal/faults"
)

var (
	// ErrProposalNotFound indicates the proposal doesn't exist.
	ErrProposalNotFound = fmt.Errorf("proposal %w", faults.ErrNotFound)
	// ErrInvalidInput indicates invalid proposal input.
	ErrInvalidInput = errors.New("invalid proposal input")
	// ErrParentNotFound indicates the parent project doesn't exist.
	ErrParentNotFound = fmt.Errorf("parent project %w", faults.ErrNotFound)
)
