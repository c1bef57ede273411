package lifecycle

import (
	"errors"
	"fmt"

	"github.com/ganot/feeflow/internal/faults"
)

var (
	// ErrOperationNotFound indicates an unknown or expired operation ID.
	ErrOperationNotFound = fmt.Errorf("status operation %w", faults.ErrNotFound)
	// ErrInvalidPhase indicates a protocol step called out of order.
	ErrInvalidPhase = fmt.Errorf("%w: operation is not in the required phase", faults.ErrConflict)
	// ErrNotCancellable indicates a cancel after applying started.
	ErrNotCancellable = errors.New("operation can no longer be cancelled")
	// ErrBlocked indicates a prevent rule forbids the change.
	ErrBlocked = errors.New("status change blocked by rule")
	// ErrInvalidSelection indicates a confirmation naming unknown or clashing suggestions.
	ErrInvalidSelection = errors.New("invalid cascade selection")
	// ErrStaleStatus indicates the stored status changed after analysis.
	ErrStaleStatus = fmt.Errorf("%w: status changed since analysis", faults.ErrConflict)
)
