package reconcile

import (
	"errors"
	"fmt"

	"github.com/ganot/feeflow/internal/faults"
)

var (
	// ErrScanAborted indicates an I/O or store failure that stopped the scan.
	ErrScanAborted = errors.New("reconciliation scan aborted")
	// ErrInvalidPattern indicates an ignore glob that does not compile.
	ErrInvalidPattern = fmt.Errorf("%w: invalid ignore pattern", faults.ErrConfiguration)
	// ErrNoReport indicates no scan has completed yet.
	ErrNoReport = fmt.Errorf("reconciliation report %w", faults.ErrNotFound)
)
