package history

import "github.com/ganot/feeflow/internal/domain/status"

// ListOptions provides filtering options for listing history.
type ListOptions struct {
	Ref         *status.Ref
	OperationID string
	Limit       int
	Offset      int
}
