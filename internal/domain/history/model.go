package history

import (
	"time"

	"github.com/ganot/feeflow/internal/domain/status"
)

// Origin records why a status changed.
type Origin string

const (
	OriginDirect  Origin = "direct"
	OriginCascade Origin = "cascade"
)

// Entry is an immutable audit record of one status change.
type Entry struct {
	ID          string        `json:"id"`
	Ref         status.Ref    `json:"ref"`
	Old         status.Status `json:"old"`
	New         status.Status `json:"new"`
	Origin      Origin        `json:"origin"`
	TriggeredBy *status.Ref   `json:"triggered_by,omitempty"`
	OperationID string        `json:"operation_id,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}
