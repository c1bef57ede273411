package proposal

import (
	"time"

	"github.com/ganot/feeflow/internal/domain/status"
)

// Proposal is a fee proposal scoped to exactly one project.
type Proposal struct {
	ID            string        `json:"id"`
	ProjectNumber string        `json:"project_number"`
	Title         string        `json:"title"`
	Revision      int           `json:"revision"`
	Status        status.Status `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Ref returns the status reference of the proposal.
func (p Proposal) Ref() status.Ref { return status.ProposalRef(p.ID) }
