package proposal

import "context"

// Repository provides persistence for proposals.
type Repository interface {
	Create(ctx context.Context, p *Proposal) error
	Get(ctx context.Context, id string) (*Proposal, error)
	ListByProject(ctx context.Context, projectNumber string) ([]Proposal, error)
	List(ctx context.Context) ([]Proposal, error)
}

// ProjectChecker confirms a parent project exists.
type ProjectChecker interface {
	Exists(ctx context.Context, number string) (bool, error)
}
