package project

import "context"

// Repository provides persistence for projects.
type Repository interface {
	Create(ctx context.Context, proj *Project) error
	Get(ctx context.Context, number string) (*Project, error)
	List(ctx context.Context, opts ListOptions) ([]Project, error)
	// MaxSequence returns the highest sequence used for year and country, or 0.
	MaxSequence(ctx context.Context, year, country int) (int, error)
}
