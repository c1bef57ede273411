package project

import (
	"time"

	"github.com/ganot/feeflow/internal/domain/status"
)

// Project is a persisted project record. Its folder location is never
// stored; it is derived from Status through the folder map and resolver.
type Project struct {
	Number    string        `json:"number"`
	Year      int           `json:"year"`
	Country   int           `json:"country"`
	Seq       int           `json:"seq"`
	Name      string        `json:"name"`
	ShortName string        `json:"short_name"`
	Status    status.Status `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Ref returns the status reference of the project.
func (p Project) Ref() status.Ref { return status.ProjectRef(p.Number) }

// ListOptions filters project listings.
type ListOptions struct {
	Statuses []status.Status
	Year     *int
	Limit    int
	Offset   int
}
