package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/repository"
)

// ProposalRepository implements proposal.Repository for SQLite
type ProposalRepository struct {
	db *DB
}

var _ proposal.Repository = (*ProposalRepository)(nil)

// NewProposalRepository creates a new ProposalRepository
func NewProposalRepository(db *DB) *ProposalRepository {
	return &ProposalRepository{db: db}
}

const proposalColumns = `id, project_number, title, revision, status, created_at, updated_at`

// Create inserts a new proposal
func (r *ProposalRepository) Create(ctx context.Context, p *proposal.Proposal) error {
	query := `
		INSERT INTO proposals (` + proposalColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID,
		p.ProjectNumber,
		p.Title,
		p.Revision,
		p.Status,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if terr := translateWriteError(err, "proposal "+p.ID); terr != nil {
		return terr
	}
	if err != nil {
		return fmt.Errorf("failed to create proposal: %w", err)
	}
	return nil
}

// Get retrieves a proposal by ID
func (r *ProposalRepository) Get(ctx context.Context, id string) (*proposal.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE id = ?`

	p, err := scanProposal(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get proposal: %w", err)
	}
	return p, nil
}

// ListByProject returns the proposals of one project ordered by revision
func (r *ProposalRepository) ListByProject(ctx context.Context, projectNumber string) ([]proposal.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE project_number = ? ORDER BY revision, id`
	return r.query(ctx, query, projectNumber)
}

// List returns every proposal
func (r *ProposalRepository) List(ctx context.Context) ([]proposal.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals ORDER BY project_number, revision, id`
	return r.query(ctx, query)
}

func (r *ProposalRepository) query(ctx context.Context, query string, args ...interface{}) ([]proposal.Proposal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list proposals: %w", err)
	}
	defer rows.Close()

	var out []proposal.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan proposal: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposal rows: %w", err)
	}
	return out, nil
}

func scanProposal(row rowScanner) (*proposal.Proposal, error) {
	var p proposal.Proposal
	err := row.Scan(
		&p.ID,
		&p.ProjectNumber,
		&p.Title,
		&p.Revision,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
