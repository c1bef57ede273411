package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/lifecycle"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/repository"
)

// StatusStore reads and writes single status values. Every method is one
// statement, so each call is atomic on its own.
type StatusStore struct {
	db  *DB
	now func() time.Time
}

var _ lifecycle.Store = (*StatusStore)(nil)

// NewStatusStore creates a new StatusStore
func NewStatusStore(db *DB) *StatusStore {
	return &StatusStore{db: db, now: time.Now}
}

func table(kind status.Kind) (name, key string, err error) {
	switch kind {
	case status.KindProject:
		return "projects", "number", nil
	case status.KindProposal:
		return "proposals", "id", nil
	default:
		return "", "", fmt.Errorf("%w: %q", status.ErrUnknownKind, kind)
	}
}

// ReadStatus returns the stored status of ref
func (s *StatusStore) ReadStatus(ctx context.Context, ref status.Ref) (status.Status, error) {
	name, key, err := table(ref.Kind)
	if err != nil {
		return "", err
	}

	var st status.Status
	err = s.db.QueryRowContext(ctx, `SELECT status FROM `+name+` WHERE `+key+` = ?`, ref.ID).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s: %w", ref, repository.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status of %s: %w", ref, err)
	}
	return st, nil
}

// WriteStatus stores a new status for ref
func (s *StatusStore) WriteStatus(ctx context.Context, ref status.Ref, st status.Status) error {
	if !status.Valid(ref.Kind, st) {
		return fmt.Errorf("%w: %s status %q", repository.ErrInvalidInput, ref.Kind, st)
	}
	name, key, err := table(ref.Kind)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE `+name+` SET status = ?, updated_at = ? WHERE `+key+` = ?`,
		st, s.now().UTC(), ref.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to write status of %s: %w", ref, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", ref, repository.ErrNotFound)
	}
	return nil
}

// ReadSiblingProposals returns every proposal of a project with its status
func (s *StatusStore) ReadSiblingProposals(ctx context.Context, projectNumber string) ([]impact.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status FROM proposals WHERE project_number = ? ORDER BY revision, id`, projectNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to read proposals of %s: %w", projectNumber, err)
	}
	defer rows.Close()

	var out []impact.Entity
	for rows.Next() {
		var id string
		var st status.Status
		if err := rows.Scan(&id, &st); err != nil {
			return nil, fmt.Errorf("failed to scan proposal status: %w", err)
		}
		out = append(out, impact.Entity{Ref: status.ProposalRef(id), Status: st})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating proposal rows: %w", err)
	}
	return out, nil
}

// ReadParent returns the project number a proposal belongs to
func (s *StatusStore) ReadParent(ctx context.Context, proposalID string) (string, error) {
	var number string
	err := s.db.QueryRowContext(ctx, `SELECT project_number FROM proposals WHERE id = ?`, proposalID).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("proposal %s: %w", proposalID, repository.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read parent of %s: %w", proposalID, err)
	}
	return number, nil
}

// Records reads every project and proposal for reconciliation.
type Records struct {
	projects  *ProjectRepository
	proposals *ProposalRepository
}

// NewRecords creates a reconciliation reader over db
func NewRecords(db *DB) *Records {
	return &Records{projects: NewProjectRepository(db), proposals: NewProposalRepository(db)}
}

// ListProjects returns every project record
func (r *Records) ListProjects(ctx context.Context) ([]project.Project, error) {
	return r.projects.List(ctx, project.ListOptions{})
}

// ListProposals returns every proposal record
func (r *Records) ListProposals(ctx context.Context) ([]proposal.Proposal, error) {
	return r.proposals.List(ctx)
}
