package proposal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/repository"
	"github.com/google/uuid"
)

// Service creates and reads proposals.
type Service struct {
	repo     Repository
	projects ProjectChecker
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a new proposal service.
func NewService(repo Repository, projects ProjectChecker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, projects: projects, logger: logger, now: time.Now}
}

// CreateRequest defines proposal creation inputs.
type CreateRequest struct {
	ProjectNumber string
	Title         string
	Status        status.Status
}

// Create stores a proposal under an existing project. Revisions count up per
// project starting at 1.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Proposal, error) {
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		return nil, fmt.Errorf("%w: missing title", ErrInvalidInput)
	}
	if _, err := folder.ParseNumber(req.ProjectNumber); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if req.Status == "" {
		req.Status = status.Draft
	}
	if !status.Valid(status.KindProposal, req.Status) {
		return nil, fmt.Errorf("%w: status %q", ErrInvalidInput, req.Status)
	}

	ok, err := s.projects.Exists(ctx, req.ProjectNumber)
	if err != nil {
		return nil, fmt.Errorf("checking parent project: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrParentNotFound, req.ProjectNumber)
	}

	siblings, err := s.repo.ListByProject(ctx, req.ProjectNumber)
	if err != nil {
		return nil, fmt.Errorf("listing proposals: %w", err)
	}
	revision := 1
	for _, p := range siblings {
		if p.Revision >= revision {
			revision = p.Revision + 1
		}
	}

	now := s.now().UTC()
	p := &Proposal{
		ID:            uuid.NewString(),
		ProjectNumber: req.ProjectNumber,
		Title:         req.Title,
		Revision:      revision,
		Status:        req.Status,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("creating proposal: %w", err)
	}
	s.logger.Info("proposal created", "number", p.ProjectNumber, "proposal", p.ID, "status", p.Status)
	return p, nil
}

// Get fetches a proposal by ID.
func (s *Service) Get(ctx context.Context, id string) (*Proposal, error) {
	p, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProposalNotFound, id)
		}
		return nil, fmt.Errorf("getting proposal: %w", err)
	}
	return p, nil
}

// ListByProject returns the proposals of a project ordered by revision.
func (s *Service) ListByProject(ctx context.Context, projectNumber string) ([]Proposal, error) {
	return s.repo.ListByProject(ctx, projectNumber)
}
