package mocks

import (
	"context"

	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/stretchr/testify/mock"
)

// ProjectRepository is a mock for project.Repository.
type ProjectRepository struct {
	mock.Mock
}

func (m *ProjectRepository) Create(ctx context.Context, proj *project.Project) error {
	args := m.Called(ctx, proj)
	return args.Error(0)
}

func (m *ProjectRepository) Get(ctx context.Context, number string) (*project.Project, error) {
	args := m.Called(ctx, number)
	if proj, ok := args.Get(0).(*project.Project); ok {
		return proj, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) Exists(ctx context.Context, number string) (bool, error) {
	args := m.Called(ctx, number)
	return args.Bool(0), args.Error(1)
}

func (m *ProjectRepository) List(ctx context.Context, opts project.ListOptions) ([]project.Project, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]project.Project); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProjectRepository) MaxSequence(ctx context.Context, year, country int) (int, error) {
	args := m.Called(ctx, year, country)
	return args.Int(0), args.Error(1)
}

// ProposalRepository is a mock for proposal.Repository.
type ProposalRepository struct {
	mock.Mock
}

func (m *ProposalRepository) Create(ctx context.Context, p *proposal.Proposal) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ProposalRepository) Get(ctx context.Context, id string) (*proposal.Proposal, error) {
	args := m.Called(ctx, id)
	if p, ok := args.Get(0).(*proposal.Proposal); ok {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProposalRepository) ListByProject(ctx context.Context, projectNumber string) ([]proposal.Proposal, error) {
	args := m.Called(ctx, projectNumber)
	if list, ok := args.Get(0).([]proposal.Proposal); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *ProposalRepository) List(ctx context.Context) ([]proposal.Proposal, error) {
	args := m.Called(ctx)
	if list, ok := args.Get(0).([]proposal.Proposal); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// HistoryRepository is a mock for history.Repository.
type HistoryRepository struct {
	mock.Mock
}

func (m *HistoryRepository) Append(ctx context.Context, entry *history.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *HistoryRepository) List(ctx context.Context, opts history.ListOptions) ([]history.Entry, error) {
	args := m.Called(ctx, opts)
	if list, ok := args.Get(0).([]history.Entry); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

// StatusStore is a mock for lifecycle.Store.
type StatusStore struct {
	mock.Mock
}

func (m *StatusStore) ReadStatus(ctx context.Context, ref status.Ref) (status.Status, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).(status.Status), args.Error(1)
}

func (m *StatusStore) WriteStatus(ctx context.Context, ref status.Ref, s status.Status) error {
	args := m.Called(ctx, ref, s)
	return args.Error(0)
}

func (m *StatusStore) ReadSiblingProposals(ctx context.Context, projectNumber string) ([]impact.Entity, error) {
	args := m.Called(ctx, projectNumber)
	if list, ok := args.Get(0).([]impact.Entity); ok {
		return list, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *StatusStore) ReadParent(ctx context.Context, proposalID string) (string, error) {
	args := m.Called(ctx, proposalID)
	return args.String(0), args.Error(1)
}
