package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/repository"
	"github.com/stretchr/testify/require"
)

func seedProposal(t *testing.T, repo *ProposalRepository, id, number string, rev int, st status.Status) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), &proposal.Proposal{
		ID: id, ProjectNumber: number, Title: "Fee " + id, Revision: rev, Status: st,
		CreatedAt: now, UpdatedAt: now,
	}))
}

func TestStatusStore_ReadWrite(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewProjectRepository(db).Create(ctx, newProject("25-97101", 25, 971, 1, status.RFP)))
	proposals := NewProposalRepository(db)
	seedProposal(t, proposals, "p1", "25-97101", 1, status.Awarded)
	seedProposal(t, proposals, "p2", "25-97101", 2, status.Sent)
	seedProposal(t, proposals, "q1", "25-97102", 1, status.Sent)

	store := NewStatusStore(db)

	st, err := store.ReadStatus(ctx, status.ProjectRef("25-97101"))
	require.NoError(t, err)
	require.Equal(t, status.RFP, st)

	require.NoError(t, store.WriteStatus(ctx, status.ProjectRef("25-97101"), status.Active))
	st, err = store.ReadStatus(ctx, status.ProjectRef("25-97101"))
	require.NoError(t, err)
	require.Equal(t, status.Active, st)

	siblings, err := store.ReadSiblingProposals(ctx, "25-97101")
	require.NoError(t, err)
	require.Equal(t, []impact.Entity{
		{Ref: status.ProposalRef("p1"), Status: status.Awarded},
		{Ref: status.ProposalRef("p2"), Status: status.Sent},
	}, siblings)

	parent, err := store.ReadParent(ctx, "q1")
	require.NoError(t, err)
	require.Equal(t, "25-97102", parent)
}

func TestStatusStore_Errors(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	store := NewStatusStore(db)

	_, err := store.ReadStatus(ctx, status.ProjectRef("25-97101"))
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = store.WriteStatus(ctx, status.ProposalRef("nope"), status.Sent)
	require.ErrorIs(t, err, repository.ErrNotFound)

	err = store.WriteStatus(ctx, status.ProjectRef("25-97101"), status.Sent)
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	_, err = store.ReadParent(ctx, "nope")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestHistoryRepository_AppendOnly(t *testing.T) {
	db := NewTestDB(t)
	repo := NewHistoryRepository(db)
	ctx := context.Background()

	project := status.ProjectRef("25-97101")
	require.NoError(t, repo.Append(ctx, &history.Entry{
		ID: "h1", Ref: project, Old: status.RFP, New: status.Active, Origin: history.OriginDirect, OperationID: "op1",
	}))
	require.NoError(t, repo.Append(ctx, &history.Entry{
		ID: "h2", Ref: status.ProposalRef("p2"), Old: status.Sent, New: status.Awarded,
		Origin: history.OriginCascade, TriggeredBy: &project, OperationID: "op1",
	}))

	entries, err := repo.List(ctx, history.ListOptions{OperationID: "op1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "h2", entries[0].ID)
	require.Equal(t, project, *entries[0].TriggeredBy)
	require.Nil(t, entries[1].TriggeredBy)

	entries, err = repo.List(ctx, history.ListOptions{Ref: &project})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	_, err = db.Exec(`UPDATE status_history SET new_status = 'Lost'`)
	require.Error(t, err)
	_, err = db.Exec(`DELETE FROM status_history`)
	require.Error(t, err)
}

func TestRecords_ListsEverything(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, NewProjectRepository(db).Create(ctx, newProject("25-97101", 25, 971, 1, status.RFP)))
	seedProposal(t, NewProposalRepository(db), "orphan", "25-97199", 1, status.Sent)

	records := NewRecords(db)
	projects, err := records.ListProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 1)

	proposals, err := records.ListProposals(ctx)
	require.NoError(t, err)
	require.Len(t, proposals, 1)
	require.Equal(t, "25-97199", proposals[0].ProjectNumber)
}
