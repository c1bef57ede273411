package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/repository"
	"github.com/stretchr/testify/require"
)

// NewTestDB opens a migrated in-memory store that is closed with the test.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err, "open test database")
	require.NoError(t, db.RunMigrations(), "migrate test database")

	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrations_CreatesSchema(t *testing.T) {
	db := NewTestDB(t)

	for _, table := range []string{"projects", "proposals", "status_history"} {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err, "query table %s", table)
		require.Equal(t, 1, count, "table %s not found", table)
	}

	require.NoError(t, db.RunMigrations(), "migrations must be re-runnable")
}

func TestTranslateWriteError(t *testing.T) {
	require.NoError(t, translateWriteError(nil, "x"))
	require.NoError(t, translateWriteError(errors.New("disk I/O error"), "x"))
	require.ErrorIs(t, translateWriteError(errors.New("UNIQUE constraint failed: projects.number"), "x"), repository.ErrConflict)
	require.ErrorIs(t, translateWriteError(errors.New("CHECK constraint failed: status IN"), "x"), repository.ErrInvalidInput)
}

func TestWrites_MapConstraintFailures(t *testing.T) {
	db := NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	proposals := NewProposalRepository(db)
	seedProposal(t, proposals, "p1", "25-97101", 1, status.Sent)

	err := proposals.Create(ctx, &proposal.Proposal{
		ID: "p1", ProjectNumber: "25-97101", Title: "again", Revision: 2, Status: status.Sent,
		CreatedAt: now, UpdatedAt: now,
	})
	require.ErrorIs(t, err, repository.ErrConflict)

	// RFP is a project status; the proposals table rejects it.
	err = proposals.Create(ctx, &proposal.Proposal{
		ID: "p2", ProjectNumber: "25-97101", Title: "bad", Revision: 2, Status: status.RFP,
		CreatedAt: now, UpdatedAt: now,
	})
	require.ErrorIs(t, err, repository.ErrInvalidInput)

	hist := NewHistoryRepository(db)
	entry := &history.Entry{ID: "h1", Ref: status.ProposalRef("p1"), Old: status.Draft, New: status.Sent, Origin: history.OriginDirect}
	require.NoError(t, hist.Append(ctx, entry))
	require.ErrorIs(t, hist.Append(ctx, &history.Entry{
		ID: "h1", Ref: status.ProposalRef("p1"), Old: status.Sent, New: status.Lost, Origin: history.OriginDirect,
	}), repository.ErrConflict)
}
