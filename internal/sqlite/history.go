package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/status"
)

// HistoryRepository implements history.Repository for SQLite
type HistoryRepository struct {
	db *DB
}

var _ history.Repository = (*HistoryRepository)(nil)

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append inserts a history entry. Entries are never updated or deleted.
func (r *HistoryRepository) Append(ctx context.Context, entry *history.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var triggeredKind, triggeredID sql.NullString
	if entry.TriggeredBy != nil {
		triggeredKind = sql.NullString{String: string(entry.TriggeredBy.Kind), Valid: true}
		triggeredID = sql.NullString{String: entry.TriggeredBy.ID, Valid: true}
	}

	query := `
		INSERT INTO status_history (
			id, seq, entity_kind, entity_id, old_status, new_status,
			origin, triggered_kind, triggered_id, operation_id, created_at
		) VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM status_history), ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Ref.Kind,
		entry.Ref.ID,
		entry.Old,
		entry.New,
		entry.Origin,
		triggeredKind,
		triggeredID,
		entry.OperationID,
		createdAt,
	)
	if terr := translateWriteError(err, "history entry "+entry.ID); terr != nil {
		return terr
	}
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	entry.CreatedAt = createdAt
	return nil
}

// List returns history entries matching the given filters, newest first
func (r *HistoryRepository) List(ctx context.Context, opts history.ListOptions) ([]history.Entry, error) {
	query := `
		SELECT
			id, entity_kind, entity_id, old_status, new_status,
			origin, triggered_kind, triggered_id, operation_id, created_at
		FROM status_history
	`

	var conditions []string
	var args []interface{}
	if opts.Ref != nil {
		conditions = append(conditions, "entity_kind = ? AND entity_id = ?")
		args = append(args, opts.Ref.Kind, opts.Ref.ID)
	}
	if opts.OperationID != "" {
		conditions = append(conditions, "operation_id = ?")
		args = append(args, opts.OperationID)
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY seq DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	var entries []history.Entry
	for rows.Next() {
		var e history.Entry
		var triggeredKind, triggeredID, operationID sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.Ref.Kind,
			&e.Ref.ID,
			&e.Old,
			&e.New,
			&e.Origin,
			&triggeredKind,
			&triggeredID,
			&operationID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		if triggeredKind.Valid && triggeredID.Valid {
			e.TriggeredBy = &status.Ref{Kind: status.Kind(triggeredKind.String), ID: triggeredID.String}
		}
		e.OperationID = operationID.String
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history rows: %w", err)
	}

	return entries, nil
}
