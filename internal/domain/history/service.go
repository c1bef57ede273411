package history

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/google/uuid"
)

// Service appends and lists status history.
type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new history service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// Record appends entry, filling ID and CreatedAt when missing.
func (s *Service) Record(ctx context.Context, entry *Entry) error {
	if entry == nil {
		return ErrInvalidInput
	}
	if err := validate(entry); err != nil {
		return err
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("recording history: %w", err)
	}
	s.logger.Debug("status history recorded",
		"ref", entry.Ref.String(), "old", entry.Old, "new", entry.New, "origin", entry.Origin)
	return nil
}

// List returns history entries, newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	return s.repo.List(ctx, opts)
}

func validate(e *Entry) error {
	if e.Ref.ID == "" {
		return fmt.Errorf("%w: missing entity reference", ErrInvalidInput)
	}
	if !status.Valid(e.Ref.Kind, e.Old) || !status.Valid(e.Ref.Kind, e.New) {
		return fmt.Errorf("%w: %s %q -> %q", ErrInvalidInput, e.Ref, e.Old, e.New)
	}
	switch e.Origin {
	case OriginDirect:
		if e.TriggeredBy != nil {
			return fmt.Errorf("%w: direct change with a trigger", ErrInvalidInput)
		}
	case OriginCascade:
		if e.TriggeredBy == nil {
			return fmt.Errorf("%w: cascade without a trigger", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: origin %q", ErrInvalidInput, e.Origin)
	}
	return nil
}
