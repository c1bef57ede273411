package sqlite

import (
	"fmt"
	"strings"

	"github.com/ganot/feeflow/internal/repository"
)

// modernc reports constraint failures as plain text; match on the message.
const (
	uniqueFailed = "UNIQUE constraint failed"
	checkFailed  = "CHECK constraint failed"
)

// translateWriteError maps constraint failures on a write to repository
// sentinels. what names the row for the message.
func translateWriteError(err error, what string) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, uniqueFailed):
		return fmt.Errorf("%s: %w", what, repository.ErrConflict)
	case strings.Contains(msg, checkFailed):
		return fmt.Errorf("%s: %w: %v", what, repository.ErrInvalidInput, err)
	}
	return nil
}
