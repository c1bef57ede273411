package mcp

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/lifecycle"
	"github.com/ganot/feeflow/internal/domain/reconcile"
	"github.com/ganot/feeflow/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"operation expired", lifecycle.ErrOperationNotFound, "OPERATION_NOT_FOUND"},
		{"stale before conflict", fmt.Errorf("apply: %w", lifecycle.ErrStaleStatus), "STALE_STATUS"},
		{"invalid phase", lifecycle.ErrInvalidPhase, "INVALID_PHASE"},
		{"no report", reconcile.ErrNoReport, "NO_REPORT"},
		{"folder missing", folder.ErrNotFound, "NOT_FOUND"},
		{"duplicates", &folder.AmbiguousMatchError{Number: "25-97101"}, "AMBIGUOUS_STATE"},
		{"destination taken", folder.ErrDestinationConflict, "CONFLICT"},
		{"partial", folder.ErrPartialIO, "PARTIAL_APPLICATION"},
		{"bad number", fmt.Errorf("%w: 1-2", folder.ErrInvalidNumber), "INVALID_INPUT"},
		{"base path", folder.ErrBasePath, "CONFIGURATION"},
		{"bad number from locate", faults.New(faults.ErrInvalidInput, "hotel", "locate", folder.ErrInvalidNumber), "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mapped := MapError(tt.err)
			require.NotNil(t, mapped)
			assert.Equal(t, tt.code, mapped.Code)
			assert.ErrorIs(t, mapped, tt.err)
		})
	}
}

func TestMapErrorDetails(t *testing.T) {
	err := &faults.Error{Kind: faults.ErrPermission, Number: "25-97101", Step: "move_folder", Path: "/base/01 RFPs/25-97101", Err: errors.New("access denied")}

	mapped := MapError(err)
	require.NotNil(t, mapped)
	assert.Equal(t, "PERMISSION_DENIED", mapped.Code)
	assert.Equal(t, errorDetails{Number: "25-97101", Step: "move_folder", Path: "/base/01 RFPs/25-97101"}, mapped.Details)
}

func TestMapErrorUnknown(t *testing.T) {
	assert.Nil(t, MapError(nil))
	assert.Nil(t, MapError(errors.New("boom")))

	plain := errors.New("boom")
	assert.Same(t, plain, toolError(plain))
}
