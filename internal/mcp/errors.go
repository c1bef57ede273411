package mcp

import (
	"errors"
	"fmt"

	"github.com/ganot/feeflow/internal/domain/folder"
	"github.com/ganot/feeflow/internal/domain/history"
	"github.com/ganot/feeflow/internal/domain/impact"
	"github.com/ganot/feeflow/internal/domain/lifecycle"
	"github.com/ganot/feeflow/internal/domain/project"
	"github.com/ganot/feeflow/internal/domain/proposal"
	"github.com/ganot/feeflow/internal/domain/reconcile"
	"github.com/ganot/feeflow/internal/domain/status"
	"github.com/ganot/feeflow/internal/faults"
)

// APIError represents an MCP error response.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	Details      any    `json:"details,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
	err          error
}

func (e *APIError) Error() string {
	if e.RecoveryHint == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.RecoveryHint)
}

func (e *APIError) Unwrap() error { return e.err }

type errorDetails struct {
	Number string `json:"number,omitempty"`
	Step   string `json:"step,omitempty"`
	Path   string `json:"path,omitempty"`
}

type errorMapping struct {
	target error
	code   string
	hint   string
}

// Specific sentinels come before the taxonomy kinds they wrap.
var errorMappings = []errorMapping{
	{lifecycle.ErrOperationNotFound, "OPERATION_NOT_FOUND", "Operations expire an hour after their last change; preview the change again"},
	{lifecycle.ErrStaleStatus, "STALE_STATUS", "The status changed since analysis; preview the change again"},
	{lifecycle.ErrInvalidPhase, "INVALID_PHASE", "Check the operation phase with get_status_change"},
	{lifecycle.ErrNotCancellable, "NOT_CANCELLABLE", "The operation is applying; wait for it to finish"},
	{lifecycle.ErrBlocked, "BLOCKED", "A rule forbids this change; resolve the reason first"},
	{lifecycle.ErrInvalidSelection, "INVALID_SELECTION", "Choose only listed suggestions, at most one per target"},
	{impact.ErrNoChange, "NO_CHANGE", "The record already has this status"},
	{reconcile.ErrNoReport, "NO_REPORT", "Call run_reconciliation first"},
	{project.ErrAlreadyExists, "ALREADY_EXISTS", "Use next_project_sequence to find a free number"},
	{proposal.ErrParentNotFound, "PARENT_NOT_FOUND", "Create the project first"},
	{status.ErrUnknownStatus, "INVALID_INPUT", "See feeflow://docs/statuses"},
	{status.ErrUnknownKind, "INVALID_INPUT", "Kind is project or proposal"},
	{folder.ErrInvalidNumber, "INVALID_INPUT", "Project numbers look like 25-97101"},
	{impact.ErrInvalidInput, "INVALID_INPUT", ""},
	{project.ErrInvalidInput, "INVALID_INPUT", ""},
	{proposal.ErrInvalidInput, "INVALID_INPUT", ""},
	{history.ErrInvalidInput, "INVALID_INPUT", ""},
	{faults.ErrInvalidInput, "INVALID_INPUT", ""},
	{faults.ErrConfiguration, "CONFIGURATION", "Check FEEFLOW_BASE_PATH and the root names"},
	{faults.ErrAmbiguousState, "AMBIGUOUS_STATE", "Resolve the duplicate folders by hand, then retry"},
	{faults.ErrNotFound, "NOT_FOUND", "Check the number or id"},
	{faults.ErrPermission, "PERMISSION_DENIED", "Check filesystem permissions on the base path"},
	{faults.ErrConflict, "CONFLICT", "Inspect the destination, then retry"},
	{faults.ErrPartialApplication, "PARTIAL_APPLICATION", "Run run_reconciliation to see the resulting drift"},
}

// MapError maps domain errors to MCP error codes.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		out := &APIError{Code: m.code, Message: err.Error(), RecoveryHint: m.hint, err: err}
		var fe *faults.Error
		if errors.As(err, &fe) {
			out.Details = errorDetails{Number: fe.Number, Step: fe.Step, Path: fe.Path}
		}
		return out
	}
	return nil
}

// toolError returns the mapped error, or err itself when no mapping applies.
func toolError(err error) error {
	if mapped := MapError(err); mapped != nil {
		return mapped
	}
	return err
}
