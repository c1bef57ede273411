package impact

import "errors"

var (
	// ErrInvalidRule indicates a malformed transition rule.
	ErrInvalidRule = errors.New("invalid transition rule")
	// ErrInvalidInput indicates an analysis request that cannot be evaluated.
	ErrInvalidInput = errors.New("invalid impact analysis input")
	// ErrNoChange indicates the requested status equals the current one.
	ErrNoChange = errors.New("status unchanged")
)
