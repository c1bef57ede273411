package status

import "errors"

var (
	// ErrUnknownStatus indicates a status outside the registered set.
	ErrUnknownStatus = errors.New("unknown status")
	// ErrUnknownKind indicates an entity kind other than project or proposal.
	ErrUnknownKind = errors.New("unknown entity kind")
	// ErrUnknownFolder indicates a folder segment that is not a canonical root.
	ErrUnknownFolder = errors.New("unknown canonical folder")
	// ErrInvalidMapping indicates a folder map that violates its invariants.
	ErrInvalidMapping = errors.New("invalid status folder mapping")
)
