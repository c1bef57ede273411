package folder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ganot/feeflow/internal/faults"
)

var (
	// ErrInvalidNumber indicates a malformed canonical project number.
	ErrInvalidNumber = errors.New("invalid canonical number")
	// ErrNotFound indicates no canonical root holds a folder for the number.
	ErrNotFound = fmt.Errorf("project folder %w", faults.ErrNotFound)
	// ErrAmbiguousMatch indicates folders for the number exist in more than one place.
	ErrAmbiguousMatch = fmt.Errorf("%w: project folder found in more than one location", faults.ErrAmbiguousState)
	// ErrPathNotFound indicates the source or destination of a move is missing.
	ErrPathNotFound = fmt.Errorf("path %w", faults.ErrNotFound)
	// ErrPermissionDenied indicates the filesystem refused the move.
	ErrPermissionDenied = fmt.Errorf("folder move: %w", faults.ErrPermission)
	// ErrDestinationConflict indicates the destination already holds a same-named folder.
	ErrDestinationConflict = fmt.Errorf("%w: destination already contains the folder", faults.ErrConflict)
	// ErrPartialIO indicates a cross-device move stopped between copy and delete.
	ErrPartialIO = fmt.Errorf("%w: interrupted cross-device move", faults.ErrPartialApplication)
	// ErrUnknownRoot indicates a move target that is not a canonical root.
	ErrUnknownRoot = fmt.Errorf("%w: unknown canonical root", faults.ErrConfiguration)
	// ErrBasePath indicates an unusable base path.
	ErrBasePath = fmt.Errorf("%w: project base path", faults.ErrConfiguration)
)

// AmbiguousMatchError lists every location found for one number.
type AmbiguousMatchError struct {
	Number  string
	Matches []Location
}

func (e *AmbiguousMatchError) Error() string {
	paths := make([]string, 0, len(e.Matches))
	for _, m := range e.Matches {
		paths = append(paths, m.Path)
	}
	return fmt.Sprintf("%s: %v: %s", e.Number, ErrAmbiguousMatch, strings.Join(paths, ", "))
}

func (e *AmbiguousMatchError) Unwrap() error { return ErrAmbiguousMatch }
