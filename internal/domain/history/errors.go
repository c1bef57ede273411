package history

import "errors"

// ErrInvalidInput indicates an entry that cannot be recorded.
var ErrInvalidInput = errors.New("invalid history entry")
