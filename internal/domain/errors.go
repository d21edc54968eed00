package domain

import "errors"

// ErrNotFound is returned by storage backends when a key has no entry.
var ErrNotFound = errors.New("not found")
