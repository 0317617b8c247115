package store

import "errors"

// ErrNotFound is returned when no text has the requested id.
var ErrNotFound = errors.New("text not found")

// ErrIDSpaceExhausted is returned when the largest stored id cannot be incremented.
var ErrIDSpaceExhausted = errors.New("text id space exhausted")

// ErrConflict is returned when an optimistic transaction kept losing to concurrent writers.
var ErrConflict = errors.New("concurrent modification, retries exhausted")
