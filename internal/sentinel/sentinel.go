package sentinel

import "errors"

// Sentinel dependency errors. Stores and clients return these (optionally wrapped)
// so services can translate them into domain errors exactly once.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNoDestination = errors.New("no destination configured")
	ErrUnavailable   = errors.New("unavailable")
)
