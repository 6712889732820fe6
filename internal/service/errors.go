package service

import "errors"

// Failure kinds surfaced by the service layer. Handlers map these onto the
// HTTP error taxonomy.
var (
	ErrNotFound          = errors.New("not_found")
	ErrForbidden         = errors.New("forbidden")
	ErrInvalid           = errors.New("invalid")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrTooLarge          = errors.New("too_large")
	ErrExists            = errors.New("exists")
)
