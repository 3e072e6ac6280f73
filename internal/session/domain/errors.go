package domain

import (
	"github.com/allisson/pseudonymizer/internal/errors"
)

var (
	// ErrSessionNotFound indicates the session does not exist or was already purged.
	ErrSessionNotFound = errors.Wrap(errors.ErrNotFound, "session not found")

	// ErrSessionExpired indicates the session exists but is past its expiry or inactive.
	ErrSessionExpired = errors.Wrap(errors.ErrNotFound, "session expired")

	// ErrSessionForbidden indicates the session belongs to a different caller.
	ErrSessionForbidden = errors.Wrap(errors.ErrForbidden, "session belongs to another caller")

	ErrInvalidPurpose = errors.Wrap(errors.ErrInvalidInput, "invalid session purpose")
	ErrInvalidTTL     = errors.Wrap(errors.ErrInvalidInput, "invalid session ttl")
)
