package domain

import (
	"github.com/allisson/pseudonymizer/internal/database"
	"github.com/allisson/pseudonymizer/internal/errors"
)

var (
	// ErrMappingNotFound indicates no mapping exists for the value or pseudonym.
	ErrMappingNotFound = errors.Wrap(errors.ErrNotFound, "mapping not found")

	// ErrPseudonymCollision indicates a freshly generated pseudonym already exists. The whole
	// call is retried with new tokens.
	ErrPseudonymCollision = errors.Wrap(errors.Join(errors.ErrConflict, database.ErrTransient), "pseudonym collision")

	// ErrTooManyPseudonyms indicates the session reached its mapping limit.
	ErrTooManyPseudonyms = errors.Wrap(errors.ErrInvalidInput, "too many pseudonyms in session")

	// ErrTextTooLong indicates the request text exceeds the configured maximum length.
	ErrTextTooLong = errors.Wrap(errors.ErrInvalidInput, "text exceeds maximum length")

	// ErrInvalidToken indicates a string is not a well-formed pseudonym.
	ErrInvalidToken = errors.Wrap(errors.ErrInvalidInput, "invalid pseudonym")

	// ErrInvalidValueType indicates an unknown value type.
	ErrInvalidValueType = errors.Wrap(errors.ErrInvalidInput, "invalid value type")
)
