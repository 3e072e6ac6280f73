package domain

import (
	"github.com/allisson/pseudonymizer/internal/errors"
)

var (
	// ErrSignatureInvalid indicates an audit entry was modified after it was signed.
	ErrSignatureInvalid = errors.New("audit log signature invalid")

	// ErrSigningKekNotFound indicates the KEK that signed an entry is not loaded.
	ErrSigningKekNotFound = errors.Wrap(errors.ErrNotFound, "audit signing kek not found")
)

// ErrorDetail maps err to a fixed, PII-free description derived from its class. Error messages
// are never stored verbatim because wrapped driver errors may quote input values.
func ErrorDetail(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, errors.ErrGone):
		return "gone"
	case errors.Is(err, errors.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, errors.ErrNotFound):
		return "not_found"
	case errors.Is(err, errors.ErrConflict):
		return "conflict"
	case errors.Is(err, errors.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, errors.ErrForbidden):
		return "forbidden"
	case errors.Is(err, errors.ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal_error"
	}
}
