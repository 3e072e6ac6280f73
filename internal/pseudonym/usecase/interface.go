// Package usecase implements the Substitution Engine and the Reversal Engine.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	"github.com/allisson/pseudonymizer/internal/detection"
	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// MappingRepository is the Mapping Store.
type MappingRepository interface {
	// CreateOrGet inserts mapping unless the session already maps the same value hash, in which
	// case the stored mapping is returned with created=false. A pseudonym already used anywhere
	// returns ErrPseudonymCollision.
	CreateOrGet(ctx context.Context, mapping *pseudonymDomain.Mapping) (stored *pseudonymDomain.Mapping, created bool, err error)

	GetByValueHash(ctx context.Context, sessionID uuid.UUID, valueHash []byte) (*pseudonymDomain.Mapping, error)

	// ListByPseudonyms returns the mappings of sessionID among pseudonyms. Unknown or foreign
	// pseudonyms are simply absent from the result.
	ListByPseudonyms(ctx context.Context, sessionID uuid.UUID, pseudonyms []string) ([]*pseudonymDomain.Mapping, error)

	PseudonymExists(ctx context.Context, pseudonym string) (bool, error)

	// IncrementAccess bumps the access counter of every id in one statement.
	IncrementAccess(ctx context.Context, ids []uuid.UUID, at time.Time) error

	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
}

// Detector locates personal data in text.
type Detector interface {
	Detect(ctx context.Context, text string) []detection.Span
}

// SessionManager is the part of the Session Manager the engines depend on.
type SessionManager interface {
	Create(
		ctx context.Context,
		callerID string,
		purpose sessionDomain.Purpose,
		ttl *time.Duration,
		metadata map[string]any,
	) (*sessionDomain.Session, error)
	GetLive(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error)
	LookupKey(ctx context.Context, session *sessionDomain.Session) ([]byte, error)
	ExpireNow(ctx context.Context) (*sessionDomain.CleanupResult, error)
}

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry *auditDomain.AuditLog) error
	RecordBatch(ctx context.Context, entries []*auditDomain.AuditLog) error
}

// PseudonymUseCase is the substitution and reversal entry point.
type PseudonymUseCase interface {
	// Sanitize replaces every detected value in text with the session's pseudonym for it,
	// creating mappings as needed. It is atomic: on any failure nothing is persisted and no
	// text is returned.
	Sanitize(ctx context.Context, session *sessionDomain.Session, text string) (*pseudonymDomain.SanitizeResult, error)

	// Pseudonymize opens or reuses a session for the caller and sanitizes text within it.
	Pseudonymize(ctx context.Context, input *pseudonymDomain.PseudonymizeInput) (*pseudonymDomain.PseudonymizeOutput, error)

	// Reveal substitutes the original values back for every pseudonym of the session found in
	// text. Pseudonyms without a mapping in the session are left in place and reported.
	Reveal(ctx context.Context, sessionID uuid.UUID, callerID, text string) (*pseudonymDomain.RevealResult, error)
}
