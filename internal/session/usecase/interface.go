// Package usecase implements the Session Manager and its cleanup worker.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// SessionRepository persists sessions. Deleting a session cascades to its mappings.
type SessionRepository interface {
	Create(ctx context.Context, session *sessionDomain.Session) error
	Get(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error)

	// GetForShare reads the session under a shared row lock held until the surrounding
	// transaction ends, which keeps cleanup from deleting it mid-call.
	GetForShare(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error)

	Delete(ctx context.Context, id uuid.UUID) error
	CountExpired(ctx context.Context, now time.Time) (int64, error)

	// ListExpired locks up to limit sessions past expiry, skipping rows locked by in-flight calls.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]*sessionDomain.Session, error)
	MarkInactive(ctx context.Context, ids []uuid.UUID) error

	// DeleteExpired deletes the session only if it is still past expiry at now.
	DeleteExpired(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
}

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry *auditDomain.AuditLog) error
}

// SessionUseCase is the Session Manager.
type SessionUseCase interface {
	// Create opens a session for callerID. A nil ttl selects the configured default.
	Create(
		ctx context.Context,
		callerID string,
		purpose sessionDomain.Purpose,
		ttl *time.Duration,
		metadata map[string]any,
	) (*sessionDomain.Session, error)

	// GetLive returns the session if it exists and has not expired. Inside a transaction the
	// session row stays share-locked until commit.
	GetLive(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error)

	// LookupKey unseals the session's value-hash key.
	LookupKey(ctx context.Context, session *sessionDomain.Session) ([]byte, error)

	// Delete purges the session and its mappings immediately. Only the owning caller may delete it.
	Delete(ctx context.Context, id uuid.UUID, callerID string) error

	// ExpireNow marks every session past expiry inactive and then deletes it with its mappings.
	ExpireNow(ctx context.Context) (*sessionDomain.CleanupResult, error)

	CountExpired(ctx context.Context) (int64, error)
}

// Lock is a held distributed lock.
type Lock interface {
	Release(ctx context.Context) error
}

// Locker acquires distributed locks. TryLock returns a nil Lock when another holder owns key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}
