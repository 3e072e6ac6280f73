package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/pseudonymizer/internal/metrics"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// sessionUseCaseWithMetrics decorates SessionUseCase with metrics instrumentation.
type sessionUseCaseWithMetrics struct {
	next    SessionUseCase
	metrics metrics.BusinessMetrics
}

// NewSessionUseCaseWithMetrics wraps a SessionUseCase with metrics recording.
func NewSessionUseCaseWithMetrics(useCase SessionUseCase, m metrics.BusinessMetrics) SessionUseCase {
	return &sessionUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (s *sessionUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	s.metrics.ObserveOperation(ctx, "session", operation, time.Since(start), err)
}

func (s *sessionUseCaseWithMetrics) Create(
	ctx context.Context,
	callerID string,
	purpose sessionDomain.Purpose,
	ttl *time.Duration,
	metadata map[string]any,
) (*sessionDomain.Session, error) {
	start := time.Now()
	session, err := s.next.Create(ctx, callerID, purpose, ttl, metadata)
	s.record(ctx, "create_session", start, err)
	return session, err
}

func (s *sessionUseCaseWithMetrics) GetLive(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	return s.next.GetLive(ctx, id)
}

func (s *sessionUseCaseWithMetrics) LookupKey(
	ctx context.Context,
	session *sessionDomain.Session,
) ([]byte, error) {
	return s.next.LookupKey(ctx, session)
}

func (s *sessionUseCaseWithMetrics) Delete(ctx context.Context, id uuid.UUID, callerID string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id, callerID)
	s.record(ctx, "delete_session", start, err)
	return err
}

func (s *sessionUseCaseWithMetrics) ExpireNow(ctx context.Context) (*sessionDomain.CleanupResult, error) {
	start := time.Now()
	result, err := s.next.ExpireNow(ctx)
	s.record(ctx, "expire_sessions", start, err)
	return result, err
}

func (s *sessionUseCaseWithMetrics) CountExpired(ctx context.Context) (int64, error) {
	return s.next.CountExpired(ctx)
}
