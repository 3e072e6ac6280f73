package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeSessionRepository struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*sessionDomain.Session
	err      error
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{sessions: map[uuid.UUID]*sessionDomain.Session{}}
}

func (f *fakeSessionRepository) Create(_ context.Context, session *sessionDomain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	stored := *session
	f.sessions[session.ID] = &stored
	return nil
}

func (f *fakeSessionRepository) Get(_ context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, sessionDomain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepository) GetForShare(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	return f.Get(ctx, id)
}

func (f *fakeSessionRepository) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[id]; !ok {
		return sessionDomain.ErrSessionNotFound
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepository) CountExpired(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, session := range f.sessions {
		if !session.ExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (f *fakeSessionRepository) ListExpired(
	_ context.Context,
	now time.Time,
	limit int,
) ([]*sessionDomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var sessions []*sessionDomain.Session
	for _, session := range f.sessions {
		if len(sessions) == limit {
			break
		}
		if !session.ExpiresAt.After(now) {
			copied := *session
			sessions = append(sessions, &copied)
		}
	}
	return sessions, nil
}

func (f *fakeSessionRepository) MarkInactive(_ context.Context, ids []uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if session, ok := f.sessions[id]; ok {
			session.Active = false
		}
	}
	return nil
}

func (f *fakeSessionRepository) DeleteExpired(_ context.Context, id uuid.UUID, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok || session.ExpiresAt.After(now) {
		return false, nil
	}
	delete(f.sessions, id)
	return true, nil
}

type fakeAuditRecorder struct {
	mu      sync.Mutex
	entries []*auditDomain.AuditLog
}

func (f *fakeAuditRecorder) Record(_ context.Context, entry *auditDomain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditRecorder) byOperation(op auditDomain.Operation) []*auditDomain.AuditLog {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []*auditDomain.AuditLog
	for _, entry := range f.entries {
		if entry.Operation == op {
			matched = append(matched, entry)
		}
	}
	return matched
}

// MockSessionUseCase is a mock implementation of SessionUseCase.
type MockSessionUseCase struct {
	mock.Mock
}

func (m *MockSessionUseCase) Create(
	ctx context.Context,
	callerID string,
	purpose sessionDomain.Purpose,
	ttl *time.Duration,
	metadata map[string]any,
) (*sessionDomain.Session, error) {
	args := m.Called(ctx, callerID, purpose, ttl, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionDomain.Session), args.Error(1)
}

func (m *MockSessionUseCase) GetLive(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionDomain.Session), args.Error(1)
}

func (m *MockSessionUseCase) LookupKey(ctx context.Context, session *sessionDomain.Session) ([]byte, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockSessionUseCase) Delete(ctx context.Context, id uuid.UUID, callerID string) error {
	args := m.Called(ctx, id, callerID)
	return args.Error(0)
}

func (m *MockSessionUseCase) ExpireNow(ctx context.Context) (*sessionDomain.CleanupResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sessionDomain.CleanupResult), args.Error(1)
}

func (m *MockSessionUseCase) CountExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

// MockLocker is a mock implementation of Locker.
type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(Lock), args.Error(1)
}

// MockLock is a mock implementation of Lock.
type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
