// Package mocks provides mock implementations of the Session Manager for testing.
package mocks

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

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
	return m.Called(ctx, id, callerID).Error(0)
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
