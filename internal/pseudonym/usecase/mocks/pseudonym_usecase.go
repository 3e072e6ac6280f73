// Package mocks provides mock implementations of the pseudonym use cases for testing.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	pseudonymDomain "github.com/allisson/pseudonymizer/internal/pseudonym/domain"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// MockPseudonymUseCase is a mock implementation of PseudonymUseCase.
type MockPseudonymUseCase struct {
	mock.Mock
}

func (m *MockPseudonymUseCase) Sanitize(
	ctx context.Context,
	session *sessionDomain.Session,
	text string,
) (*pseudonymDomain.SanitizeResult, error) {
	args := m.Called(ctx, session, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pseudonymDomain.SanitizeResult), args.Error(1)
}

func (m *MockPseudonymUseCase) Pseudonymize(
	ctx context.Context,
	input *pseudonymDomain.PseudonymizeInput,
) (*pseudonymDomain.PseudonymizeOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pseudonymDomain.PseudonymizeOutput), args.Error(1)
}

func (m *MockPseudonymUseCase) Reveal(
	ctx context.Context,
	sessionID uuid.UUID,
	callerID, text string,
) (*pseudonymDomain.RevealResult, error) {
	args := m.Called(ctx, sessionID, callerID, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pseudonymDomain.RevealResult), args.Error(1)
}
