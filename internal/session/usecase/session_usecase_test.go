package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoTesting "github.com/allisson/pseudonymizer/internal/crypto/testing"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	"github.com/allisson/pseudonymizer/internal/metrics"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

type sessionFixture struct {
	uc      *sessionUseCase
	repo    *fakeSessionRepository
	gateway *cryptoTesting.Gateway
	audit   *fakeAuditRecorder
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		repo:    newFakeSessionRepository(),
		gateway: cryptoTesting.NewGateway(),
		audit:   &fakeAuditRecorder{},
	}
	f.uc = NewSessionUseCase(
		Config{
			DefaultTTL: time.Hour,
			MaxTTL:     24 * time.Hour,
			BatchSize:  2,
			Retry:      database.RetryConfig{Attempts: 1},
		},
		fakeTxManager{},
		f.repo,
		f.gateway,
		f.audit,
		discardLogger(),
	).(*sessionUseCase)
	return f
}

func ttl(d time.Duration) *time.Duration {
	return &d
}

func TestSessionUseCase_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_DefaultTTL", func(t *testing.T) {
		f := newSessionFixture(t)

		session, err := f.uc.Create(ctx, "extraction-service", sessionDomain.PurposeExtraction, nil, nil)
		require.NoError(t, err)
		assert.True(t, session.Active)
		assert.Equal(t, time.Hour, session.ExpiresAt.Sub(session.CreatedAt))
		assert.NotEmpty(t, session.LookupKeyCiphertext)
		assert.Equal(t, uint(1), session.LookupKeyVersion)

		created := f.audit.byOperation(auditDomain.OperationCreateSession)
		require.Len(t, created, 1)
		assert.True(t, created[0].Success)
		assert.Equal(t, session.ID, *created[0].SessionID)
	})

	t.Run("Success_LookupKeyRoundTrip", func(t *testing.T) {
		f := newSessionFixture(t)
		session, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeTesting, ttl(time.Minute), nil)
		require.NoError(t, err)

		key, err := f.uc.LookupKey(ctx, session)
		require.NoError(t, err)
		assert.Len(t, key, lookupKeySize)

		other, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeTesting, ttl(time.Minute), nil)
		require.NoError(t, err)
		otherKey, err := f.uc.LookupKey(ctx, other)
		require.NoError(t, err)
		assert.NotEqual(t, key, otherKey)
	})

	t.Run("Success_ZeroTTLIsImmediatelyExpired", func(t *testing.T) {
		f := newSessionFixture(t)
		session, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeAudit, ttl(0), nil)
		require.NoError(t, err)
		assert.True(t, session.ExpiresAt.After(session.CreatedAt))

		f.uc.now = func() time.Time { return session.CreatedAt.Add(time.Millisecond) }
		_, err = f.uc.GetLive(ctx, session.ID)
		assert.ErrorIs(t, err, sessionDomain.ErrSessionExpired)
	})

	t.Run("Error_InvalidPurpose", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.uc.Create(ctx, "svc", sessionDomain.Purpose("marketing"), nil, nil)
		assert.ErrorIs(t, err, sessionDomain.ErrInvalidPurpose)

		failed := f.audit.byOperation(auditDomain.OperationCreateSession)
		require.Len(t, failed, 1)
		assert.False(t, failed[0].Success)
		assert.Equal(t, "invalid_input", failed[0].ErrorDetail)
	})

	t.Run("Error_TTLAboveMax", func(t *testing.T) {
		f := newSessionFixture(t)
		_, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeExtraction, ttl(48*time.Hour), nil)
		assert.ErrorIs(t, err, sessionDomain.ErrInvalidTTL)
	})

	t.Run("Error_CryptoUnavailableFailsClosed", func(t *testing.T) {
		f := newSessionFixture(t)
		f.gateway.FailWith(cryptoDomain.ErrCryptoUnavailable)

		_, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeExtraction, nil, nil)
		assert.ErrorIs(t, err, cryptoDomain.ErrCryptoUnavailable)
		assert.Empty(t, f.repo.sessions)

		failed := f.audit.byOperation(auditDomain.OperationCreateSession)
		require.Len(t, failed, 1)
		assert.Equal(t, "unavailable", failed[0].ErrorDetail)
	})
}

func TestSessionUseCase_GetLive(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)

	session, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeExtraction, ttl(time.Hour), nil)
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		got, err := f.uc.GetLive(ctx, session.ID)
		require.NoError(t, err)
		assert.Equal(t, session.ID, got.ID)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		_, err := f.uc.GetLive(ctx, uuid.Must(uuid.NewV7()))
		assert.ErrorIs(t, err, sessionDomain.ErrSessionNotFound)
		assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
	})

	t.Run("Error_Expired", func(t *testing.T) {
		f.uc.now = func() time.Time { return session.ExpiresAt }
		defer func() { f.uc.now = time.Now }()

		_, err := f.uc.GetLive(ctx, session.ID)
		assert.ErrorIs(t, err, sessionDomain.ErrSessionExpired)
	})
}

func TestSessionUseCase_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_AuditedAsDeleteSession", func(t *testing.T) {
		f := newSessionFixture(t)
		session, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeExtraction, nil, nil)
		require.NoError(t, err)

		require.NoError(t, f.uc.Delete(ctx, session.ID, "svc"))
		assert.Empty(t, f.repo.sessions)

		deleted := f.audit.byOperation(auditDomain.OperationDeleteSession)
		require.Len(t, deleted, 1)
		assert.True(t, deleted[0].Success)
	})

	t.Run("Error_OtherCaller", func(t *testing.T) {
		f := newSessionFixture(t)
		session, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeExtraction, nil, nil)
		require.NoError(t, err)

		err = f.uc.Delete(ctx, session.ID, "intruder")
		assert.ErrorIs(t, err, sessionDomain.ErrSessionForbidden)
		assert.Len(t, f.repo.sessions, 1)

		denied := f.audit.byOperation(auditDomain.OperationDeleteSession)
		require.Len(t, denied, 1)
		assert.False(t, denied[0].Success)
		assert.Equal(t, "forbidden", denied[0].ErrorDetail)
	})

	t.Run("Error_NotFound", func(t *testing.T) {
		f := newSessionFixture(t)
		err := f.uc.Delete(ctx, uuid.Must(uuid.NewV7()), "svc")
		assert.ErrorIs(t, err, sessionDomain.ErrSessionNotFound)
	})
}

func TestSessionUseCase_ExpireNow(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)

	live, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeExtraction, ttl(time.Hour), nil)
	require.NoError(t, err)
	for range 3 {
		_, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeTesting, ttl(0), nil)
		require.NoError(t, err)
	}
	f.uc.now = func() time.Time { return time.Now().Add(time.Second) }

	count, err := f.uc.CountExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	result, err := f.uc.ExpireNow(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Expired)
	assert.Equal(t, 3, result.Deleted)

	require.Len(t, f.repo.sessions, 1)
	assert.Contains(t, f.repo.sessions, live.ID)

	// each session is audited once per phase
	cleanup := f.audit.byOperation(auditDomain.OperationCleanupExpired)
	assert.Len(t, cleanup, 6)
	for _, entry := range cleanup {
		if entry.Metadata["phase"] == "deleted" {
			assert.Nil(t, entry.SessionID)
			assert.NotEmpty(t, entry.Metadata["session_id"])
		}
	}

	result, err = f.uc.ExpireNow(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Expired)
}

func TestSessionUseCase_DeleteExpired(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_AuditsOnlyDeletedRows", func(t *testing.T) {
		f := newSessionFixture(t)
		expired, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeTesting, ttl(0), nil)
		require.NoError(t, err)
		f.uc.now = func() time.Time { return time.Now().Add(time.Second) }

		deleted, err := f.uc.deleteExpired(ctx, []uuid.UUID{expired.ID})
		require.NoError(t, err)
		assert.Equal(t, 1, deleted)

		entries := f.audit.byOperation(auditDomain.OperationCleanupExpired)
		require.Len(t, entries, 1)
		assert.Equal(t, "deleted", entries[0].Metadata["phase"])
		assert.Equal(t, expired.ID.String(), entries[0].Metadata["session_id"])
		assert.Nil(t, entries[0].SessionID)
	})

	t.Run("Success_NoAuditWhenRowWasNotDeleted", func(t *testing.T) {
		f := newSessionFixture(t)
		// extended between the mark and delete phases
		extended, err := f.uc.Create(ctx, "svc", sessionDomain.PurposeTesting, ttl(time.Hour), nil)
		require.NoError(t, err)

		deleted, err := f.uc.deleteExpired(ctx, []uuid.UUID{extended.ID, uuid.Must(uuid.NewV7())})
		require.NoError(t, err)
		assert.Zero(t, deleted)
		assert.Contains(t, f.repo.sessions, extended.ID)
		assert.Empty(t, f.audit.byOperation(auditDomain.OperationCleanupExpired))
	})
}

func TestSessionUseCaseWithMetrics(t *testing.T) {
	ctx := context.Background()
	f := newSessionFixture(t)
	uc := NewSessionUseCaseWithMetrics(f.uc, metrics.NewNoOpBusinessMetrics())

	session, err := uc.Create(ctx, "svc", sessionDomain.PurposeExtraction, nil, nil)
	require.NoError(t, err)

	_, err = uc.GetLive(ctx, session.ID)
	require.NoError(t, err)

	_, err = uc.LookupKey(ctx, session)
	require.NoError(t, err)

	require.NoError(t, uc.Delete(ctx, session.ID, "svc"))

	_, err = uc.ExpireNow(ctx)
	require.NoError(t, err)
}
