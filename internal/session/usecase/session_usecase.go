package usecase

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/allisson/pseudonymizer/internal/audit/domain"
	cryptoUseCase "github.com/allisson/pseudonymizer/internal/crypto/usecase"
	"github.com/allisson/pseudonymizer/internal/database"
	apperrors "github.com/allisson/pseudonymizer/internal/errors"
	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// SystemCallerID identifies audit entries written by the cleanup rather than a caller.
const SystemCallerID = "system:cleanup"

const lookupKeySize = 32

// Config holds Session Manager configuration.
type Config struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration
	BatchSize  int
	Retry      database.RetryConfig
}

type sessionUseCase struct {
	cfg         Config
	txManager   database.TxManager
	sessionRepo SessionRepository
	gateway     cryptoUseCase.EncryptionGateway
	audit       AuditRecorder
	logger      *slog.Logger
	now         func() time.Time
}

func lookupKeyAAD(id uuid.UUID) []byte {
	return []byte("session-lookup-key:" + id.String())
}

func (s *sessionUseCase) resolveTTL(ttl *time.Duration) (time.Duration, error) {
	if ttl == nil {
		return s.cfg.DefaultTTL, nil
	}
	if *ttl < 0 || *ttl > s.cfg.MaxTTL {
		return 0, apperrors.Wrapf(sessionDomain.ErrInvalidTTL, "ttl must be between 0 and %s", s.cfg.MaxTTL)
	}
	return *ttl, nil
}

// recordFailure audits a failed operation outside any rolled-back transaction.
func (s *sessionUseCase) recordFailure(
	ctx context.Context,
	op auditDomain.Operation,
	callerID string,
	sessionID *uuid.UUID,
	cause error,
) {
	entry := &auditDomain.AuditLog{
		Operation:   op,
		CallerID:    callerID,
		SessionID:   sessionID,
		Success:     false,
		ErrorDetail: auditDomain.ErrorDetail(cause),
	}
	if err := s.audit.Record(context.WithoutCancel(ctx), entry); err != nil {
		s.logger.Error("failed to record audit log",
			slog.String("operation", string(op)),
			slog.Any("error", err),
		)
	}
}

func (s *sessionUseCase) Create(
	ctx context.Context,
	callerID string,
	purpose sessionDomain.Purpose,
	ttl *time.Duration,
	metadata map[string]any,
) (*sessionDomain.Session, error) {
	session, err := s.create(ctx, callerID, purpose, ttl, metadata)
	if err != nil {
		var sessionID *uuid.UUID
		if session != nil {
			sessionID = &session.ID
		}
		s.recordFailure(ctx, auditDomain.OperationCreateSession, callerID, sessionID, err)
		return nil, err
	}
	return session, nil
}

func (s *sessionUseCase) create(
	ctx context.Context,
	callerID string,
	purpose sessionDomain.Purpose,
	ttl *time.Duration,
	metadata map[string]any,
) (*sessionDomain.Session, error) {
	if _, err := sessionDomain.ParsePurpose(string(purpose)); err != nil {
		return nil, err
	}
	lifetime, err := s.resolveTTL(ttl)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC().Truncate(time.Microsecond)
	session := &sessionDomain.Session{
		ID:        uuid.Must(uuid.NewV7()),
		CallerID:  callerID,
		Purpose:   purpose,
		CreatedAt: now,
		ExpiresAt: sessionDomain.ExpiresAfter(now, lifetime),
		Active:    true,
		Metadata:  metadata,
	}

	lookupKey := make([]byte, lookupKeySize)
	if _, err := rand.Read(lookupKey); err != nil {
		return session, apperrors.Wrap(err, "failed to generate lookup key")
	}
	sealed, err := s.gateway.Encrypt(ctx, lookupKey, lookupKeyAAD(session.ID))
	clear(lookupKey)
	if err != nil {
		return session, err
	}
	session.LookupKeyCiphertext = sealed.Ciphertext
	session.LookupKeyVersion = sealed.KeyVersion

	err = database.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context) error {
			if err := s.sessionRepo.Create(ctx, session); err != nil {
				return err
			}
			return s.audit.Record(ctx, &auditDomain.AuditLog{
				Operation: auditDomain.OperationCreateSession,
				CallerID:  callerID,
				SessionID: &session.ID,
				Success:   true,
				Metadata: map[string]any{
					"purpose":    string(purpose),
					"expires_at": session.ExpiresAt.Format(time.RFC3339Nano),
				},
			})
		})
	})
	if err != nil {
		return session, err
	}

	s.logger.Debug("session created",
		slog.String("session_id", session.ID.String()),
		slog.String("purpose", string(purpose)),
		slog.Time("expires_at", session.ExpiresAt),
	)
	return session, nil
}

func (s *sessionUseCase) GetLive(ctx context.Context, id uuid.UUID) (*sessionDomain.Session, error) {
	var session *sessionDomain.Session
	var err error
	if database.InTx(ctx) {
		session, err = s.sessionRepo.GetForShare(ctx, id)
	} else {
		session, err = s.sessionRepo.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if !session.Live(s.now()) {
		return nil, sessionDomain.ErrSessionExpired
	}
	return session, nil
}

func (s *sessionUseCase) LookupKey(ctx context.Context, session *sessionDomain.Session) ([]byte, error) {
	return s.gateway.Decrypt(ctx, session.LookupKeyCiphertext, session.LookupKeyVersion, lookupKeyAAD(session.ID))
}

func (s *sessionUseCase) Delete(ctx context.Context, id uuid.UUID, callerID string) error {
	err := database.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		return s.txManager.WithTx(ctx, func(ctx context.Context) error {
			session, err := s.sessionRepo.Get(ctx, id)
			if err != nil {
				return err
			}
			if session.CallerID != callerID {
				return sessionDomain.ErrSessionForbidden
			}

			// recorded first so the entry references the row before it is nulled by the purge
			err = s.audit.Record(ctx, &auditDomain.AuditLog{
				Operation: auditDomain.OperationDeleteSession,
				CallerID:  callerID,
				SessionID: &id,
				Success:   true,
			})
			if err != nil {
				return err
			}
			return s.sessionRepo.Delete(ctx, id)
		})
	})
	if err != nil {
		s.recordFailure(ctx, auditDomain.OperationDeleteSession, callerID, &id, err)
		return err
	}

	s.logger.Info("session deleted", slog.String("session_id", id.String()))
	return nil
}

func (s *sessionUseCase) CountExpired(ctx context.Context) (int64, error) {
	return s.sessionRepo.CountExpired(ctx, s.now().UTC())
}

// ExpireNow runs in batches. Each batch takes two short transactions: the first marks the
// sessions inactive, the second deletes those still past expiry at commit time.
func (s *sessionUseCase) ExpireNow(ctx context.Context) (*sessionDomain.CleanupResult, error) {
	result := &sessionDomain.CleanupResult{}

	for {
		expired, err := s.markExpired(ctx)
		if err != nil {
			s.recordFailure(ctx, auditDomain.OperationCleanupExpired, SystemCallerID, nil, err)
			return result, err
		}
		if len(expired) == 0 {
			break
		}
		result.Expired += len(expired)

		deleted, err := s.deleteExpired(ctx, expired)
		result.Deleted += deleted
		if err != nil {
			s.recordFailure(ctx, auditDomain.OperationCleanupExpired, SystemCallerID, nil, err)
			return result, err
		}

		if len(expired) < s.cfg.BatchSize || deleted == 0 {
			break
		}
	}

	if result.Expired > 0 {
		s.logger.Info("expired sessions purged",
			slog.Int("expired", result.Expired),
			slog.Int("deleted", result.Deleted),
		)
	}
	return result, nil
}

func (s *sessionUseCase) markExpired(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := database.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		ids = nil
		return s.txManager.WithTx(ctx, func(ctx context.Context) error {
			sessions, err := s.sessionRepo.ListExpired(ctx, s.now().UTC(), s.cfg.BatchSize)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				return nil
			}

			for _, session := range sessions {
				ids = append(ids, session.ID)
			}
			if err := s.sessionRepo.MarkInactive(ctx, ids); err != nil {
				return err
			}

			for _, session := range sessions {
				err := s.audit.Record(ctx, &auditDomain.AuditLog{
					Operation: auditDomain.OperationCleanupExpired,
					CallerID:  SystemCallerID,
					SessionID: &session.ID,
					Success:   true,
					Metadata:  map[string]any{"phase": "inactive"},
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
	return ids, err
}

func (s *sessionUseCase) deleteExpired(ctx context.Context, ids []uuid.UUID) (int, error) {
	deleted := 0
	err := database.WithRetry(ctx, s.cfg.Retry, func(ctx context.Context) error {
		deleted = 0
		return s.txManager.WithTx(ctx, func(ctx context.Context) error {
			now := s.now().UTC()
			for _, id := range ids {
				ok, err := s.sessionRepo.DeleteExpired(ctx, id, now)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
				deleted++

				// the row is gone, so the id travels in metadata rather than the foreign key
				err = s.audit.Record(ctx, &auditDomain.AuditLog{
					Operation: auditDomain.OperationCleanupExpired,
					CallerID:  SystemCallerID,
					Success:   true,
					Metadata:  map[string]any{"phase": "deleted", "session_id": id.String()},
				})
				if err != nil {
					return err
				}
			}
			return nil
		})
	})
	return deleted, err
}

// NewSessionUseCase creates the Session Manager.
func NewSessionUseCase(
	cfg Config,
	txManager database.TxManager,
	sessionRepo SessionRepository,
	gateway cryptoUseCase.EncryptionGateway,
	audit AuditRecorder,
	logger *slog.Logger,
) SessionUseCase {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 100
	}
	return &sessionUseCase{
		cfg:         cfg,
		txManager:   txManager,
		sessionRepo: sessionRepo,
		gateway:     gateway,
		audit:       audit,
		logger:      logger,
		now:         time.Now,
	}
}
