package usecase

import (
	"context"
	"log/slog"
	"time"

	sessionDomain "github.com/allisson/pseudonymizer/internal/session/domain"
)

// CleanupLockKey is the distributed lock taken around each scheduled purge.
const CleanupLockKey = "pseudonymizer:session-cleanup"

// CleanupConfig holds cleanup worker configuration.
type CleanupConfig struct {
	Interval time.Duration
	// LockTTL bounds how long a crashed instance can hold the lock.
	LockTTL time.Duration
}

// CleanupWorker purges expired sessions on a schedule. With a Locker only one instance of
// the deployment purges per tick.
type CleanupWorker struct {
	config  CleanupConfig
	useCase SessionUseCase
	locker  Locker
	logger  *slog.Logger
}

// NewCleanupWorker creates a CleanupWorker. locker may be nil.
func NewCleanupWorker(
	config CleanupConfig,
	useCase SessionUseCase,
	locker Locker,
	logger *slog.Logger,
) *CleanupWorker {
	if config.LockTTL <= 0 {
		config.LockTTL = config.Interval
	}
	return &CleanupWorker{
		config:  config,
		useCase: useCase,
		locker:  locker,
		logger:  logger,
	}
}

// Start runs the purge loop until ctx is cancelled.
func (w *CleanupWorker) Start(ctx context.Context) error {
	w.logger.Info("starting session cleanup worker",
		slog.Duration("interval", w.config.Interval),
		slog.Bool("distributed_lock", w.locker != nil),
	)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("stopping session cleanup worker")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error("failed to purge expired sessions", slog.Any("error", err))
			}
		}
	}
}

// RunOnce performs one purge. It returns a nil result when another instance holds the lock.
func (w *CleanupWorker) RunOnce(ctx context.Context) (*sessionDomain.CleanupResult, error) {
	if w.locker != nil {
		lock, err := w.locker.TryLock(ctx, CleanupLockKey, w.config.LockTTL)
		if err != nil {
			return nil, err
		}
		if lock == nil {
			w.logger.Debug("session cleanup skipped, lock held elsewhere")
			return nil, nil
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				w.logger.Warn("failed to release cleanup lock", slog.Any("error", err))
			}
		}()
	}

	return w.useCase.ExpireNow(ctx)
}
