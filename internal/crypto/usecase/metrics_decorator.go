package usecase

import (
	"context"
	"time"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	"github.com/allisson/pseudonymizer/internal/metrics"
)

// encryptionKeyUseCaseWithMetrics decorates EncryptionKeyUseCase with metrics instrumentation.
type encryptionKeyUseCaseWithMetrics struct {
	next    EncryptionKeyUseCase
	metrics metrics.BusinessMetrics
}

// NewEncryptionKeyUseCaseWithMetrics wraps an EncryptionKeyUseCase with metrics recording.
func NewEncryptionKeyUseCaseWithMetrics(
	useCase EncryptionKeyUseCase,
	m metrics.BusinessMetrics,
) EncryptionKeyUseCase {
	return &encryptionKeyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (e *encryptionKeyUseCaseWithMetrics) record(
	ctx context.Context,
	operation string,
	start time.Time,
	err error,
) {
	e.metrics.ObserveOperation(ctx, "crypto", operation, time.Since(start), err)
}

func (e *encryptionKeyUseCaseWithMetrics) Encrypt(
	ctx context.Context,
	plaintext, aad []byte,
) (*cryptoDomain.Sealed, error) {
	start := time.Now()
	sealed, err := e.next.Encrypt(ctx, plaintext, aad)
	e.record(ctx, "encrypt", start, err)
	return sealed, err
}

func (e *encryptionKeyUseCaseWithMetrics) Decrypt(
	ctx context.Context,
	ciphertext []byte,
	keyVersion uint,
	aad []byte,
) ([]byte, error) {
	start := time.Now()
	plaintext, err := e.next.Decrypt(ctx, ciphertext, keyVersion, aad)
	e.record(ctx, "decrypt", start, err)
	return plaintext, err
}

// Ready is not recorded; health probes would drown the operation counters.
func (e *encryptionKeyUseCaseWithMetrics) Ready(ctx context.Context) error {
	return e.next.Ready(ctx)
}

func (e *encryptionKeyUseCaseWithMetrics) Create(
	ctx context.Context,
	alg cryptoDomain.Algorithm,
) (*cryptoDomain.EncryptionKey, error) {
	start := time.Now()
	key, err := e.next.Create(ctx, alg)
	e.record(ctx, "encryption_key_create", start, err)
	return key, err
}

func (e *encryptionKeyUseCaseWithMetrics) Rotate(
	ctx context.Context,
	alg cryptoDomain.Algorithm,
) (*cryptoDomain.EncryptionKey, error) {
	start := time.Now()
	key, err := e.next.Rotate(ctx, alg)
	e.record(ctx, "encryption_key_rotate", start, err)
	return key, err
}

func (e *encryptionKeyUseCaseWithMetrics) DestroyVersion(ctx context.Context, version uint) error {
	start := time.Now()
	err := e.next.DestroyVersion(ctx, version)
	e.record(ctx, "encryption_key_destroy", start, err)
	return err
}

func (e *encryptionKeyUseCaseWithMetrics) List(ctx context.Context) ([]*cryptoDomain.EncryptionKey, error) {
	return e.next.List(ctx)
}

func (e *encryptionKeyUseCaseWithMetrics) RewrapDeks(ctx context.Context) (int, error) {
	start := time.Now()
	n, err := e.next.RewrapDeks(ctx)
	e.record(ctx, "dek_rewrap", start, err)
	return n, err
}
