package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/pseudonymizer/internal/crypto/usecase"
)

// RunCreateEncryptionKey creates version 1 of the encryption key that seals mapping values and
// session lookup keys. Requires an active KEK.
func RunCreateEncryptionKey(
	ctx context.Context,
	encryptionKeyUseCase cryptoUseCase.EncryptionKeyUseCase,
	logger *slog.Logger,
	algorithmStr string,
) error {
	logger.Info("creating encryption key", slog.String("algorithm", algorithmStr))

	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	key, err := encryptionKeyUseCase.Create(ctx, algorithm)
	if err != nil {
		return fmt.Errorf("failed to create encryption key: %w", err)
	}

	logger.Info("encryption key created successfully",
		slog.String("name", key.Name),
		slog.Uint64("version", uint64(key.Version)),
		slog.String("algorithm", string(algorithm)),
	)
	return nil
}

// RunRotateEncryptionKey adds a new encryption key version. New values are sealed under it;
// values sealed under older versions stay decryptable until those versions are destroyed.
func RunRotateEncryptionKey(
	ctx context.Context,
	encryptionKeyUseCase cryptoUseCase.EncryptionKeyUseCase,
	logger *slog.Logger,
	algorithmStr string,
) error {
	logger.Info("rotating encryption key", slog.String("algorithm", algorithmStr))

	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	key, err := encryptionKeyUseCase.Rotate(ctx, algorithm)
	if err != nil {
		return fmt.Errorf("failed to rotate encryption key: %w", err)
	}

	logger.Info("encryption key rotated successfully",
		slog.String("name", key.Name),
		slog.Uint64("version", uint64(key.Version)),
		slog.String("algorithm", string(algorithm)),
	)
	return nil
}

// RunDestroyEncryptionKeyVersion deletes the key material of a non-active version. Every value
// sealed under it becomes permanently undecryptable, so confirm must be true.
func RunDestroyEncryptionKeyVersion(
	ctx context.Context,
	encryptionKeyUseCase cryptoUseCase.EncryptionKeyUseCase,
	logger *slog.Logger,
	version int,
	confirm bool,
) error {
	if version <= 0 {
		return fmt.Errorf("version must be a positive number, got: %d", version)
	}
	if !confirm {
		return fmt.Errorf("destroying version %d is irreversible; re-run with --confirm", version)
	}

	logger.Warn("destroying encryption key version", slog.Int("version", version))

	if err := encryptionKeyUseCase.DestroyVersion(ctx, uint(version)); err != nil {
		return fmt.Errorf("failed to destroy encryption key version: %w", err)
	}

	logger.Info("encryption key version destroyed", slog.Int("version", version))
	return nil
}

// RunListEncryptionKeys prints every version of the encryption key.
func RunListEncryptionKeys(
	ctx context.Context,
	encryptionKeyUseCase cryptoUseCase.EncryptionKeyUseCase,
	writer io.Writer,
	format string,
) error {
	keys, err := encryptionKeyUseCase.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list encryption keys: %w", err)
	}

	if format == formatJSON {
		return outputEncryptionKeysJSON(writer, keys)
	}
	outputEncryptionKeysText(writer, keys)
	return nil
}

func encryptionKeyStatus(key *cryptoDomain.EncryptionKey) string {
	if key.Destroyed() {
		return "destroyed"
	}
	return "live"
}

func outputEncryptionKeysText(writer io.Writer, keys []*cryptoDomain.EncryptionKey) {
	if len(keys) == 0 {
		_, _ = fmt.Fprintln(writer, "No encryption key versions found")
		return
	}
	for _, key := range keys {
		_, _ = fmt.Fprintf(writer, "%s v%d  %s  created %s\n",
			key.Name,
			key.Version,
			encryptionKeyStatus(key),
			key.CreatedAt.Format(time.RFC3339),
		)
	}
}

func outputEncryptionKeysJSON(writer io.Writer, keys []*cryptoDomain.EncryptionKey) error {
	result := make([]map[string]any, 0, len(keys))
	for _, key := range keys {
		entry := map[string]any{
			"name":       key.Name,
			"version":    key.Version,
			"status":     encryptionKeyStatus(key),
			"created_at": key.CreatedAt,
		}
		if key.DestroyedAt != nil {
			entry["destroyed_at"] = *key.DestroyedAt
		}
		result = append(result, entry)
	}
	return writeJSON(writer, result)
}

// RunRewrapDeks re-wraps the DEK of every live encryption key version under the active KEK.
func RunRewrapDeks(
	ctx context.Context,
	encryptionKeyUseCase cryptoUseCase.EncryptionKeyUseCase,
	logger *slog.Logger,
) error {
	count, err := encryptionKeyUseCase.RewrapDeks(ctx)
	if err != nil {
		return fmt.Errorf("failed to rewrap DEKs: %w", err)
	}
	logger.Info("DEKs rewrapped", slog.Int("rewrapped", count))
	return nil
}
