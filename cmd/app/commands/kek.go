package commands

import (
	"context"
	"fmt"
	"log/slog"

	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/pseudonymizer/internal/crypto/usecase"
)

type kekChange func(ctx context.Context, chain *cryptoDomain.MasterKeyChain, alg cryptoDomain.Algorithm) error

// applyKekChange validates the algorithm, runs change and logs the outcome under verb.
func applyKekChange(
	ctx context.Context,
	logger *slog.Logger,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	algorithmStr, verb string,
	change kekChange,
) error {
	algorithm, err := parseAlgorithm(algorithmStr)
	if err != nil {
		return err
	}

	if err := change(ctx, masterKeyChain, algorithm); err != nil {
		return fmt.Errorf("failed to %s KEK: %w", verb, err)
	}

	logger.Info("KEK "+verb+"d",
		slog.String("algorithm", string(algorithm)),
		slog.String("master_key_id", masterKeyChain.ActiveMasterKeyID()),
	)
	return nil
}

// RunCreateKek creates the first key encryption key under the active master key. Run it once
// after migrate.
func RunCreateKek(
	ctx context.Context,
	kekUseCase cryptoUseCase.KekUseCase,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	logger *slog.Logger,
	algorithmStr string,
) error {
	return applyKekChange(ctx, logger, masterKeyChain, algorithmStr, "create", kekUseCase.Create)
}

// RunRotateKek adds a KEK version that becomes active. Older versions stay in the chain until
// rewrap-deks has moved every DEK over.
func RunRotateKek(
	ctx context.Context,
	kekUseCase cryptoUseCase.KekUseCase,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	logger *slog.Logger,
	algorithmStr string,
) error {
	return applyKekChange(ctx, logger, masterKeyChain, algorithmStr, "rotate", kekUseCase.Rotate)
}

// RunRewrapKeks moves every KEK still wrapped by an older master key to the active one.
func RunRewrapKeks(
	ctx context.Context,
	kekUseCase cryptoUseCase.KekUseCase,
	masterKeyChain *cryptoDomain.MasterKeyChain,
	logger *slog.Logger,
) error {
	count, err := kekUseCase.Rewrap(ctx, masterKeyChain)
	if err != nil {
		return fmt.Errorf("failed to rewrap KEKs: %w", err)
	}
	logger.Info("KEKs rewrapped",
		slog.Int("rewrapped", count),
		slog.String("master_key_id", masterKeyChain.ActiveMasterKeyID()),
	)
	return nil
}

func parseAlgorithm(value string) (cryptoDomain.Algorithm, error) {
	algorithm, err := cryptoDomain.ParseAlgorithm(value)
	if err != nil {
		return "", fmt.Errorf(
			"invalid algorithm %q (valid options: %s, %s)", value, cryptoDomain.AESGCM, cryptoDomain.ChaCha20,
		)
	}
	return algorithm, nil
}
