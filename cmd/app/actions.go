package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/allisson/pseudonymizer/internal/app"
	"github.com/allisson/pseudonymizer/internal/config"
	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoUseCase "github.com/allisson/pseudonymizer/internal/crypto/usecase"
)

// withContainer builds a container from the environment for the duration of run.
func withContainer(run func(ctx context.Context, cmd *cli.Command, c *app.Container) error) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		container := app.NewContainer(config.Load())
		defer func() { _ = container.Shutdown(ctx) }()
		return run(ctx, cmd, container)
	}
}

// withKeks resolves the KEK use case and the loaded master key chain.
func withKeks(
	run func(
		ctx context.Context,
		cmd *cli.Command,
		c *app.Container,
		uc cryptoUseCase.KekUseCase,
		chain *cryptoDomain.MasterKeyChain,
	) error,
) cli.ActionFunc {
	return withContainer(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
		uc, err := c.KekUseCase()
		if err != nil {
			return err
		}
		chain, err := c.MasterKeyChain()
		if err != nil {
			return err
		}
		return run(ctx, cmd, c, uc, chain)
	})
}

// withEncryptionKeys resolves the encryption key use case.
func withEncryptionKeys(
	run func(ctx context.Context, cmd *cli.Command, c *app.Container, uc cryptoUseCase.EncryptionKeyUseCase) error,
) cli.ActionFunc {
	return withContainer(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
		uc, err := c.EncryptionKeyUseCase()
		if err != nil {
			return err
		}
		return run(ctx, cmd, c, uc)
	})
}

func algorithmFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "algorithm",
		Aliases: []string{"alg"},
		Value:   string(cryptoDomain.AESGCM),
		Usage:   "AEAD algorithm: aes-gcm or chacha20-poly1305",
	}
}

func formatFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Value:   "text",
		Usage:   "Output format: text or json",
	}
}

func dryRunFlag(usage string) cli.Flag {
	return &cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: usage}
}

// masterKeyFlags are shared by the master key generators.
func masterKeyFlags(idUsage string) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "id", Aliases: []string{"i"}, Usage: idUsage},
		&cli.StringFlag{
			Name:     "kms-provider",
			Required: true,
			Usage:    "KMS provider: localsecrets, gcpkms, awskms, azurekeyvault or hashivault",
		},
		&cli.StringFlag{
			Name:     "kms-key-uri",
			Required: true,
			Usage:    "KMS key URI, for example hashivault://my-key or base64key://...",
		},
	}
}
