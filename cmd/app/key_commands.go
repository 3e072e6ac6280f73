package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/allisson/pseudonymizer/cmd/app/commands"
	"github.com/allisson/pseudonymizer/internal/app"
	cryptoDomain "github.com/allisson/pseudonymizer/internal/crypto/domain"
	cryptoService "github.com/allisson/pseudonymizer/internal/crypto/service"
	cryptoUseCase "github.com/allisson/pseudonymizer/internal/crypto/usecase"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "create-master-key",
			Usage: "Generate a KMS-wrapped master key and print the MASTER_KEYS entry",
			Flags: masterKeyFlags("Master key ID (default: generated from the date)"),
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				return commands.RunCreateMasterKey(
					ctx, cryptoService.NewKMSService(), c.Logger(), os.Stdout,
					cmd.String("id"), cmd.String("kms-provider"), cmd.String("kms-key-uri"),
				)
			}),
		},
		{
			Name:  "rotate-master-key",
			Usage: "Generate a new master key and append it to the current MASTER_KEYS",
			Flags: masterKeyFlags("New master key ID (default: generated from the date)"),
			Action: withContainer(func(ctx context.Context, cmd *cli.Command, c *app.Container) error {
				return commands.RunRotateMasterKey(
					ctx, cryptoService.NewKMSService(), c.Logger(), os.Stdout,
					cmd.String("id"), cmd.String("kms-provider"), cmd.String("kms-key-uri"),
					c.Config().MasterKeys, c.Config().ActiveMasterKeyID,
				)
			}),
		},
		{
			Name:  "create-kek",
			Usage: "Create the first key encryption key under the active master key",
			Flags: []cli.Flag{algorithmFlag()},
			Action: withKeks(func(
				ctx context.Context, cmd *cli.Command, c *app.Container,
				uc cryptoUseCase.KekUseCase, chain *cryptoDomain.MasterKeyChain,
			) error {
				return commands.RunCreateKek(ctx, uc, chain, c.Logger(), cmd.String("algorithm"))
			}),
		},
		{
			Name:  "rotate-kek",
			Usage: "Add a new key encryption key version",
			Flags: []cli.Flag{algorithmFlag()},
			Action: withKeks(func(
				ctx context.Context, cmd *cli.Command, c *app.Container,
				uc cryptoUseCase.KekUseCase, chain *cryptoDomain.MasterKeyChain,
			) error {
				return commands.RunRotateKek(ctx, uc, chain, c.Logger(), cmd.String("algorithm"))
			}),
		},
		{
			Name:  "rewrap-keks",
			Usage: "Re-wrap every KEK under the active master key after a master key rotation",
			Action: withKeks(func(
				ctx context.Context, _ *cli.Command, c *app.Container,
				uc cryptoUseCase.KekUseCase, chain *cryptoDomain.MasterKeyChain,
			) error {
				return commands.RunRewrapKeks(ctx, uc, chain, c.Logger())
			}),
		},
		{
			Name:  "rewrap-deks",
			Usage: "Re-wrap every encryption key DEK under the active KEK after a KEK rotation",
			Action: withEncryptionKeys(func(
				ctx context.Context, _ *cli.Command, c *app.Container, uc cryptoUseCase.EncryptionKeyUseCase,
			) error {
				return commands.RunRewrapDeks(ctx, uc, c.Logger())
			}),
		},
		{
			Name:  "create-encryption-key",
			Usage: "Create the versioned encryption key that seals original values",
			Flags: []cli.Flag{algorithmFlag()},
			Action: withEncryptionKeys(func(
				ctx context.Context, cmd *cli.Command, c *app.Container, uc cryptoUseCase.EncryptionKeyUseCase,
			) error {
				return commands.RunCreateEncryptionKey(ctx, uc, c.Logger(), cmd.String("algorithm"))
			}),
		},
		{
			Name:  "rotate-encryption-key",
			Usage: "Add a new encryption key version used for all new values",
			Flags: []cli.Flag{algorithmFlag()},
			Action: withEncryptionKeys(func(
				ctx context.Context, cmd *cli.Command, c *app.Container, uc cryptoUseCase.EncryptionKeyUseCase,
			) error {
				return commands.RunRotateEncryptionKey(ctx, uc, c.Logger(), cmd.String("algorithm"))
			}),
		},
		{
			Name:  "destroy-encryption-key-version",
			Usage: "Destroy a non-active encryption key version; values sealed under it become unreadable",
			Flags: []cli.Flag{
				&cli.IntFlag{Name: "version", Aliases: []string{"v"}, Required: true, Usage: "Version to destroy"},
				&cli.BoolFlag{Name: "confirm", Usage: "Acknowledge that destruction cannot be undone"},
			},
			Action: withEncryptionKeys(func(
				ctx context.Context, cmd *cli.Command, c *app.Container, uc cryptoUseCase.EncryptionKeyUseCase,
			) error {
				return commands.RunDestroyEncryptionKeyVersion(
					ctx, uc, c.Logger(), int(cmd.Int("version")), cmd.Bool("confirm"),
				)
			}),
		},
		{
			Name:  "list-encryption-keys",
			Usage: "List every encryption key version",
			Flags: []cli.Flag{formatFlag()},
			Action: withEncryptionKeys(func(
				ctx context.Context, cmd *cli.Command, _ *app.Container, uc cryptoUseCase.EncryptionKeyUseCase,
			) error {
				return commands.RunListEncryptionKeys(ctx, uc, os.Stdout, cmd.String("format"))
			}),
		},
	}
}
