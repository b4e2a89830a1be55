package main

import (
	"context"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/bizmatters/zerotouch-keys/cmd/app/commands"
)

func getSecretCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "regenerate-secrets",
			Usage: "Rebuild the encrypted secret artifacts of one or more environments",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:     "env",
					Aliases:  []string{"e"},
					Required: true,
					Usage:    "Environment name; repeat for several environments",
				},
				&cli.StringSliceFlag{
					Name:     "source",
					Aliases:  []string{"s"},
					Required: true,
					Usage:    "name=value source file; repeat to merge several, later files win",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				envs, err := commands.ParseEnvironments(cmd.StringSlice("env"), container.Config().Environments)
				if err != nil {
					return err
				}
				defer finish(ctx, container, strings.Join(cmd.StringSlice("env"), ","))

				secretEncryption, err := container.SecretEncryptionUseCase()
				if err != nil {
					return err
				}

				return commands.RunRegenerateSecrets(
					ctx,
					secretEncryption,
					container.Logger(),
					commands.DefaultIO().Writer,
					envs,
					cmd.StringSlice("source"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "verify-secrets",
			Usage: "Check that every generated artifact decrypts with the active key",
			Flags: []cli.Flag{
				&cli.StringSliceFlag{
					Name:    "env",
					Aliases: []string{"e"},
					Usage:   "Environment name; repeat for several (default: every configured environment)",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				names := cmd.StringSlice("env")
				if len(names) == 0 {
					names = container.Config().Environments
				}
				envs, err := commands.ParseEnvironments(names, container.Config().Environments)
				if err != nil {
					return err
				}
				defer finish(ctx, container, strings.Join(names, ","))

				secretEncryption, err := container.SecretEncryptionUseCase()
				if err != nil {
					return err
				}

				return commands.RunVerifySecrets(
					ctx,
					secretEncryption,
					container.Logger(),
					commands.DefaultIO().Writer,
					envs,
					cmd.String("format"),
				)
			},
		},
	}
}
