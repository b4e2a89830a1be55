package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/bizmatters/zerotouch-keys/cmd/app/commands"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

func getKeyCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "generate-keys",
			Usage: "Create the keypair of an environment, or print the existing public key",
			Flags: []cli.Flag{
				envFlag(),
				&cli.BoolFlag{
					Name:  "adopt",
					Value: false,
					Usage: "Record the recipient of a stored key that is missing from the encryption rules",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				env, err := commands.ParseEnvironment(cmd.String("env"), container.Config().Environments)
				if err != nil {
					return err
				}
				defer finish(ctx, container, env.String())

				keyLifecycle, err := container.KeyLifecycleUseCase()
				if err != nil {
					return err
				}

				return commands.RunGenerateKeys(
					ctx,
					keyLifecycle,
					container.Logger(),
					commands.DefaultIO().Writer,
					env,
					cmd.Bool("adopt"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "rotate-keys",
			Usage: "Replace the keypair of an environment with a new backed-up one",
			Flags: []cli.Flag{
				envFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				env, err := commands.ParseEnvironment(cmd.String("env"), container.Config().Environments)
				if err != nil {
					return err
				}
				defer finish(ctx, container, env.String())

				keyLifecycle, err := container.KeyLifecycleUseCase()
				if err != nil {
					return err
				}

				return commands.RunRotateKeys(
					ctx,
					keyLifecycle,
					container.Logger(),
					commands.DefaultIO().Writer,
					env,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "backup-keys",
			Usage: "Write a new encrypted backup of the current keypair",
			Flags: []cli.Flag{
				envFlag(),
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				env, err := commands.ParseEnvironment(cmd.String("env"), container.Config().Environments)
				if err != nil {
					return err
				}
				defer finish(ctx, container, env.String())

				keyLifecycle, err := container.KeyLifecycleUseCase()
				if err != nil {
					return err
				}

				return commands.RunBackupKeys(
					ctx,
					keyLifecycle,
					container.Logger(),
					commands.DefaultIO().Writer,
					env,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-backups",
			Usage: "List the timestamped backups of an environment",
			Flags: []cli.Flag{
				envFlag(),
				&cli.BoolFlag{
					Name:  "break-glass",
					Value: false,
					Usage: "List the local break-glass backups instead of the object store backups",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				env, err := commands.ParseEnvironment(cmd.String("env"), container.Config().Environments)
				if err != nil {
					return err
				}
				defer finish(ctx, container, env.String())

				var vault keysUseCase.BackupVaultUseCase
				if cmd.Bool("break-glass") {
					vault, err = container.BreakGlassVaultUseCase()
				} else {
					vault, err = container.BackupVaultUseCase()
				}
				if err != nil {
					return err
				}

				return commands.RunListBackups(
					ctx,
					vault,
					container.Logger(),
					commands.DefaultIO().Writer,
					env,
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "list-audit",
			Usage: "List the break-glass audit records of an environment",
			Flags: []cli.Flag{
				envFlag(),
				&cli.BoolFlag{
					Name:  "verify",
					Value: false,
					Usage: "Check record signatures against the key in the live decryption context",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				env, err := commands.ParseEnvironment(cmd.String("env"), container.Config().Environments)
				if err != nil {
					return err
				}
				defer finish(ctx, container, env.String())

				auditLog, err := container.AuditRecorder()
				if err != nil {
					return err
				}

				var live keysUseCase.LiveContext
				if cmd.Bool("verify") {
					live, err = container.LiveContext()
					if err != nil {
						return err
					}
				}

				return commands.RunListAudit(
					ctx,
					auditLog,
					live,
					container.Cipher(),
					container.Logger(),
					commands.DefaultIO().Writer,
					env,
					cmd.Bool("verify"),
					cmd.String("format"),
				)
			},
		},
		{
			Name:  "recover",
			Usage: "Restore the key of an environment into the live decryption context",
			Flags: []cli.Flag{
				envFlag(),
				&cli.StringFlag{
					Name:    "timestamp",
					Aliases: []string{"t"},
					Usage:   "Backup timestamp to restore (default: the ACTIVE backup)",
				},
				&cli.StringFlag{
					Name:  "file",
					Usage: "Break-glass: read the private key from this file",
				},
				&cli.BoolFlag{
					Name:  "stdin",
					Value: false,
					Usage: "Break-glass: read the private key from standard input",
				},
				&cli.BoolFlag{
					Name:  "self-test",
					Value: false,
					Usage: "Break-glass: encrypt and decrypt a test message with the key before injecting it",
				},
				&cli.StringFlag{
					Name:    "operator",
					Usage:   "Break-glass: operator recorded in the audit record",
					Sources: cli.EnvVars("USER"),
				},
				&cli.StringFlag{
					Name:  "reason",
					Usage: "Break-glass: reason recorded in the audit record",
				},
				formatFlag(),
			},
			Action: func(ctx context.Context, cmd *cli.Command) error {
				container, err := newContainer()
				if err != nil {
					return err
				}
				env, err := commands.ParseEnvironment(cmd.String("env"), container.Config().Environments)
				if err != nil {
					return err
				}
				defer finish(ctx, container, env.String())

				recovery, err := container.RecoveryUseCase()
				if err != nil {
					return err
				}

				return commands.RunRecover(
					ctx,
					recovery,
					container.Logger(),
					commands.DefaultIO(),
					env,
					commands.RecoverOptions{
						Timestamp: cmd.String("timestamp"),
						File:      cmd.String("file"),
						Stdin:     cmd.Bool("stdin"),
						SelfTest:  cmd.Bool("self-test"),
						Operator:  cmd.String("operator"),
						Reason:    cmd.String("reason"),
						Format:    cmd.String("format"),
					},
				)
			},
		},
	}
}
