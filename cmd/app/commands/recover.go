package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

// maxKeyInput bounds how much is read from a break-glass key source.
const maxKeyInput = 64 * 1024

// RecoverOptions holds the recover command flags.
type RecoverOptions struct {
	// Timestamp selects a backup; empty means ACTIVE.
	Timestamp string
	// File is the path of an operator-supplied key file.
	File string
	// Stdin reads the operator-supplied key from standard input.
	Stdin    bool
	SelfTest bool
	Operator string
	Reason   string
	Format   string
}

// RunRecover restores the key of env into the live decryption context.
//
// Without a key source the backup (ACTIVE or --timestamp) is fetched from the
// object store, decrypted and validated against the encryption rules. With
// --file or --stdin the operator-supplied key is injected as break-glass
// recovery: the previous live key is backed up locally and a signed audit
// record is written.
func RunRecover(
	ctx context.Context,
	recovery keysUseCase.RecoveryUseCase,
	logger *slog.Logger,
	streams IOTuple,
	env keysDomain.Environment,
	opts RecoverOptions,
) error {
	if err := validateFormat(opts.Format); err != nil {
		return err
	}
	if opts.File != "" && opts.Stdin {
		return fmt.Errorf("--file and --stdin: %w", keysDomain.ErrAmbiguousKeySource)
	}
	breakGlass := opts.File != "" || opts.Stdin
	if breakGlass && opts.Timestamp != "" {
		return fmt.Errorf("--timestamp with an operator-supplied key: %w", keysDomain.ErrAmbiguousKeySource)
	}

	var (
		result *keysUseCase.RecoveryResult
		err    error
	)
	switch {
	case breakGlass:
		result, err = runBreakGlass(ctx, recovery, logger, streams.Reader, env, opts)
	case opts.Timestamp != "":
		logger.Info("recovering key", slog.String("environment", env.String()), slog.String("timestamp", opts.Timestamp))
		result, err = recovery.RecoverAt(ctx, env, opts.Timestamp)
	default:
		logger.Info("recovering key", slog.String("environment", env.String()), slog.String("timestamp", keysDomain.ActiveTimestamp))
		result, err = recovery.Recover(ctx, env)
	}
	if err != nil {
		return fmt.Errorf("failed to recover key: %w", err)
	}

	return outputRecovery(streams.Writer, result, opts.Format)
}

func runBreakGlass(
	ctx context.Context,
	recovery keysUseCase.RecoveryUseCase,
	logger *slog.Logger,
	stdin io.Reader,
	env keysDomain.Environment,
	opts RecoverOptions,
) (*keysUseCase.RecoveryResult, error) {
	key, err := readKey(stdin, opts)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(key)

	logger.Warn("break-glass recovery requested",
		slog.String("environment", env.String()),
		slog.String("operator", opts.Operator),
		slog.Bool("self_test", opts.SelfTest),
	)

	return recovery.BreakGlass(ctx, env, key, keysUseCase.BreakGlassOptions{
		SelfTest: opts.SelfTest,
		Operator: opts.Operator,
		Reason:   opts.Reason,
	})
}

// readKey reads the operator-supplied key from --file or stdin.
func readKey(stdin io.Reader, opts RecoverOptions) ([]byte, error) {
	var source io.Reader
	if opts.Stdin {
		if stdin == nil {
			return nil, fmt.Errorf("no standard input available")
		}
		source = stdin
	} else {
		f, err := os.Open(opts.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open key file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		source = f
	}

	key, err := io.ReadAll(io.LimitReader(source, maxKeyInput+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}
	if len(key) > maxKeyInput {
		keysDomain.Zero(key)
		return nil, fmt.Errorf("%w: key input larger than %d bytes", keysDomain.ErrInvalidPrivateKey, maxKeyInput)
	}
	return key, nil
}

func outputRecovery(writer io.Writer, result *keysUseCase.RecoveryResult, format string) error {
	if format == "json" {
		return writeJSON(writer, map[string]string{
			"environment":     result.Environment.String(),
			"public_key":      result.PublicKey,
			"source":          result.Source,
			"target":          result.Target,
			"previous_backup": result.PreviousBackup,
			"audit_id":        result.AuditID,
		})
	}

	_, _ = fmt.Fprintf(writer, "Environment: %s\n", result.Environment)
	_, _ = fmt.Fprintf(writer, "Public Key:  %s\n", result.PublicKey)
	_, _ = fmt.Fprintf(writer, "Source:      %s\n", result.Source)
	_, _ = fmt.Fprintf(writer, "Injected To: %s\n", result.Target)
	if result.PreviousBackup != "" {
		_, _ = fmt.Fprintf(writer, "Previous Key Backup: %s\n", result.PreviousBackup)
	}
	if result.AuditID != "" {
		_, _ = fmt.Fprintf(writer, "Audit Record: %s\n", result.AuditID)
	}
	return nil
}
