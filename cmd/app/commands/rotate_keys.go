package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

// RunRotateKeys replaces the keypair of env. The new key is backed up before
// it overwrites the stored one; older timestamped backups are kept so
// artifacts encrypted to the previous recipient stay recoverable.
//
// Every artifact of env must be regenerated afterwards.
func RunRotateKeys(
	ctx context.Context,
	keyLifecycle keysUseCase.KeyLifecycleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	env keysDomain.Environment,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("rotating keypair", slog.String("environment", env.String()))

	pair, err := keyLifecycle.Rotate(ctx, env)
	if err != nil {
		return fmt.Errorf("failed to rotate keypair: %w", err)
	}
	defer pair.Zero()

	if err := outputPublicKey(writer, env, pair.PublicKey, format); err != nil {
		return err
	}
	if format == "text" {
		_, _ = fmt.Fprintf(writer, "\nRun regenerate-secrets --env %s to re-encrypt the artifacts.\n", env)
	}
	return nil
}
