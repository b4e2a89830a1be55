package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

// RunBackupKeys writes a fresh envelope backup of the current key of env and
// moves the ACTIVE pointer to it. It never creates a key.
func RunBackupKeys(
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

	logger.Info("backing up keypair", slog.String("environment", env.String()))

	ref, err := keyLifecycle.BackupCurrent(ctx, env)
	if err != nil {
		return fmt.Errorf("failed to back up keypair: %w", err)
	}

	if format == "json" {
		return writeJSON(writer, backupJSON(*ref))
	}

	_, _ = fmt.Fprintf(writer, "Environment: %s\n", env)
	_, _ = fmt.Fprintf(writer, "Backup:      %s\n", ref.Timestamp)
	_, _ = fmt.Fprintf(writer, "Created At:  %s\n", ref.CreatedAt.Format(time.RFC3339))
	return nil
}

type backupOutput struct {
	Environment string `json:"environment"`
	Timestamp   string `json:"timestamp"`
	CreatedAt   string `json:"created_at"`
}

func backupJSON(ref keysDomain.BackupRef) backupOutput {
	return backupOutput{
		Environment: ref.Environment.String(),
		Timestamp:   ref.Timestamp,
		CreatedAt:   ref.CreatedAt.Format(time.RFC3339),
	}
}
