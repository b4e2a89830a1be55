package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"
	"time"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

// RunListBackups prints the timestamped backups of env, newest first.
func RunListBackups(
	ctx context.Context,
	vault keysUseCase.BackupVaultUseCase,
	logger *slog.Logger,
	writer io.Writer,
	env keysDomain.Environment,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	refs, err := vault.List(ctx, env)
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}

	logger.Info("backups listed", slog.String("environment", env.String()), slog.Int("count", len(refs)))

	if format == "json" {
		out := make([]backupOutput, 0, len(refs))
		for _, ref := range refs {
			out = append(out, backupJSON(ref))
		}
		return writeJSON(writer, out)
	}

	if len(refs) == 0 {
		_, _ = fmt.Fprintf(writer, "No backups found for %s\n", env)
		return nil
	}

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIMESTAMP\tCREATED AT")
	for _, ref := range refs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", ref.Timestamp, ref.CreatedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}
