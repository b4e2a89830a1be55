package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	"github.com/bizmatters/zerotouch-keys/internal/mapping"
	secretsUseCase "github.com/bizmatters/zerotouch-keys/internal/secrets/usecase"
)

// RunRegenerateSecrets rebuilds the encrypted artifact set of every env from
// the name=value source files. Each environment directory is replaced as a
// whole; a failed environment keeps its previous artifacts and the command
// fails after all environments were attempted.
func RunRegenerateSecrets(
	ctx context.Context,
	secretEncryption secretsUseCase.SecretEncryptionUseCase,
	logger *slog.Logger,
	writer io.Writer,
	envs []keysDomain.Environment,
	sources []string,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}
	if len(sources) == 0 {
		return fmt.Errorf("at least one --source file is required")
	}

	values, err := mapping.LoadSourceFiles(sources...)
	if err != nil {
		return err
	}

	logger.Info("regenerating secrets",
		slog.Int("environments", len(envs)),
		slog.Int("sources", len(sources)),
		slog.Int("values", len(values)),
	)

	var (
		results []*secretsUseCase.RegenerateResult
		runErr  error
	)
	if len(envs) == 1 {
		var result *secretsUseCase.RegenerateResult
		result, runErr = secretEncryption.Regenerate(ctx, envs[0], values)
		if result != nil {
			results = append(results, result)
		}
	} else {
		results, runErr = secretEncryption.RegenerateAll(ctx, envs, values)
	}

	if format == "json" {
		if err := outputRegenerateJSON(writer, results); err != nil {
			return err
		}
	} else {
		outputRegenerateText(writer, results)
	}

	if runErr != nil {
		return fmt.Errorf("failed to regenerate secrets: %w", runErr)
	}
	return nil
}

func outputRegenerateText(writer io.Writer, results []*secretsUseCase.RegenerateResult) {
	for i, result := range results {
		if i > 0 {
			_, _ = fmt.Fprintln(writer)
		}
		_, _ = fmt.Fprintf(writer, "Environment: %s\n", result.Environment)
		_, _ = fmt.Fprintf(writer, "Recipient:   %s\n", result.Recipient)
		_, _ = fmt.Fprintf(writer, "Directory:   %s\n", result.Dir)
		_, _ = fmt.Fprintf(writer, "Artifacts:   %d\n", len(result.Files))
		for _, file := range result.Files {
			_, _ = fmt.Fprintf(writer, "  - %s\n", file)
		}
		if len(result.Rejections) > 0 {
			_, _ = fmt.Fprintf(writer, "Skipped:     %d\n", len(result.Rejections))
			for _, r := range result.Rejections {
				_, _ = fmt.Fprintf(writer, "  - %s: %s\n", r.Source, r.Reason)
			}
		}
	}
}

type rejectionOutput struct {
	Source string `json:"source"`
	Secret string `json:"secret,omitempty"`
	Reason string `json:"reason"`
}

type regenerateOutput struct {
	Environment string            `json:"environment"`
	Recipient   string            `json:"recipient"`
	Dir         string            `json:"dir"`
	Files       []string          `json:"files"`
	Rejections  []rejectionOutput `json:"rejections"`
}

func outputRegenerateJSON(writer io.Writer, results []*secretsUseCase.RegenerateResult) error {
	out := make([]regenerateOutput, 0, len(results))
	for _, result := range results {
		item := regenerateOutput{
			Environment: result.Environment.String(),
			Recipient:   result.Recipient,
			Dir:         result.Dir,
			Files:       result.Files,
			Rejections:  make([]rejectionOutput, 0, len(result.Rejections)),
		}
		for _, r := range result.Rejections {
			item.Rejections = append(item.Rejections, rejectionOutput{Source: r.Source, Secret: r.Secret, Reason: r.Reason})
		}
		out = append(out, item)
	}
	return writeJSON(writer, out)
}
