package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	secretsUseCase "github.com/bizmatters/zerotouch-keys/internal/secrets/usecase"
)

// RunVerifySecrets checks that every artifact listed by the generator manifest
// of each env decrypts with the active key and that no unlisted artifact is
// present. All environments are checked before the command fails.
func RunVerifySecrets(
	ctx context.Context,
	secretEncryption secretsUseCase.SecretEncryptionUseCase,
	logger *slog.Logger,
	writer io.Writer,
	envs []keysDomain.Environment,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	type verifyOutput struct {
		Environment string   `json:"environment"`
		Recipient   string   `json:"recipient,omitempty"`
		Files       []string `json:"files,omitempty"`
		Passed      bool     `json:"passed"`
		Error       string   `json:"error,omitempty"`
	}

	var (
		failures *multierror.Error
		out      []verifyOutput
	)
	for _, env := range envs {
		result, err := secretEncryption.Verify(ctx, env)
		if err != nil {
			logger.Error("verification failed", slog.String("environment", env.String()), slog.Any("error", err))
			failures = multierror.Append(failures, fmt.Errorf("%s: %w", env, err))
			out = append(out, verifyOutput{Environment: env.String(), Error: err.Error()})
			continue
		}
		out = append(out, verifyOutput{
			Environment: env.String(),
			Recipient:   result.Recipient,
			Files:       result.Files,
			Passed:      true,
		})
	}

	if format == "json" {
		if err := writeJSON(writer, out); err != nil {
			return err
		}
	} else {
		for _, o := range out {
			if o.Passed {
				_, _ = fmt.Fprintf(writer, "%s: PASSED (%d artifacts, recipient %s)\n", o.Environment, len(o.Files), o.Recipient)
			} else {
				_, _ = fmt.Fprintf(writer, "%s: FAILED\n  %s\n", o.Environment, o.Error)
			}
		}
	}

	if err := failures.ErrorOrNil(); err != nil {
		return fmt.Errorf("secret verification failed: %w", err)
	}
	return nil
}
