package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

// RunGenerateKeys returns the keypair of env, creating it on first use. A new
// key is backed up (four envelope writes) before it is stored and before its
// recipient is recorded in the encryption rules. Running it again is a no-op
// that prints the same public key.
//
// With adopt, a key that exists in the key store but is missing from the
// encryption rules is recorded instead of rejected.
func RunGenerateKeys(
	ctx context.Context,
	keyLifecycle keysUseCase.KeyLifecycleUseCase,
	logger *slog.Logger,
	writer io.Writer,
	env keysDomain.Environment,
	adopt bool,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("ensuring keypair", slog.String("environment", env.String()), slog.Bool("adopt", adopt))

	pair, err := keyLifecycle.EnsureKeyPair(ctx, env, keysUseCase.EnsureOptions{Adopt: adopt})
	if err != nil {
		return fmt.Errorf("failed to ensure keypair: %w", err)
	}
	defer pair.Zero()

	return outputPublicKey(writer, env, pair.PublicKey, format)
}

// outputPublicKey prints the recipient of env.
func outputPublicKey(writer io.Writer, env keysDomain.Environment, publicKey, format string) error {
	if format == "json" {
		return writeJSON(writer, map[string]string{
			"environment": env.String(),
			"public_key":  publicKey,
		})
	}

	_, _ = fmt.Fprintf(writer, "Environment: %s\n", env)
	_, _ = fmt.Fprintf(writer, "Public Key:  %s\n", publicKey)
	return nil
}
