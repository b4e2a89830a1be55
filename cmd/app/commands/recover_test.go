package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysUseCase "github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
	keysMocks "github.com/bizmatters/zerotouch-keys/internal/keys/usecase/mocks"
)

const testPrivateKey = "AGE-SECRET-KEY-1QQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQQ"

func TestRunRecover(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()

	t.Run("active", func(t *testing.T) {
		mockUseCase := keysMocks.NewMockRecoveryUseCase(t)
		mockUseCase.On("Recover", ctx, keysDomain.Environment("dev")).Return(&keysUseCase.RecoveryResult{
			Environment: "dev",
			PublicKey:   testPublicKey,
			Source:      keysDomain.ActiveTimestamp,
			Target:      "sops-age/dev",
		}, nil)

		var out bytes.Buffer
		err := RunRecover(ctx, mockUseCase, logger, IOTuple{Writer: &out}, "dev", RecoverOptions{Format: "text"})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Source:      "+keysDomain.ActiveTimestamp)
		assert.Contains(t, out.String(), "Injected To: sops-age/dev")
		assert.NotContains(t, out.String(), "Audit Record")
	})

	t.Run("timestamp", func(t *testing.T) {
		mockUseCase := keysMocks.NewMockRecoveryUseCase(t)
		mockUseCase.On("RecoverAt", ctx, keysDomain.Environment("dev"), "20260101-000000").
			Return(&keysUseCase.RecoveryResult{Environment: "dev", PublicKey: testPublicKey, Source: "20260101-000000"}, nil)

		var out bytes.Buffer
		err := RunRecover(ctx, mockUseCase, logger, IOTuple{Writer: &out}, "dev",
			RecoverOptions{Timestamp: "20260101-000000", Format: "json"})
		require.NoError(t, err)

		var result map[string]string
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		assert.Equal(t, "20260101-000000", result["source"])
	})

	t.Run("stdin-break-glass", func(t *testing.T) {
		mockUseCase := keysMocks.NewMockRecoveryUseCase(t)
		opts := keysUseCase.BreakGlassOptions{SelfTest: true, Operator: "alice", Reason: "kms outage"}
		mockUseCase.On("BreakGlass", ctx, keysDomain.Environment("prod"), []byte(testPrivateKey+"\n"), opts).
			Return(&keysUseCase.RecoveryResult{
				Environment:    "prod",
				PublicKey:      testPublicKey,
				Source:         "break-glass",
				PreviousBackup: "20260301-123045",
				AuditID:        "audit-1",
			}, nil)

		var out bytes.Buffer
		streams := IOTuple{Reader: strings.NewReader(testPrivateKey + "\n"), Writer: &out}
		err := RunRecover(ctx, mockUseCase, logger, streams, "prod", RecoverOptions{
			Stdin:    true,
			SelfTest: true,
			Operator: "alice",
			Reason:   "kms outage",
			Format:   "text",
		})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Previous Key Backup: 20260301-123045")
		assert.Contains(t, out.String(), "Audit Record: audit-1")
	})

	t.Run("file-break-glass", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "key.txt")
		require.NoError(t, os.WriteFile(path, []byte(testPrivateKey), 0o600))

		mockUseCase := keysMocks.NewMockRecoveryUseCase(t)
		mockUseCase.On("BreakGlass", ctx, keysDomain.Environment("dev"), mock.Anything, keysUseCase.BreakGlassOptions{}).
			Return(&keysUseCase.RecoveryResult{Environment: "dev", PublicKey: testPublicKey, Source: "break-glass"}, nil)

		var out bytes.Buffer
		err := RunRecover(ctx, mockUseCase, logger, IOTuple{Writer: &out}, "dev", RecoverOptions{File: path, Format: "text"})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "Source:      break-glass")
	})

	t.Run("file-and-stdin", func(t *testing.T) {
		err := RunRecover(ctx, nil, logger, IOTuple{}, "dev", RecoverOptions{File: "key.txt", Stdin: true, Format: "text"})
		assert.ErrorIs(t, err, keysDomain.ErrAmbiguousKeySource)
	})

	t.Run("timestamp-with-key", func(t *testing.T) {
		err := RunRecover(ctx, nil, logger, IOTuple{}, "dev",
			RecoverOptions{Timestamp: "20260101-000000", Stdin: true, Format: "text"})
		assert.ErrorIs(t, err, keysDomain.ErrAmbiguousKeySource)
	})

	t.Run("oversized-input", func(t *testing.T) {
		streams := IOTuple{Reader: strings.NewReader(strings.Repeat("A", maxKeyInput+1)), Writer: &bytes.Buffer{}}
		err := RunRecover(ctx, nil, logger, streams, "dev", RecoverOptions{Stdin: true, Format: "text"})
		assert.ErrorIs(t, err, keysDomain.ErrInvalidPrivateKey)
	})

	t.Run("missing-file", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "missing.txt")
		err := RunRecover(ctx, nil, logger, IOTuple{}, "dev", RecoverOptions{File: missing, Format: "text"})
		assert.ErrorContains(t, err, "failed to open key file")
	})

	t.Run("validation-failure", func(t *testing.T) {
		mockUseCase := keysMocks.NewMockRecoveryUseCase(t)
		mockUseCase.On("Recover", ctx, keysDomain.Environment("dev")).Return(nil, keysDomain.ErrRecoveryValidation)

		err := RunRecover(ctx, mockUseCase, logger, IOTuple{Writer: &bytes.Buffer{}}, "dev", RecoverOptions{Format: "text"})
		assert.ErrorIs(t, err, keysDomain.ErrRecoveryValidation)
	})
}
