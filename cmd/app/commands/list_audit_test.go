package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/bizmatters/zerotouch-keys/internal/audit"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	keysMocks "github.com/bizmatters/zerotouch-keys/internal/keys/usecase/mocks"
	"github.com/bizmatters/zerotouch-keys/internal/storage"
)

type auditFixture struct {
	store    storage.ObjectStore
	recorder *audit.Recorder
	cipher   keysService.Cipher
	live     *keysDomain.KeyPair
	other    *keysDomain.KeyPair
}

func newAuditFixture(t *testing.T) *auditFixture {
	t.Helper()
	ctx := context.Background()
	cipher := keysService.NewAgeCipher()
	store := storage.NewBlobStore(memblob.OpenBucket(nil), "")

	now := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}
	recorder := audit.NewRecorder(store, audit.NewSigner(), clock)

	other, err := cipher.Generate()
	require.NoError(t, err)
	live, err := cipher.Generate()
	require.NoError(t, err)

	require.NoError(t, recorder.Write(ctx, other.PrivateKey, &audit.Record{
		Environment: "prod", Action: audit.ActionBreakGlass, Operator: "bob", PublicKey: other.PublicKey,
	}))
	require.NoError(t, recorder.Write(ctx, live.PrivateKey, &audit.Record{
		Environment: "prod", Action: audit.ActionBreakGlass, Operator: "alice", Reason: "kms outage",
		PublicKey: live.PublicKey, PreviousPublicKey: other.PublicKey, PreviousBackup: "20260501-100200", SelfTest: true,
	}))

	return &auditFixture{store: store, recorder: recorder, cipher: cipher, live: live, other: other}
}

// liveContext returns a mock serving a copy of the live key, which the command zeroes.
func (f *auditFixture) liveContext(t *testing.T) *keysMocks.MockLiveContext {
	live := keysMocks.NewMockLiveContext(t)
	live.On("Current", context.Background(), "prod").
		Return(append([]byte(nil), f.live.PrivateKey...), true, nil)
	return live
}

func TestRunListAudit(t *testing.T) {
	ctx := context.Background()
	logger := discardLogger()

	t.Run("list-text", func(t *testing.T) {
		f := newAuditFixture(t)

		var out bytes.Buffer
		err := RunListAudit(ctx, f.recorder, nil, f.cipher, logger, &out, "prod", false, "text")
		require.NoError(t, err)

		lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
		require.Len(t, lines, 3)
		assert.Contains(t, string(lines[0]), "SIGNATURE")
		assert.Contains(t, string(lines[1]), "bob")
		assert.Contains(t, string(lines[2]), "alice")
		assert.Contains(t, string(lines[2]), "20260501-100200")
		assert.Contains(t, string(lines[2]), "kms outage")
	})

	t.Run("verify-json", func(t *testing.T) {
		f := newAuditFixture(t)

		var out bytes.Buffer
		err := RunListAudit(ctx, f.recorder, f.liveContext(t), f.cipher, logger, &out, "prod", true, "json")
		require.NoError(t, err)

		var result []auditOutput
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
		require.Len(t, result, 2)
		assert.Equal(t, signatureUnchecked, result[0].Signature)
		assert.Equal(t, signatureValid, result[1].Signature)
		assert.Equal(t, f.live.PublicKey, result[1].PublicKey)
		assert.True(t, result[1].SelfTest)
	})

	t.Run("verify-detects-edited-record", func(t *testing.T) {
		f := newAuditFixture(t)

		keys, err := f.store.List(ctx, "prod/audit/")
		require.NoError(t, err)
		require.Len(t, keys, 2)
		data, err := f.store.Read(ctx, keys[1])
		require.NoError(t, err)
		var rec audit.Record
		require.NoError(t, json.Unmarshal(data, &rec))
		rec.Reason = "routine maintenance"
		edited, err := json.Marshal(&rec)
		require.NoError(t, err)
		require.NoError(t, f.store.Write(ctx, keys[1], edited))

		var out bytes.Buffer
		err = RunListAudit(ctx, f.recorder, f.liveContext(t), f.cipher, logger, &out, "prod", true, "text")
		assert.ErrorIs(t, err, audit.ErrSignatureInvalid)
		assert.ErrorContains(t, err, "1 audit records failed verification")
		assert.Contains(t, out.String(), signatureInvalid)
		assert.Contains(t, out.String(), "routine maintenance")
	})

	t.Run("verify-without-live-key", func(t *testing.T) {
		f := newAuditFixture(t)
		live := keysMocks.NewMockLiveContext(t)
		live.On("Current", ctx, "prod").Return(nil, false, nil)
		live.On("Describe", "prod").Return("sops-age/prod")

		var out bytes.Buffer
		err := RunListAudit(ctx, f.recorder, live, f.cipher, logger, &out, "prod", true, "text")
		assert.ErrorIs(t, err, keysDomain.ErrKeyNotFound)
		assert.ErrorContains(t, err, "no key in sops-age/prod")
		assert.Empty(t, out.String())
	})

	t.Run("verify-live-context-unavailable", func(t *testing.T) {
		f := newAuditFixture(t)
		live := keysMocks.NewMockLiveContext(t)
		live.On("Current", ctx, "prod").Return(nil, false, errors.New("connection refused"))
		live.On("Describe", "prod").Return("sops-age/prod")

		err := RunListAudit(ctx, f.recorder, live, f.cipher, logger, &bytes.Buffer{}, "prod", true, "text")
		assert.ErrorContains(t, err, "failed to read sops-age/prod: connection refused")
	})

	t.Run("empty", func(t *testing.T) {
		f := newAuditFixture(t)

		var out bytes.Buffer
		require.NoError(t, RunListAudit(ctx, f.recorder, nil, f.cipher, logger, &out, "dev", true, "text"))
		assert.Equal(t, "No audit records found for dev\n", out.String())
	})

	t.Run("invalid-format", func(t *testing.T) {
		err := RunListAudit(ctx, nil, nil, nil, logger, &bytes.Buffer{}, "prod", false, "yaml")
		assert.ErrorContains(t, err, "invalid format")
	})
}
