package usecase_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
	"gocloud.dev/secrets/localsecrets"

	apperrors "github.com/bizmatters/zerotouch-keys/internal/errors"
	"github.com/bizmatters/zerotouch-keys/internal/keys/repository"
	keysService "github.com/bizmatters/zerotouch-keys/internal/keys/service"
	"github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
	"github.com/bizmatters/zerotouch-keys/internal/storage"
)

// stepClock advances one second per reading so consecutive backups get
// distinct timestamps.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// flakyStore fails the failOnWrite-th Write call (1-based).
type flakyStore struct {
	storage.ObjectStore

	mu          sync.Mutex
	failOnWrite int
	writes      int
}

func (f *flakyStore) Write(ctx context.Context, key string, data []byte) error {
	f.mu.Lock()
	f.writes++
	fail := f.writes == f.failOnWrite
	f.mu.Unlock()

	if fail {
		return fmt.Errorf("write %s: %w", key, apperrors.ErrUnavailable)
	}
	return f.ObjectStore.Write(ctx, key, data)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestSealer(t *testing.T) keysService.Sealer {
	t.Helper()
	key, err := localsecrets.NewRandomKey()
	require.NoError(t, err)
	sealer := keysService.NewKeeperSealer(localsecrets.NewKeeper(key))
	t.Cleanup(func() { _ = sealer.Close() })
	return sealer
}

func newMemStore(t *testing.T) storage.ObjectStore {
	t.Helper()
	store := storage.NewBlobStore(memblob.OpenBucket(nil), "")
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// fixture wires the real key pipeline over an in-memory bucket, a local
// keeper and an encryption-rule file in a temp dir.
type fixture struct {
	objects    storage.ObjectStore
	keyStore   *repository.SealedKeyStore
	recipients *repository.FileRecipientConfig
	cipher     keysService.Cipher
	clock      *stepClock
	vault      usecase.BackupVaultUseCase
	lifecycle  usecase.KeyLifecycleUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		objects:    newMemStore(t),
		recipients: repository.NewFileRecipientConfig(filepath.Join(t.TempDir(), ".sops.yaml")),
		cipher:     keysService.NewAgeCipher(),
		clock:      newStepClock(),
	}
	f.keyStore = repository.NewSealedKeyStore(f.objects, newTestSealer(t))
	f.vault = usecase.NewBackupVaultUseCase(f.objects, f.cipher, nil, discardLogger(), f.clock.Now)
	f.lifecycle = f.newLifecycle()
	return f
}

// newLifecycle returns a lifecycle sharing the fixture's state but with an empty cache,
// like a second process run.
func (f *fixture) newLifecycle() usecase.KeyLifecycleUseCase {
	return usecase.NewKeyLifecycleUseCase(f.keyStore, f.recipients, f.vault, f.cipher, discardLogger())
}
