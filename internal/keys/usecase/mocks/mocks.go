// Package mocks provides testify mocks for the key use case interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/bizmatters/zerotouch-keys/internal/audit"
	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	"github.com/bizmatters/zerotouch-keys/internal/keys/usecase"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockKeyLifecycleUseCase is a mock of usecase.KeyLifecycleUseCase.
type MockKeyLifecycleUseCase struct {
	mock.Mock
}

// NewMockKeyLifecycleUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockKeyLifecycleUseCase(t testingT) *MockKeyLifecycleUseCase {
	m := &MockKeyLifecycleUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockKeyLifecycleUseCase) EnsureKeyPair(
	ctx context.Context,
	env keysDomain.Environment,
	opts usecase.EnsureOptions,
) (*keysDomain.KeyPair, error) {
	args := m.Called(ctx, env, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.KeyPair), args.Error(1)
}

func (m *MockKeyLifecycleUseCase) Rotate(ctx context.Context, env keysDomain.Environment) (*keysDomain.KeyPair, error) {
	args := m.Called(ctx, env)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.KeyPair), args.Error(1)
}

func (m *MockKeyLifecycleUseCase) BackupCurrent(
	ctx context.Context,
	env keysDomain.Environment,
) (*keysDomain.BackupRef, error) {
	args := m.Called(ctx, env)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.BackupRef), args.Error(1)
}

func (m *MockKeyLifecycleUseCase) PublicKey(ctx context.Context, env keysDomain.Environment) (string, error) {
	args := m.Called(ctx, env)
	return args.String(0), args.Error(1)
}

// MockBackupVaultUseCase is a mock of usecase.BackupVaultUseCase.
type MockBackupVaultUseCase struct {
	mock.Mock
}

// NewMockBackupVaultUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockBackupVaultUseCase(t testingT) *MockBackupVaultUseCase {
	m := &MockBackupVaultUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockBackupVaultUseCase) Backup(
	ctx context.Context,
	env keysDomain.Environment,
	primary []byte,
) (*keysDomain.BackupArtifact, error) {
	args := m.Called(ctx, env, primary)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.BackupArtifact), args.Error(1)
}

func (m *MockBackupVaultUseCase) List(ctx context.Context, env keysDomain.Environment) ([]keysDomain.BackupRef, error) {
	args := m.Called(ctx, env)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]keysDomain.BackupRef), args.Error(1)
}

func (m *MockBackupVaultUseCase) Load(
	ctx context.Context,
	env keysDomain.Environment,
	ts string,
) (*keysDomain.BackupArtifact, error) {
	args := m.Called(ctx, env, ts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*keysDomain.BackupArtifact), args.Error(1)
}

func (m *MockBackupVaultUseCase) Open(ctx context.Context, artifact *keysDomain.BackupArtifact) ([]byte, error) {
	args := m.Called(ctx, artifact)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// MockRecoveryUseCase is a mock of usecase.RecoveryUseCase.
type MockRecoveryUseCase struct {
	mock.Mock
}

// NewMockRecoveryUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockRecoveryUseCase(t testingT) *MockRecoveryUseCase {
	m := &MockRecoveryUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRecoveryUseCase) Recover(ctx context.Context, env keysDomain.Environment) (*usecase.RecoveryResult, error) {
	args := m.Called(ctx, env)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RecoveryResult), args.Error(1)
}

func (m *MockRecoveryUseCase) RecoverAt(
	ctx context.Context,
	env keysDomain.Environment,
	ts string,
) (*usecase.RecoveryResult, error) {
	args := m.Called(ctx, env, ts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RecoveryResult), args.Error(1)
}

func (m *MockRecoveryUseCase) BreakGlass(
	ctx context.Context,
	env keysDomain.Environment,
	privateKey []byte,
	opts usecase.BreakGlassOptions,
) (*usecase.RecoveryResult, error) {
	args := m.Called(ctx, env, privateKey, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RecoveryResult), args.Error(1)
}

// MockKeyStore is a mock of usecase.KeyStore.
type MockKeyStore struct {
	mock.Mock
}

// NewMockKeyStore creates a mock whose expectations are asserted on cleanup.
func NewMockKeyStore(t testingT) *MockKeyStore {
	m := &MockKeyStore{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockKeyStore) Exists(ctx context.Context, env keysDomain.Environment) (bool, error) {
	args := m.Called(ctx, env)
	return args.Bool(0), args.Error(1)
}

func (m *MockKeyStore) Fetch(ctx context.Context, env keysDomain.Environment) ([]byte, error) {
	args := m.Called(ctx, env)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockKeyStore) Store(ctx context.Context, env keysDomain.Environment, privateKey []byte) error {
	args := m.Called(ctx, env, privateKey)
	return args.Error(0)
}

// MockRecipientConfig is a mock of usecase.RecipientConfig.
type MockRecipientConfig struct {
	mock.Mock
}

// NewMockRecipientConfig creates a mock whose expectations are asserted on cleanup.
func NewMockRecipientConfig(t testingT) *MockRecipientConfig {
	m := &MockRecipientConfig{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRecipientConfig) RecipientFor(env keysDomain.Environment) (string, bool, error) {
	args := m.Called(env)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockRecipientConfig) SetRecipient(env keysDomain.Environment, recipient string) error {
	args := m.Called(env, recipient)
	return args.Error(0)
}

// MockLiveContext is a mock of usecase.LiveContext.
type MockLiveContext struct {
	mock.Mock
}

// NewMockLiveContext creates a mock whose expectations are asserted on cleanup.
func NewMockLiveContext(t testingT) *MockLiveContext {
	m := &MockLiveContext{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockLiveContext) Current(ctx context.Context, env string) ([]byte, bool, error) {
	args := m.Called(ctx, env)
	var key []byte
	if v := args.Get(0); v != nil {
		key = v.([]byte)
	}
	return key, args.Bool(1), args.Error(2)
}

func (m *MockLiveContext) Inject(ctx context.Context, env string, key []byte) error {
	args := m.Called(ctx, env, key)
	return args.Error(0)
}

func (m *MockLiveContext) Describe(env string) string {
	args := m.Called(env)
	return args.String(0)
}

// MockAuditRecorder is a mock of usecase.AuditRecorder.
type MockAuditRecorder struct {
	mock.Mock
}

// NewMockAuditRecorder creates a mock whose expectations are asserted on cleanup.
func NewMockAuditRecorder(t testingT) *MockAuditRecorder {
	m := &MockAuditRecorder{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockAuditRecorder) Write(ctx context.Context, key []byte, rec *audit.Record) error {
	args := m.Called(ctx, key, rec)
	return args.Error(0)
}
