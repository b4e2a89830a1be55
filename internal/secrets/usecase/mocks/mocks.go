// Package mocks provides testify mocks for the secret encryption use case.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
	"github.com/bizmatters/zerotouch-keys/internal/mapping"
	"github.com/bizmatters/zerotouch-keys/internal/secrets/usecase"
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockSecretEncryptionUseCase is a mock of usecase.SecretEncryptionUseCase.
type MockSecretEncryptionUseCase struct {
	mock.Mock
}

// NewMockSecretEncryptionUseCase creates a mock whose expectations are asserted on cleanup.
func NewMockSecretEncryptionUseCase(t testingT) *MockSecretEncryptionUseCase {
	m := &MockSecretEncryptionUseCase{}
	m.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockSecretEncryptionUseCase) Regenerate(
	ctx context.Context,
	env keysDomain.Environment,
	values []mapping.SourceValue,
) (*usecase.RegenerateResult, error) {
	args := m.Called(ctx, env, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.RegenerateResult), args.Error(1)
}

func (m *MockSecretEncryptionUseCase) RegenerateAll(
	ctx context.Context,
	envs []keysDomain.Environment,
	values []mapping.SourceValue,
) ([]*usecase.RegenerateResult, error) {
	args := m.Called(ctx, envs, values)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*usecase.RegenerateResult), args.Error(1)
}

func (m *MockSecretEncryptionUseCase) Decrypt(
	ctx context.Context,
	artifact, identity []byte,
) (*mapping.SecretRecord, error) {
	args := m.Called(ctx, artifact, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mapping.SecretRecord), args.Error(1)
}

func (m *MockSecretEncryptionUseCase) Verify(
	ctx context.Context,
	env keysDomain.Environment,
) (*usecase.VerifyResult, error) {
	args := m.Called(ctx, env)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.VerifyResult), args.Error(1)
}
