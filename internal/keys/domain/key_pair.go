// Package domain defines the key lifecycle model: environments, keypairs,
// backup envelopes and the object layout they are stored under.
package domain

import (
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"
)

// Environment is an isolation scope owning exactly one active keypair.
type Environment string

// Validate checks that the name can be used as a storage and directory segment.
func (e Environment) Validate() error {
	if errs := validation.IsDNS1123Label(string(e)); len(errs) > 0 {
		return errorsf(ErrInvalidEnvironment, "%q: %s", string(e), strings.Join(errs, "; "))
	}
	return nil
}

// Prefix is the source value name prefix of the environment (dev -> "DEV_").
func (e Environment) Prefix() string {
	return strings.ToUpper(strings.ReplaceAll(string(e), "-", "_")) + "_"
}

func (e Environment) String() string {
	return string(e)
}

// KeyPair is the long-lived keypair of an environment.
// PrivateKey holds the textual identity ("AGE-SECRET-KEY-1...") and must be
// zeroed by the holder once it is no longer needed.
type KeyPair struct {
	PublicKey  string
	PrivateKey []byte
}

// Zero clears the private half.
func (k *KeyPair) Zero() {
	if k == nil {
		return
	}
	Zero(k.PrivateKey)
}

// RecoveryKeyPair is a disposable keypair generated for one backup envelope.
type RecoveryKeyPair struct {
	PublicKey  string
	PrivateKey []byte
}

// Zero clears the private half.
func (k *RecoveryKeyPair) Zero() {
	if k == nil {
		return
	}
	Zero(k.PrivateKey)
}

// Zero securely overwrites a byte slice with zeros to clear sensitive data from memory.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
