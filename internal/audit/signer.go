package audit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Signer signs and verifies records.
type Signer interface {
	Sign(key []byte, rec *Record) ([]byte, error)
	Verify(key []byte, rec *Record) error
}

type hmacSigner struct{}

// NewSigner creates a Signer using HKDF-SHA256 key derivation and HMAC-SHA256.
func NewSigner() Signer {
	return &hmacSigner{}
}

// deriveSigningKey derives a 32-byte signing key from key.
// The info string is versioned so the canonical form can change later.
func (s *hmacSigner) deriveSigningKey(key []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, key, nil, []byte("break-glass-audit-v1"))

	signingKey := make([]byte, 32)
	if _, err := io.ReadFull(r, signingKey); err != nil {
		return nil, err
	}
	return signingKey, nil
}

// canonicalize encodes every signed field, length-prefixed, in a fixed order.
func (s *hmacSigner) canonicalize(rec *Record) []byte {
	buf := make([]byte, 0, 512)
	buf = append(buf, rec.ID[:]...)
	for _, field := range []string{
		rec.Environment,
		rec.Action,
		rec.Operator,
		rec.Reason,
		rec.PublicKey,
		rec.PreviousPublicKey,
		rec.PreviousBackup,
	} {
		buf = appendLengthPrefixed(buf, []byte(field))
	}
	if rec.SelfTest {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	buf = binary.BigEndian.AppendUint64(buf, uint64(rec.CreatedAt.UnixNano()))
	return buf
}

func appendLengthPrefixed(buf []byte, data []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(data)))
	return append(buf, data...)
}

func (s *hmacSigner) Sign(key []byte, rec *Record) ([]byte, error) {
	signingKey, err := s.deriveSigningKey(key)
	if err != nil {
		return nil, fmt.Errorf("failed to derive signing key: %w", err)
	}
	defer zero(signingKey)

	mac := hmac.New(sha256.New, signingKey)
	mac.Write(s.canonicalize(rec))
	return mac.Sum(nil), nil
}

func (s *hmacSigner) Verify(key []byte, rec *Record) error {
	expected, err := s.Sign(key, rec)
	if err != nil {
		return fmt.Errorf("failed to compute expected signature: %w", err)
	}
	if !hmac.Equal(rec.Signature, expected) {
		return ErrSignatureInvalid
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
