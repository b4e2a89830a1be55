package domain

import (
	"fmt"
	"strings"
	"time"
)

// ActiveTimestamp addresses the mutable pointer copy of the newest backup.
const ActiveTimestamp = "ACTIVE"

// TimestampLayout formats backup timestamps (UTC).
const TimestampLayout = "20060102-150405"

// PreciseTimestampLayout names a backup taken in a second that already has one.
// It sorts after the plain timestamp of the same second.
const PreciseTimestampLayout = "20060102-150405.000"

const (
	keyDir             = "age-keys"
	sealedKeyName      = "age-key.sealed"
	ciphertextSuffix   = "-age-key-encrypted.txt"
	recoveryKeySuffix  = "-recovery-key.txt"
	sealedRecoveryLine = "# sealed: kms"
)

// BackupArtifact is one envelope: the primary private key encrypted to a
// recovery recipient, plus that recipient's private key.
type BackupArtifact struct {
	Environment Environment
	Timestamp   string
	// Ciphertext is the ASCII-armored age encryption of the primary private key.
	Ciphertext []byte
	// RecoveryPrivateKey is the recovery identity in age-keygen file format.
	RecoveryPrivateKey []byte
}

// Zero clears the recovery private key.
func (b *BackupArtifact) Zero() {
	if b == nil {
		return
	}
	Zero(b.RecoveryPrivateKey)
}

// BackupRef identifies a stored backup.
type BackupRef struct {
	Environment Environment
	Timestamp   string
	CreatedAt   time.Time
}

// FormatTimestamp renders t as a backup timestamp.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// FormatPreciseTimestamp renders t with millisecond precision.
func FormatPreciseTimestamp(t time.Time) string {
	return t.UTC().Format(PreciseTimestampLayout)
}

// ParseTimestamp parses a plain or precise backup timestamp.
func ParseTimestamp(ts string) (time.Time, error) {
	for _, layout := range []string{TimestampLayout, PreciseTimestampLayout} {
		if len(ts) != len(layout) {
			continue
		}
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errorsf(ErrBackupNotFound, "malformed timestamp %q", ts)
}

// KeyDir is the directory holding every key object of env.
func KeyDir(env Environment) string {
	return string(env) + "/" + keyDir + "/"
}

// SealedKeyObject is the object key of the sealed primary private key.
func SealedKeyObject(env Environment) string {
	return KeyDir(env) + sealedKeyName
}

// CiphertextObject is the object key of a backup ciphertext. ts is a
// timestamp or ActiveTimestamp.
func CiphertextObject(env Environment, ts string) string {
	return KeyDir(env) + ts + ciphertextSuffix
}

// RecoveryKeyObject is the object key of a backup recovery private key.
func RecoveryKeyObject(env Environment, ts string) string {
	return KeyDir(env) + ts + recoveryKeySuffix
}

// ParseCiphertextObject extracts the timestamp of a timestamped ciphertext
// object key. ACTIVE pointers and other objects are rejected.
func ParseCiphertextObject(env Environment, key string) (string, bool) {
	name, ok := strings.CutPrefix(key, KeyDir(env))
	if !ok {
		return "", false
	}
	ts, ok := strings.CutSuffix(name, ciphertextSuffix)
	if !ok || ts == ActiveTimestamp {
		return "", false
	}
	if _, err := ParseTimestamp(ts); err != nil {
		return "", false
	}
	return ts, true
}

// IsSealedRecoveryKey reports whether a stored recovery key was sealed by a KMS keeper.
func IsSealedRecoveryKey(data []byte) bool {
	return strings.HasPrefix(string(data), sealedRecoveryLine+"\n")
}

// SealedRecoveryHeader is the first line of a KMS-sealed recovery key object.
func SealedRecoveryHeader() string {
	return sealedRecoveryLine + "\n"
}

func errorsf(base error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}
