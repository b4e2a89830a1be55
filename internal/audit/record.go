// Package audit keeps signed records of break-glass key injections.
//
// A record is signed with an HMAC key derived from the injected private key,
// so only a holder of that key can produce or check a valid signature.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/bizmatters/zerotouch-keys/internal/errors"
)

// ActionBreakGlass marks an operator-supplied key injection.
const ActionBreakGlass = "break-glass-inject"

// ErrSignatureInvalid indicates a record was modified after signing.
var ErrSignatureInvalid = errors.Wrap(errors.ErrForbidden, "audit signature invalid")

// Record is one audited key injection.
type Record struct {
	ID          uuid.UUID `json:"id"`
	Environment string    `json:"environment"`
	Action      string    `json:"action"`
	Operator    string    `json:"operator"`
	Reason      string    `json:"reason,omitempty"`
	// PublicKey is the recipient of the injected key.
	PublicKey string `json:"public_key"`
	// PreviousPublicKey is the recipient of the key that was live before, if any.
	PreviousPublicKey string `json:"previous_public_key,omitempty"`
	// PreviousBackup is the break-glass backup timestamp of the previous key, if one was taken.
	PreviousBackup string    `json:"previous_backup,omitempty"`
	SelfTest       bool      `json:"self_test"`
	CreatedAt      time.Time `json:"created_at"`
	Signature      []byte    `json:"signature,omitempty"`
}
