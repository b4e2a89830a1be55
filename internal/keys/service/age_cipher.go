package service

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"filippo.io/age"
	"filippo.io/age/armor"

	keysDomain "github.com/bizmatters/zerotouch-keys/internal/keys/domain"
)

type ageCipher struct{}

// NewAgeCipher creates a Cipher backed by age X25519 recipients.
func NewAgeCipher() Cipher {
	return &ageCipher{}
}

func (c *ageCipher) Generate() (*keysDomain.KeyPair, error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("failed to generate identity: %w", err)
	}
	return &keysDomain.KeyPair{
		PublicKey:  id.Recipient().String(),
		PrivateKey: []byte(id.String()),
	}, nil
}

func (c *ageCipher) GenerateRecovery() (*keysDomain.RecoveryKeyPair, error) {
	kp, err := c.Generate()
	if err != nil {
		return nil, err
	}
	return &keysDomain.RecoveryKeyPair{PublicKey: kp.PublicKey, PrivateKey: kp.PrivateKey}, nil
}

func (c *ageCipher) Encrypt(recipient string, plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.encryptTo(&buf, recipient, plaintext); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *ageCipher) EncryptArmored(recipient string, plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	aw := armor.NewWriter(&buf)
	if err := c.encryptTo(aw, recipient, plaintext); err != nil {
		return nil, err
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close armor: %w", err)
	}
	return buf.Bytes(), nil
}

func (c *ageCipher) encryptTo(dst io.Writer, recipient string, plaintext []byte) error {
	r, err := age.ParseX25519Recipient(strings.TrimSpace(recipient))
	if err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	w, err := age.Encrypt(dst, r)
	if err != nil {
		return fmt.Errorf("failed to start encryption: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("failed to encrypt: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finish encryption: %w", err)
	}
	return nil
}

func (c *ageCipher) Decrypt(identity, ciphertext []byte) ([]byte, error) {
	id, err := parseIdentity(identity)
	if err != nil {
		return nil, err
	}

	var src io.Reader = bytes.NewReader(ciphertext)
	if bytes.HasPrefix(bytes.TrimSpace(ciphertext), []byte(armor.Header)) {
		src = armor.NewReader(bytes.NewReader(bytes.TrimSpace(ciphertext)))
	}

	r, err := age.Decrypt(src, id)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read plaintext: %w", err)
	}
	return plaintext, nil
}

func (c *ageCipher) PublicKey(identity []byte) (string, error) {
	id, err := parseIdentity(identity)
	if err != nil {
		return "", err
	}
	return id.Recipient().String(), nil
}

func (c *ageCipher) ValidateRecipient(recipient string) error {
	if _, err := age.ParseX25519Recipient(recipient); err != nil {
		return fmt.Errorf("invalid recipient %q: %w", recipient, err)
	}
	return nil
}

func (c *ageCipher) IdentityFile(identity []byte, createdAt time.Time) ([]byte, error) {
	id, err := parseIdentity(identity)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# created: %s\n", createdAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&buf, "# public key: %s\n", id.Recipient().String())
	fmt.Fprintf(&buf, "%s\n", id.String())
	return buf.Bytes(), nil
}

// parseIdentity accepts a bare identity line or a key file with comments.
// Exactly one X25519 identity must be present.
func parseIdentity(identity []byte) (*age.X25519Identity, error) {
	var found *age.X25519Identity
	scanner := bufio.NewScanner(bytes.NewReader(identity))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, err := age.ParseX25519Identity(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", keysDomain.ErrInvalidPrivateKey, err)
		}
		if found != nil {
			return nil, fmt.Errorf("%w: more than one identity", keysDomain.ErrInvalidPrivateKey)
		}
		found = id
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", keysDomain.ErrInvalidPrivateKey, err)
	}
	if found == nil {
		return nil, fmt.Errorf("%w: no identity found", keysDomain.ErrInvalidPrivateKey)
	}
	return found, nil
}
