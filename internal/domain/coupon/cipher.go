package coupon

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"

	"github.com/go-faster/errors"
	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a coupon encryption key in bytes.
const KeySize = chacha20poly1305.KeySize

// ErrCorrupt is returned by Open for entries that cannot be decoded or
// authenticated.
var ErrCorrupt = errors.New("corrupt coupon entry")

// Cipher encrypts coupon codes with XChaCha20-Poly1305. Sealed values are
// base64(nonce || ciphertext) so they fit a TEXT column.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher creates a Cipher from a KeySize-byte key.
func NewCipher(key []byte) (*Cipher, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, errors.Wrap(err, "init aead")
	}
	return &Cipher{aead: aead}, nil
}

// ParseKey decodes a hex-encoded key and checks its length.
func ParseKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode hex key")
	}
	if len(key) != KeySize {
		return nil, errors.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	return key, nil
}

// Seal encrypts a plaintext code with a random nonce.
func (c *Cipher) Seal(plaintext string) (string, error) {
	ns := c.aead.NonceSize()
	nonce := make([]byte, ns, ns+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, "read nonce")
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal.
func (c *Cipher) Open(encrypted string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return "", errors.Wrap(ErrCorrupt, "decode base64")
	}
	ns := c.aead.NonceSize()
	if len(raw) < ns+c.aead.Overhead() {
		return "", errors.Wrap(ErrCorrupt, "too short")
	}
	plain, err := c.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", errors.Wrap(ErrCorrupt, "authenticate")
	}
	return string(plain), nil
}
