// Package crypto implements the note encryption contract: SHA-256 key
// derivation from a password, AES in ECB mode over sentinel-padded
// plaintext, and base64 token framing.
//
// The contract is deliberately deterministic: no IV, no chaining, so the
// same plaintext under the same password always yields the same token.
// Stored notes depend on that byte-for-byte behavior, which is why the
// mode lives behind the Cipher interface rather than being fixed at the
// call sites.
package crypto

import (
	"crypto/aes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// blockSize is the AES block size the padder fills to.
	blockSize = 16

	// padSentinel is appended to plaintext until it reaches a block
	// boundary. Plaintexts that themselves end in this character lose
	// those trailing characters on decrypt; callers live with that.
	padSentinel = '='
)

// ErrDecode indicates a token that could not be decoded: malformed base64,
// a ciphertext that is not block-aligned, or a decryption (typically under
// the wrong password) that produced bytes which are not valid UTF-8.
var ErrDecode = errors.New("content could not be decoded")

// Cipher encrypts and decrypts note content under a password.
//
// Implementations must be deterministic: Encrypt(p, k) returns the same
// token for the same inputs on every call.
type Cipher interface {
	// Digest returns the hex-encoded SHA-256 of the password, used only
	// for access-control comparison, never as key material.
	Digest(password string) string

	// Encrypt returns the stored token for plaintext under password.
	Encrypt(plaintext, password string) (string, error)

	// Decrypt reverses Encrypt. Decrypting with the wrong password does
	// not fail structurally; it surfaces as ErrDecode when the recovered
	// bytes fail to decode as text.
	Decrypt(token, password string) (string, error)
}

// DeriveKey hashes the UTF-8 password to a fixed 256-bit key. Every
// password, including the empty string, yields a usable key.
func DeriveKey(password string) []byte {
	sum := sha256.Sum256([]byte(password))
	return sum[:]
}

// ECB is the historical cipher: AES-256 in ECB mode with '=' padding.
// Identical plaintext blocks under the same key produce identical
// ciphertext blocks. That property is preserved, not recommended.
type ECB struct{}

var _ Cipher = ECB{}

// Digest implements Cipher.Digest.
func (ECB) Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// Encrypt implements Cipher.Encrypt.
func (ECB) Encrypt(plaintext, password string) (string, error) {
	block, err := aes.NewCipher(DeriveKey(password))
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	padded := []byte(plaintext)
	for len(padded)%blockSize != 0 {
		padded = append(padded, padSentinel)
	}

	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += blockSize {
		block.Encrypt(out[i:i+blockSize], padded[i:i+blockSize])
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt implements Cipher.Decrypt.
func (ECB) Decrypt(token, password string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if len(raw)%blockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext is not block-aligned", ErrDecode)
	}

	block, err := aes.NewCipher(DeriveKey(password))
	if err != nil {
		return "", fmt.Errorf("failed to initialize cipher: %w", err)
	}

	out := make([]byte, len(raw))
	for i := 0; i < len(raw); i += blockSize {
		block.Decrypt(out[i:i+blockSize], raw[i:i+blockSize])
	}

	if !utf8.Valid(out) {
		return "", fmt.Errorf("%w: decrypted bytes are not valid text", ErrDecode)
	}

	return strings.TrimRight(string(out), string(padSentinel)), nil
}
