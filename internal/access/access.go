// Package access gates note reads behind password verification.
//
// Passwords are compared by digest only; the cipher never sees a password
// this package has not verified. A Session optionally carries one verified
// password across reads so the operator is not re-prompted per note. The
// session is explicit state handed to each read path, not a process-wide
// global, and it is wiped on Reset.
package access

import (
	"errors"

	"github.com/awnumar/memguard"

	"github.com/notevault/notevault/internal/crypto"
)

// ErrAccessDenied is returned when password verification fails, or when a
// flow runs out of attempts.
var ErrAccessDenied = errors.New("access denied")

// Verify reports whether password matches the stored digest. Holds for
// every password including the empty string.
func Verify(cipher crypto.Cipher, password, storedDigest string) bool {
	return cipher.Digest(password) == storedDigest
}

// Session caches one password for the lifetime of a process run.
//
// The cached bytes live in a memguard enclave so they never sit in plain
// heap memory between uses. A cached password is a convenience, not a
// skeleton key: notes whose digest does not match it still require their
// own prompt.
type Session struct {
	enclave *memguard.Enclave
}

// NewSession returns an empty session.
func NewSession() *Session {
	return &Session{}
}

// Cache stores password for later reads, replacing any previous one.
func (s *Session) Cache(password string) {
	s.enclave = memguard.NewEnclave([]byte(password))
}

// Password returns the cached password, if any.
func (s *Session) Password() (string, bool) {
	if s.enclave == nil {
		return "", false
	}
	buf, err := s.enclave.Open()
	if err != nil {
		return "", false
	}
	defer buf.Destroy()
	// Copy out: buf.String() would alias memory wiped on Destroy.
	return string(buf.Bytes()), true
}

// Reset clears the cached password. The session has no expiry beyond
// process lifetime; this is the only way to drop it early.
func (s *Session) Reset() {
	s.enclave = nil
}
