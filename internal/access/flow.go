package access

import (
	"fmt"

	"github.com/notevault/notevault/internal/crypto"
)

// State is the position of a password flow.
type State int

const (
	// AwaitingPassword means the flow needs (another) Submit call.
	AwaitingPassword State = iota
	// Verified means a password matching the digest has been accepted.
	Verified
	// Denied means the attempt budget is spent without a match.
	Denied
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case AwaitingPassword:
		return "awaiting-password"
	case Verified:
		return "verified"
	case Denied:
		return "denied"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// DefaultMaxAttempts bounds password retries per flow. The operator
// decides whether to start a fresh flow after a denial.
const DefaultMaxAttempts = 3

// Flow is the password-verification state machine for one protected read:
// AwaitingPassword -> Verified | Denied, with a bounded retry budget.
//
// It is driven entirely by injected input events (Submit calls), so the
// terminal prompting that feeds it lives wholly outside this package.
// An unprotected note (empty digest) starts Verified with the empty
// password. A session with a matching cached password also short-circuits
// to Verified without consuming an attempt.
type Flow struct {
	cipher      crypto.Cipher
	digest      string
	session     *Session
	maxAttempts int
	attempts    int
	state       State
	password    string
}

// NewFlow starts a verification flow against storedDigest.
//
// session may be nil. maxAttempts <= 0 selects DefaultMaxAttempts.
func NewFlow(cipher crypto.Cipher, storedDigest string, session *Session, maxAttempts int) *Flow {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	f := &Flow{
		cipher:      cipher,
		digest:      storedDigest,
		session:     session,
		maxAttempts: maxAttempts,
		state:       AwaitingPassword,
	}

	if storedDigest == "" {
		f.state = Verified
		return f
	}

	if session != nil {
		if cached, ok := session.Password(); ok && Verify(cipher, cached, storedDigest) {
			f.state = Verified
			f.password = cached
		}
	}

	return f
}

// State returns the flow's current state.
func (f *Flow) State() State {
	return f.state
}

// AttemptsLeft returns the remaining Submit budget.
func (f *Flow) AttemptsLeft() int {
	return f.maxAttempts - f.attempts
}

// Submit feeds one password attempt into the flow and returns the new
// state. Submitting to a Verified or Denied flow is a no-op.
//
// A successful attempt caches the password on the session for later reads.
func (f *Flow) Submit(password string) State {
	if f.state != AwaitingPassword {
		return f.state
	}

	f.attempts++
	if Verify(f.cipher, password, f.digest) {
		f.state = Verified
		f.password = password
		if f.session != nil {
			f.session.Cache(password)
		}
		return f.state
	}

	if f.attempts >= f.maxAttempts {
		f.state = Denied
	}
	return f.state
}

// Password returns the verified password. ErrAccessDenied unless the
// flow reached Verified.
func (f *Flow) Password() (string, error) {
	if f.state != Verified {
		return "", ErrAccessDenied
	}
	return f.password, nil
}
