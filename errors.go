package authgate

import (
	"context"
	"errors"
)

var (
	// ErrInvalidInput reports a request that fails structural validation
	// before any store or verification work happens.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMalformedCredential reports a WebAuthn response body that could not
	// be parsed into an attestation or assertion.
	ErrMalformedCredential = errors.New("malformed webauthn response")
	// ErrInvalidCredentials is the generic authentication failure. It covers
	// unknown users during login, password mismatches, and ceremony
	// verification failures so callers cannot distinguish the cases.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserNotFound reports a lookup for an account that does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists reports an account creation attempt for a taken username.
	ErrUserExists = errors.New("user already exists")
	// ErrNoCredentials reports an authentication start for an account with no
	// enrolled passkeys.
	ErrNoCredentials = errors.New("no credentials enrolled")
	// ErrCeremonyInvalid covers unknown, expired, and already-consumed
	// ceremony identifiers. The cases are deliberately indistinguishable.
	ErrCeremonyInvalid = errors.New("ceremony invalid or expired")
	// ErrCredentialNotFound reports an operation on a credential identifier
	// that is not bound to the account.
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrCredentialBound reports a registration that presented a credential
	// identifier already bound to a different account.
	ErrCredentialBound = errors.New("credential bound to another user")
	// ErrStaleCounter reports a signature counter update that did not advance
	// past the stored value.
	ErrStaleCounter = errors.New("stale signature counter")
	// ErrReplayDetected reports a cloned-authenticator signal: a valid
	// signature whose counter regressed or failed to advance.
	ErrReplayDetected = errors.New("credential replay detected")
	// ErrSessionNotFound reports a token with no backing session record.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired reports a session past its expiry that had not yet
	// been reaped.
	ErrSessionExpired = errors.New("session expired")
	// ErrLoginRateLimited reports a login attempt over the failure budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrStoreUnavailable reports a credential store or Redis backend error.
	ErrStoreUnavailable = errors.New("backend unavailable")
	// ErrTimeout reports a store operation that exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrEngineNotReady reports Engine use before Build completed.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ErrorKind buckets engine errors into the categories the HTTP surface and
// audit trail care about.
type ErrorKind string

const (
	// KindValidation maps to HTTP 400.
	KindValidation ErrorKind = "validation"
	// KindNotFound maps to HTTP 404.
	KindNotFound ErrorKind = "not_found"
	// KindConflict maps to HTTP 409.
	KindConflict ErrorKind = "conflict"
	// KindAuthentication maps to HTTP 401.
	KindAuthentication ErrorKind = "authentication"
	// KindReplay maps to HTTP 409 and is always audited as a security event.
	KindReplay ErrorKind = "replay_detected"
	// KindRateLimited maps to HTTP 429.
	KindRateLimited ErrorKind = "rate_limited"
	// KindTimeout maps to HTTP 503.
	KindTimeout ErrorKind = "timeout"
	// KindInternal maps to HTTP 500.
	KindInternal ErrorKind = "internal"
)

// Classify maps an engine error onto its [ErrorKind]. Unrecognized errors
// classify as internal so transport layers fail closed.
func Classify(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrMalformedCredential):
		return KindValidation
	case errors.Is(err, ErrUserNotFound), errors.Is(err, ErrNoCredentials),
		errors.Is(err, ErrCredentialNotFound):
		return KindNotFound
	case errors.Is(err, ErrUserExists), errors.Is(err, ErrCredentialBound):
		return KindConflict
	case errors.Is(err, ErrReplayDetected), errors.Is(err, ErrStaleCounter):
		return KindReplay
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrCeremonyInvalid),
		errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired):
		return KindAuthentication
	case errors.Is(err, ErrLoginRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	default:
		return KindInternal
	}
}
