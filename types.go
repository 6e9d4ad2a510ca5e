package authgate

import (
	"context"
	"io"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	internalaudit "github.com/MrEthical07/authgate/internal/audit"
	internalmetrics "github.com/MrEthical07/authgate/internal/metrics"
)

// UserRecord is the canonical account model the engine works with. Stores
// return copies; the engine never mutates a record in place.
type UserRecord struct {
	UserID       string
	Username     string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
}

// CredentialRecord is a stored passkey. Data holds the JSON-encoded
// credential exactly as produced at registration; SignCount lives in its own
// column and is authoritative over the counter embedded in Data.
type CredentialRecord struct {
	CredentialID string
	UserID       string
	Data         []byte
	SignCount    uint32
	CreatedAt    time.Time
	LastUsedAt   time.Time
}

// CreateUserInput is the input for [UserStore.CreateUser]. The engine
// assigns UserID and hashes the password before calling the store.
type CreateUserInput struct {
	UserID       string
	Username     string
	DisplayName  string
	PasswordHash string
}

// UserStore is the persistence boundary callers must implement to integrate
// authgate with their user database. Implementations must be safe for
// concurrent use and must return the package sentinel errors for the
// documented conditions. See store/memory and store/sqlite for reference
// implementations.
type UserStore interface {
	// FindUser returns the account for a username, or [ErrUserNotFound].
	FindUser(ctx context.Context, username string) (UserRecord, error)

	// FindUserByID returns the account for a user ID, or [ErrUserNotFound].
	FindUserByID(ctx context.Context, userID string) (UserRecord, error)

	// CreateUser inserts a new account. Returns [ErrUserExists] when the
	// username is taken; the uniqueness check and insert must be atomic.
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)

	// UpdatePasswordHash replaces the stored password hash.
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error

	// ListCredentials returns all passkeys enrolled for the account.
	// An account with no passkeys yields an empty slice, not an error.
	ListCredentials(ctx context.Context, userID string) ([]CredentialRecord, error)

	// UpsertCredential inserts or refreshes a passkey. Returns
	// [ErrCredentialBound] when the credential ID belongs to another user.
	UpsertCredential(ctx context.Context, rec CredentialRecord) error

	// UpdateSignatureCounter advances the stored counter and last-used
	// timestamp. Returns [ErrStaleCounter] when newCount does not exceed
	// the stored value and [ErrCredentialNotFound] for unknown credentials.
	UpdateSignatureCounter(ctx context.Context, credentialID string, newCount uint32) error
}

// LoginResult is returned by [Engine.Login] and
// [Engine.AuthenticationFinish] on success.
type LoginResult struct {
	UserID       string
	Username     string
	SessionToken string
	ExpiresAt    time.Time
}

// AuthResult is returned by [Engine.Validate] for the proxy check endpoint.
// IdentityAssertion is empty unless assertion signing is configured.
type AuthResult struct {
	UserID            string
	Username          string
	ExpiresAt         time.Time
	IdentityAssertion string
}

// CreateAccountResult is returned by [Engine.CreateAccount].
type CreateAccountResult struct {
	UserID   string
	Username string
}

// RegistrationChallenge carries a pending registration ceremony to the
// client. Options serializes to the publicKey creation options the browser
// passes to navigator.credentials.create.
type RegistrationChallenge struct {
	CeremonyID string
	Options    *protocol.CredentialCreation
}

// AuthenticationChallenge carries a pending authentication ceremony to the
// client. Options serializes to the publicKey request options the browser
// passes to navigator.credentials.get.
type AuthenticationChallenge struct {
	CeremonyID string
	Options    *protocol.CredentialAssertion
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the engine’s audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// MetricID identifies a specific counter or histogram in the in-process
// metrics system.
type MetricID = internalmetrics.MetricID

const (
	// MetricLoginSuccess counts successful password logins.
	MetricLoginSuccess = internalmetrics.MetricLoginSuccess
	// MetricLoginFailure counts failed password logins.
	MetricLoginFailure = internalmetrics.MetricLoginFailure
	// MetricLoginRateLimited counts logins denied by the rate limiter.
	MetricLoginRateLimited = internalmetrics.MetricLoginRateLimited
	// MetricAccountCreationSuccess counts created accounts.
	MetricAccountCreationSuccess = internalmetrics.MetricAccountCreationSuccess
	// MetricAccountCreationDuplicate counts duplicate-username rejections.
	MetricAccountCreationDuplicate = internalmetrics.MetricAccountCreationDuplicate
	// MetricRegistrationStart counts started registration ceremonies.
	MetricRegistrationStart = internalmetrics.MetricRegistrationStart
	// MetricRegistrationSuccess counts enrolled passkeys.
	MetricRegistrationSuccess = internalmetrics.MetricRegistrationSuccess
	// MetricRegistrationFailure counts failed registration finishes.
	MetricRegistrationFailure = internalmetrics.MetricRegistrationFailure
	// MetricAuthenticationStart counts started authentication ceremonies.
	MetricAuthenticationStart = internalmetrics.MetricAuthenticationStart
	// MetricAuthenticationSuccess counts successful passkey logins.
	MetricAuthenticationSuccess = internalmetrics.MetricAuthenticationSuccess
	// MetricAuthenticationFailure counts failed authentication finishes.
	MetricAuthenticationFailure = internalmetrics.MetricAuthenticationFailure
	// MetricReplayDetected counts cloned-authenticator signals.
	MetricReplayDetected = internalmetrics.MetricReplayDetected
	// MetricRateLimitHit counts rate-limit denials across all operations.
	MetricRateLimitHit = internalmetrics.MetricRateLimitHit
	// MetricSessionCreated counts minted sessions.
	MetricSessionCreated = internalmetrics.MetricSessionCreated
	// MetricSessionInvalidated counts revoked and lazily expired sessions.
	MetricSessionInvalidated = internalmetrics.MetricSessionInvalidated
	// MetricLogout counts logout operations.
	MetricLogout = internalmetrics.MetricLogout
	// MetricValidateSuccess counts proxy checks that passed.
	MetricValidateSuccess = internalmetrics.MetricValidateSuccess
	// MetricValidateFailure counts proxy checks that failed.
	MetricValidateFailure = internalmetrics.MetricValidateFailure
	// MetricValidateLatency is the proxy check latency histogram.
	MetricValidateLatency = internalmetrics.MetricValidateLatency
)

// Metrics holds atomic counters and optional latency histograms.
type Metrics = internalmetrics.Metrics

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot = internalmetrics.Snapshot

// NewMetrics creates a [Metrics] instance configured by the given
// [MetricsConfig]. When Enabled is false, all operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return internalmetrics.New(internalmetrics.Config{
		Enabled:       cfg.Enabled,
		EnableLatency: cfg.EnableLatencyHistograms,
	})
}
