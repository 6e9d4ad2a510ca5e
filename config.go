package authgate

import (
	"errors"
	"strings"
	"time"
)

// Config is the full engine configuration. Zero values are not usable;
// start from [DefaultConfig] and override.
type Config struct {
	RelyingParty RelyingPartyConfig
	Ceremony     CeremonyConfig
	Session      SessionConfig
	Password     PasswordConfig
	Assertion    AssertionConfig
	Security     SecurityConfig
	Store        StoreConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
RELYING PARTY CONFIG
====================================
*/

// RelyingPartyConfig identifies this deployment to authenticators. ID must
// be the effective domain; Origins lists every allowed web origin.
type RelyingPartyConfig struct {
	ID          string
	DisplayName string
	Origins     []string
}

/*
====================================
CEREMONY CONFIG
====================================
*/

// CeremonyConfig tunes the pending-ceremony registry.
type CeremonyConfig struct {
	TTL           time.Duration
	MaxPending    int
	SweepInterval time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes the opaque session gate.
type SessionConfig struct {
	TTL         time.Duration
	RedisPrefix string
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds argon2id cost parameters. Memory is in KB.
type PasswordConfig struct {
	Memory         uint32
	Time           uint32
	Parallelism    uint8
	SaltLength     uint32
	KeyLength      uint32
	UpgradeOnLogin bool
}

/*
====================================
ASSERTION CONFIG
====================================
*/

// AssertionConfig controls signed identity assertions minted on successful
// proxy checks. Disabled by default; when disabled, [AuthResult] carries no
// assertion.
type AssertionConfig struct {
	Enabled       bool
	TTL           time.Duration
	SigningMethod string // "ed25519" (default), "hs256" optional
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds throttling and enumeration-hardening knobs.
type SecurityConfig struct {
	// ConcealUnknownUsers makes authentication-start return a decoy
	// challenge for unknown or credential-less usernames instead of a 404.
	ConcealUnknownUsers   bool
	EnableLoginThrottle   bool
	EnableIPThrottle      bool
	MaxLoginAttempts      int
	LoginCooldownDuration time.Duration
}

// StoreConfig bounds credential store round-trips. Every store call the
// engine makes runs under this deadline.
type StoreConfig struct {
	Timeout time.Duration
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process metrics recorder.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production baseline: 5m ceremony TTL, 24h
// sessions, OWASP-aligned argon2id costs, throttling on, assertions off.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Ceremony: CeremonyConfig{
			TTL:           5 * time.Minute,
			MaxPending:    10000,
			SweepInterval: time.Minute,
		},
		Session: SessionConfig{
			TTL:         24 * time.Hour,
			RedisPrefix: "ag:s:",
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
		},
		Assertion: AssertionConfig{
			Enabled:       false,
			TTL:           2 * time.Minute,
			SigningMethod: "ed25519",
			Issuer:        "authgate",
		},
		Security: SecurityConfig{
			ConcealUnknownUsers:   false,
			EnableLoginThrottle:   true,
			EnableIPThrottle:      true,
			MaxLoginAttempts:      10,
			LoginCooldownDuration: 15 * time.Minute,
		},
		Store: StoreConfig{
			Timeout: 5 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate rejects configurations that cannot run safely.
func (c Config) Validate() error {
	if strings.TrimSpace(c.RelyingParty.ID) == "" {
		return errors.New("relying party ID required")
	}
	if len(c.RelyingParty.Origins) == 0 {
		return errors.New("at least one relying party origin required")
	}
	for _, origin := range c.RelyingParty.Origins {
		if strings.TrimSpace(origin) == "" {
			return errors.New("relying party origins must be non-empty")
		}
	}

	if c.Ceremony.TTL < 30*time.Second || c.Ceremony.TTL > 30*time.Minute {
		return errors.New("ceremony TTL must be between 30s and 30m")
	}
	if c.Ceremony.MaxPending < 0 {
		return errors.New("ceremony max pending must be >= 0")
	}

	if c.Session.TTL < time.Minute {
		return errors.New("session TTL must be >= 1m")
	}

	if c.Store.Timeout < time.Second || c.Store.Timeout > 30*time.Second {
		return errors.New("store timeout must be between 1s and 30s")
	}

	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return errors.New("max login attempts must be > 0 when throttling is enabled")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return errors.New("login cooldown must be > 0 when throttling is enabled")
		}
	}

	if c.Assertion.Enabled && c.Assertion.TTL <= 0 {
		return errors.New("assertion TTL must be > 0 when assertions are enabled")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.RelyingParty.Origins = append([]string(nil), cfg.RelyingParty.Origins...)
	out.Assertion.PrivateKey = cloneBytes(cfg.Assertion.PrivateKey)
	out.Assertion.PublicKey = cloneBytes(cfg.Assertion.PublicKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
