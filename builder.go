package authgate

import (
	"errors"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authgate/challenge"
	internalaudit "github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/session"
)

// Builder assembles an [Engine]. A Builder is single-use: Build can be
// called once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  UserStore

	auditSink AuditSink

	built bool
}

// New creates a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the builder configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the Redis client backing sessions and rate limits.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore supplies the account and passkey store.
func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.store = store
	return b
}

// WithAuditSink supplies the audit event consumer. Ignored unless
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the metrics recorder.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles validate latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, wires every subsystem, and returns the
// Engine. The Engine owns the ceremony registry sweeper and the audit
// dispatcher goroutine; call [Engine.Close] to stop them.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.store == nil {
		return nil, errors.New("user store required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	displayName := cfg.RelyingParty.DisplayName
	if displayName == "" {
		displayName = cfg.RelyingParty.ID
	}

	wa, err := webauthn.New(&webauthn.Config{
		RPID:          cfg.RelyingParty.ID,
		RPDisplayName: displayName,
		RPOrigins:     cfg.RelyingParty.Origins,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		webauthn: wa,
		store:    b.store,
	}

	engine.ceremonies = challenge.NewRegistry(challenge.Config{
		TTL:           cfg.Ceremony.TTL,
		MaxPending:    cfg.Ceremony.MaxPending,
		SweepInterval: cfg.Ceremony.SweepInterval,
	})

	engine.sessions = session.NewGate(b.redis, cfg.Session.RedisPrefix, cfg.Session.TTL)

	if cfg.Security.EnableLoginThrottle {
		engine.rateLimiter = rate.New(b.redis, rate.Config{
			EnableIPThrottle:      cfg.Security.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration: cfg.Security.LoginCooldownDuration,
		})
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)
	engine.metrics = NewMetrics(cfg.Metrics)

	ph, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		engine.Close()
		return nil, err
	}
	engine.passwordHash = ph

	if cfg.Assertion.Enabled {
		jm, err := jwt.NewManager(jwt.Config{
			AssertionTTL:  cfg.Assertion.TTL,
			SigningMethod: jwt.SigningMethod(cfg.Assertion.SigningMethod),
			PrivateKey:    cloneBytes(cfg.Assertion.PrivateKey),
			PublicKey:     cloneBytes(cfg.Assertion.PublicKey),
			Issuer:        cfg.Assertion.Issuer,
			Audience:      cfg.Assertion.Audience,
		})
		if err != nil {
			engine.Close()
			return nil, err
		}
		engine.assertions = jm
	}

	b.built = true

	return engine, nil
}
