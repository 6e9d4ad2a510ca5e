// Command authgated runs the authentication gate as a standalone daemon
// behind a reverse proxy. Configuration comes from AUTHGATE_* environment
// variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/httpapi"
	"github.com/MrEthical07/authgate/metrics/export/prometheus"
	"github.com/MrEthical07/authgate/store/sqlite"
)

type envConfig struct {
	ListenAddr string `env:"AUTHGATE_LISTEN_ADDR" envDefault:":8089"`
	LogLevel   string `env:"AUTHGATE_LOG_LEVEL" envDefault:"info"`

	RPID          string   `env:"AUTHGATE_RP_ID"`
	RPDisplayName string   `env:"AUTHGATE_RP_DISPLAY_NAME"`
	RPOrigins     []string `env:"AUTHGATE_RP_ORIGINS" envSeparator:","`

	RedisAddr     string `env:"AUTHGATE_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	RedisPassword string `env:"AUTHGATE_REDIS_PASSWORD"`
	RedisDB       int    `env:"AUTHGATE_REDIS_DB" envDefault:"0"`

	DBPath string `env:"AUTHGATE_DB_PATH" envDefault:"authgate.db"`

	SessionTTL  time.Duration `env:"AUTHGATE_SESSION_TTL" envDefault:"24h"`
	CeremonyTTL time.Duration `env:"AUTHGATE_CEREMONY_TTL" envDefault:"5m"`
	CookieName  string        `env:"AUTHGATE_COOKIE_NAME"`

	ConcealUnknownUsers bool          `env:"AUTHGATE_CONCEAL_UNKNOWN_USERS" envDefault:"false"`
	MaxLoginAttempts    int           `env:"AUTHGATE_MAX_LOGIN_ATTEMPTS" envDefault:"10"`
	LoginCooldown       time.Duration `env:"AUTHGATE_LOGIN_COOLDOWN" envDefault:"15m"`

	AssertionEnabled  bool          `env:"AUTHGATE_ASSERTION_ENABLED" envDefault:"false"`
	AssertionTTL      time.Duration `env:"AUTHGATE_ASSERTION_TTL" envDefault:"2m"`
	AssertionIssuer   string        `env:"AUTHGATE_ASSERTION_ISSUER" envDefault:"authgate"`
	AssertionAudience string        `env:"AUTHGATE_ASSERTION_AUDIENCE"`
	AssertionKeyFile  string        `env:"AUTHGATE_ASSERTION_KEY_FILE"`

	AuditStdout bool `env:"AUTHGATE_AUDIT_STDOUT" envDefault:"false"`
}

func main() {
	if err := run(); err != nil {
		slog.Error("authgated exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = store.Close() }()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer func() { _ = redisClient.Close() }()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}

	engineCfg, err := engineConfig(cfg)
	if err != nil {
		return err
	}

	builder := authgate.New().
		WithConfig(engineCfg).
		WithRedis(redisClient).
		WithUserStore(store)
	if cfg.AuditStdout {
		builder = builder.WithAuditSink(authgate.NewJSONWriterSink(os.Stdout))
	}

	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	apiOpts := []httpapi.Option{
		httpapi.WithLogger(logger),
		httpapi.WithMetricsHandler(prometheus.NewExporter(engine).Handler()),
	}
	if cfg.CookieName != "" {
		apiOpts = append(apiOpts, httpapi.WithCookieName(cfg.CookieName))
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httpapi.NewServer(engine, apiOpts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("authgated listening", "addr", cfg.ListenAddr, "rp_id", cfg.RPID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func engineConfig(cfg envConfig) (authgate.Config, error) {
	out := authgate.DefaultConfig()
	out.RelyingParty.ID = cfg.RPID
	out.RelyingParty.DisplayName = cfg.RPDisplayName
	out.RelyingParty.Origins = cfg.RPOrigins
	out.Ceremony.TTL = cfg.CeremonyTTL
	out.Session.TTL = cfg.SessionTTL
	out.Security.ConcealUnknownUsers = cfg.ConcealUnknownUsers
	out.Security.MaxLoginAttempts = cfg.MaxLoginAttempts
	out.Security.LoginCooldownDuration = cfg.LoginCooldown
	out.Audit.Enabled = cfg.AuditStdout
	out.Metrics.Enabled = true
	out.Metrics.EnableLatencyHistograms = true

	if cfg.AssertionEnabled {
		if cfg.AssertionKeyFile == "" {
			return authgate.Config{}, errors.New("AUTHGATE_ASSERTION_KEY_FILE required when assertions are enabled")
		}
		key, err := os.ReadFile(cfg.AssertionKeyFile)
		if err != nil {
			return authgate.Config{}, fmt.Errorf("read assertion key: %w", err)
		}
		out.Assertion.Enabled = true
		out.Assertion.TTL = cfg.AssertionTTL
		out.Assertion.Issuer = cfg.AssertionIssuer
		out.Assertion.Audience = cfg.AssertionAudience
		out.Assertion.PrivateKey = key
	}

	return out, nil
}

func logLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
