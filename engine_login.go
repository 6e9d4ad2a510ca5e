package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// Login verifies a username/password pair and mints a session. Unknown
// users, wrong passwords, and undecodable stored hashes all fail with
// [ErrInvalidCredentials]; callers cannot probe for account existence.
func (e *Engine) Login(ctx context.Context, username, plaintext string) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, username, ip); err != nil {
			// Limiter failures deny the attempt: throttling fails closed.
			return nil, e.loginRateLimited(ctx, username, "")
		}
	}

	if username == "" || plaintext == "" {
		return nil, e.loginFailure(ctx, username, "", ip, "empty_input")
	}

	sctx, cancel := e.storeCtx(ctx)
	user, err := e.store.FindUser(sctx, username)
	cancel()
	if err != nil {
		err = wrapStoreErr(err)
		if errors.Is(err, ErrUserNotFound) {
			return nil, e.loginFailure(ctx, username, "", ip, "user_not_found")
		}
		return nil, err
	}

	if !e.passwordHash.Verify(plaintext, user.PasswordHash) {
		return nil, e.loginFailure(ctx, username, user.UserID, ip, "password_mismatch")
	}

	if e.config.Password.UpgradeOnLogin {
		if needsUpgrade, err := e.passwordHash.NeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if upgradedHash, err := e.passwordHash.Hash(plaintext); err == nil {
				// Rehash update is best-effort and must not block successful login.
				sctx, cancel := e.storeCtx(ctx)
				if err := e.store.UpdatePasswordHash(sctx, user.UserID, upgradedHash); err != nil {
					log.Print("authgate: password hash upgrade update failed")
				}
				cancel()
			} else {
				log.Print("authgate: password hash upgrade generation failed")
			}
		}
	}
	plaintext = ""

	if e.rateLimiter != nil {
		_ = e.rateLimiter.ResetLogin(ctx, username, ip)
	}

	token, rec, err := e.sessions.Issue(ctx, user.UserID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.UserID, user.Username, "", nil, nil)

	return &LoginResult{
		UserID:       user.UserID,
		Username:     user.Username,
		SessionToken: token,
		ExpiresAt:    time.Unix(rec.ExpiresAt, 0),
	}, nil
}

// loginFailure records a failed attempt against the limiter and returns the
// generic credential error, or the rate limit error once the budget is
// spent.
func (e *Engine) loginFailure(ctx context.Context, username, userID, ip, reason string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, username, ip); err != nil {
			return e.loginRateLimited(ctx, username, userID)
		}
	}

	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, username, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{
			"reason": reason,
		}
	})

	return ErrInvalidCredentials
}

func (e *Engine) loginRateLimited(ctx context.Context, username, userID string) error {
	e.metricInc(MetricLoginRateLimited)
	e.metricInc(MetricRateLimitHit)
	e.emitAudit(ctx, auditEventLoginRateLimited, false, userID, username, "", ErrLoginRateLimited, nil)
	return ErrLoginRateLimited
}
