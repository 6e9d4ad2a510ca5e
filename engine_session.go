package authgate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/authgate/session"
)

// Validate resolves a session token for the proxy check endpoint. This is
// the hot path: one Redis round-trip, no credential store access. When
// assertion signing is configured, the result carries a fresh signed
// identity assertion for upstream services.
func (e *Engine) Validate(ctx context.Context, token string) (*AuthResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	defer func() {
		e.metricObserve(MetricValidateLatency, time.Since(start))
	}()

	if token == "" {
		e.metricInc(MetricValidateFailure)
		return nil, ErrSessionNotFound
	}

	rec, err := e.sessions.Validate(ctx, token)
	if err != nil {
		e.metricInc(MetricValidateFailure)
		switch {
		case errors.Is(err, session.ErrNotFound):
			return nil, ErrSessionNotFound
		case errors.Is(err, session.ErrExpired):
			e.metricInc(MetricSessionInvalidated)
			e.emitAudit(ctx, auditEventValidateFailure, false, "", "", "", ErrSessionExpired, nil)
			return nil, ErrSessionExpired
		default:
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	result := &AuthResult{
		UserID:    rec.UserID,
		Username:  rec.Username,
		ExpiresAt: time.Unix(rec.ExpiresAt, 0),
	}

	if e.assertions != nil {
		assertion, err := e.assertions.CreateAssertion(rec.UserID, rec.Username)
		if err != nil {
			// The session itself is valid; a signing failure degrades to
			// an assertion-less result.
			log.Print("authgate: identity assertion signing failed")
		} else {
			result.IdentityAssertion = assertion
		}
	}

	e.metricInc(MetricValidateSuccess)

	return result, nil
}

// Logout revokes a session. Revoking an unknown, expired, or already
// revoked token succeeds.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if !e.ready() {
		return ErrEngineNotReady
	}
	if token == "" {
		return nil
	}

	if err := e.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventLogout, true, "", "", "", nil, nil)

	return nil
}
