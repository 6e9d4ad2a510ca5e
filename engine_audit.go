package authgate

import (
	"context"
	"time"
)

const (
	auditEventAccountCreated       = "account.created"
	auditEventLoginSuccess         = "login.success"
	auditEventLoginFailure         = "login.failure"
	auditEventLoginRateLimited     = "login.rate_limited"
	auditEventRegistrationStart    = "webauthn.register.start"
	auditEventRegistrationFinish   = "webauthn.register.finish"
	auditEventAuthenticationStart  = "webauthn.login.start"
	auditEventAuthenticationFinish = "webauthn.login.finish"
	auditEventReplayDetected       = "webauthn.replay_detected"
	auditEventLogout               = "session.logout"
	auditEventValidateFailure      = "session.validate_failure"
)

// emitAudit forwards one event to the dispatcher. metadataFn is lazy so
// disabled auditing costs no map allocation.
func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID, username, ceremonyID string,
	opErr error,
	metadataFn func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		UserID:     userID,
		Username:   username,
		CeremonyID: ceremonyID,
		IP:         clientIPFromContext(ctx),
		UserAgent:  userAgentFromContext(ctx),
		Success:    success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	if metadataFn != nil {
		event.Metadata = metadataFn()
	}

	e.audit.Emit(ctx, event)
}
