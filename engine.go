package authgate

import (
	"context"
	"errors"
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MrEthical07/authgate/challenge"
	internalaudit "github.com/MrEthical07/authgate/internal/audit"
	"github.com/MrEthical07/authgate/internal/rate"
	"github.com/MrEthical07/authgate/jwt"
	"github.com/MrEthical07/authgate/password"
	"github.com/MrEthical07/authgate/session"
)

// Engine is the authentication core. Build one through [Builder]; all
// methods are safe for concurrent use after Build.
type Engine struct {
	config       Config
	webauthn     *webauthn.WebAuthn
	store        UserStore
	ceremonies   *challenge.Registry
	sessions     *session.Gate
	rateLimiter  *rate.Limiter
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	passwordHash *password.Argon2
	assertions   *jwt.Manager
}

// Close stops the ceremony sweeper and drains the audit dispatcher. The
// Engine must not be used afterward.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.ceremonies != nil {
		e.ceremonies.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of all engine metrics.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// PendingCeremonies reports the number of outstanding WebAuthn ceremonies.
func (e *Engine) PendingCeremonies() int {
	if e == nil || e.ceremonies == nil {
		return 0
	}
	return e.ceremonies.Len()
}

func (e *Engine) ready() bool {
	return e != nil && e.store != nil && e.sessions != nil &&
		e.ceremonies != nil && e.webauthn != nil && e.passwordHash != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) metricObserve(id MetricID, d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, d)
}

// storeCtx bounds a credential store round-trip with the configured
// timeout. The registry lock is never held across these calls.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.config.Store.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.config.Store.Timeout)
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}
	return err
}
