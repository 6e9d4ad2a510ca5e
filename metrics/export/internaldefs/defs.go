package internaldefs

import (
	"github.com/MrEthical07/authgate"
)

// CounterDef binds a metric slot to its Prometheus name and help text.
type CounterDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram slot to its Prometheus name and help text.
type HistogramDef struct {
	ID   authgate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in exposition order.
var CounterDefs = []CounterDef{
	{ID: authgate.MetricLoginSuccess, Name: "authgate_login_success_total", Help: "Successful password logins."},
	{ID: authgate.MetricLoginFailure, Name: "authgate_login_failure_total", Help: "Failed password logins."},
	{ID: authgate.MetricLoginRateLimited, Name: "authgate_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: authgate.MetricAccountCreationSuccess, Name: "authgate_account_creation_success_total", Help: "Successful account creations."},
	{ID: authgate.MetricAccountCreationDuplicate, Name: "authgate_account_creation_duplicate_total", Help: "Account creation attempts rejected as duplicate."},
	{ID: authgate.MetricRegistrationStart, Name: "authgate_registration_start_total", Help: "Started passkey registration ceremonies."},
	{ID: authgate.MetricRegistrationSuccess, Name: "authgate_registration_success_total", Help: "Completed passkey registrations."},
	{ID: authgate.MetricRegistrationFailure, Name: "authgate_registration_failure_total", Help: "Failed passkey registrations."},
	{ID: authgate.MetricAuthenticationStart, Name: "authgate_authentication_start_total", Help: "Started passkey authentication ceremonies."},
	{ID: authgate.MetricAuthenticationSuccess, Name: "authgate_authentication_success_total", Help: "Completed passkey authentications."},
	{ID: authgate.MetricAuthenticationFailure, Name: "authgate_authentication_failure_total", Help: "Failed passkey authentications."},
	{ID: authgate.MetricReplayDetected, Name: "authgate_replay_detected_total", Help: "Assertions rejected as replayed or cloned."},
	{ID: authgate.MetricRateLimitHit, Name: "authgate_rate_limit_hit_total", Help: "Rate-limit checks that denied requests."},
	{ID: authgate.MetricSessionCreated, Name: "authgate_session_created_total", Help: "Created sessions."},
	{ID: authgate.MetricSessionInvalidated, Name: "authgate_session_invalidated_total", Help: "Invalidated sessions."},
	{ID: authgate.MetricLogout, Name: "authgate_logout_total", Help: "Logout operations."},
	{ID: authgate.MetricValidateSuccess, Name: "authgate_validate_success_total", Help: "Successful session validations."},
	{ID: authgate.MetricValidateFailure, Name: "authgate_validate_failure_total", Help: "Failed session validations."},
}

// HistogramDefs lists every exported histogram in exposition order.
var HistogramDefs = []HistogramDef{
	{ID: authgate.MetricValidateLatency, Name: "authgate_validate_latency_seconds", Help: "Validate latency histogram."},
}

// HistogramBounds are the upper bounds of the core histogram buckets, as
// Prometheus le label values.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts to the cumulative form
// Prometheus histograms require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
