// Package rate provides Redis-backed rate limit keys, errors, and limiter
// behavior for login throttling.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - al:  — login per-user
//   - ali: — login per-IP
//
// # What this package must NOT do
//
//   - Implement domain-specific policies (the Engine decides when to check,
//     increment, and reset).
//   - Be imported outside the authgate module.
package rate
