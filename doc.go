// Package authgate provides the authentication engine behind a reverse-proxy
// auth_request endpoint: password login with argon2id hashing, WebAuthn passkey
// registration and login ceremonies, and opaque Redis-backed session tokens.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (MetricsSnapshot, LoginResult, AuthResult, etc.). All internal coordination — ceremony
// bookkeeping, session encoding, rate limiting, audit dispatch — lives under internal/ and
// the mechanism subpackages (challenge, password, session, jwt).
//
// # What this package must NOT do
//
//   - Expose Redis clients, store handles, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Hold the challenge registry lock across store or Redis round-trips.
//
// # Performance contract
//
// Validate is the hot path: one Redis round-trip, no credential store access. Login and
// ceremony operations are allowed store access plus at most two Redis round-trips per call.
package authgate
