// Package session provides Redis-backed session persistence and compact binary session
// encoding for the token validation hot path.
//
// # Token model
//
// Tokens are opaque 256-bit bearer values. Only the SHA-256 of a token is
// used as the Redis key, so a Redis dump never yields usable tokens. Records
// are stored in a compact binary format with a leading schema version byte;
// the encoder is append-only: new versions add fields but never reinterpret
// old ones.
//
// # Expiry
//
// Records carry an explicit ExpiresAt and are written with a matching Redis
// TTL. Validation checks ExpiresAt as well, so a record that outlives its
// TTL (clock skew, missing expiry) is still rejected and deleted lazily.
//
// # What this package must NOT do
//
//   - Import authgate or jwt (no upward imports).
//   - Perform application-level authorization decisions.
//   - Store the raw bearer token anywhere.
package session
