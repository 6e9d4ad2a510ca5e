// Package challenge tracks pending WebAuthn ceremonies between the start and
// finish calls of a registration or authentication exchange.
//
// # Design
//
// Ceremonies live in an in-memory map guarded by a single mutex; there is no
// Redis round-trip on the ceremony path. IDs are 128-bit random values in
// base64url. A ceremony is claimable exactly once: [Registry.TakeAndRemove]
// deletes under the lock, so a replayed finish loses the race by
// construction.
//
// # Lifecycle
//
// Entries expire after Config.TTL. A background sweeper reaps expired
// entries; takes also reject them lazily, so correctness does not depend on
// the sweeper. Above Config.MaxPending the registry evicts the entry closest
// to expiry rather than refusing new ceremonies.
//
// # What this package must NOT do
//
//   - Verify WebAuthn responses (the Engine owns verification).
//   - Hold the lock across any I/O.
package challenge
