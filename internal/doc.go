// Package internal contains helper utilities that are intentionally private to authgate,
// including secure random generation for ceremony IDs and session tokens.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - metrics — lock-free counters and latency histograms
//   - rate — Redis-backed login rate limit primitives
//
// # What this package must NOT do
//
//   - Export types that appear in the public authgate API.
//   - Be imported by any package outside the authgate module.
package internal
