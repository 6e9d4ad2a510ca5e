// Package httpapi exposes the engine over HTTP for reverse-proxy
// deployments.
//
// # Endpoints
//
//   - POST /register, /login, /logout — password account lifecycle.
//   - POST /webauthn/register/{start,finish} — passkey enrollment.
//   - POST /webauthn/login/{start,finish} — passkey authentication.
//   - GET /auth — the auth_request check endpoint; resolves the session
//     token from the Authorization header or session cookie and answers
//     200 with identity headers, or 401.
//   - GET /metrics — Prometheus text exposition, when a handler is mounted.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authentication logic itself; all decisions are delegated to
// the engine, and error bodies carry only the error kind taxonomy.
//
// # What this package must NOT do
//
//   - Access Redis or the credential store directly.
//   - Include hash material, key material, or wrapped error detail in
//     response bodies.
package httpapi
