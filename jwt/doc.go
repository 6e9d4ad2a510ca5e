// Package jwt mints and verifies short-lived signed identity assertions
// handed to upstream services on successful proxy checks.
package jwt
