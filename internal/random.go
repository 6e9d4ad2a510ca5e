package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
)

// CeremonyID is a 128-bit identifier for a pending WebAuthn ceremony.
type CeremonyID [16]byte

const sessionTokenSize = 32

func NewCeremonyID() (CeremonyID, error) {
	var cid CeremonyID
	_, err := rand.Read(cid[:])
	return cid, err
}

func (c CeremonyID) String() string {
	// base64url, no padding, compact
	return base64.RawURLEncoding.EncodeToString(c[:])
}

func ParseCeremonyID(ceremonyID string) (CeremonyID, error) {
	var cid CeremonyID

	raw, err := base64.RawURLEncoding.DecodeString(ceremonyID)
	if err != nil {
		return cid, err
	}
	if len(raw) != len(cid) {
		return cid, errors.New("invalid ceremony id size")
	}

	copy(cid[:], raw)
	return cid, nil
}

// NewSessionToken returns a 256-bit opaque bearer token.
func NewSessionToken() (string, error) {
	var raw [sessionTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw[:]), nil
}

// HashSessionToken derives the storage key for a session token. Only the
// hash ever reaches Redis, so a dump cannot yield usable bearer tokens.
func HashSessionToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
