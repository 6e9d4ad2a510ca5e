package httpapi

import (
	"encoding/json"
	"time"
)

type registerRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Password    string `json:"password"`
}

type registerResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expires_at"`
}

type ceremonyStartRequest struct {
	Username string `json:"username"`
}

// ceremonyStartResponse carries the ceremony handle plus the publicKey
// options the browser hands to navigator.credentials.create or .get.
type ceremonyStartResponse struct {
	CeremonyID string `json:"ceremony_id"`
	Options    any    `json:"options"`
}

type ceremonyFinishRequest struct {
	CeremonyID string          `json:"ceremony_id"`
	Credential json.RawMessage `json:"credential"`
}

type registerFinishResponse struct {
	CredentialID string `json:"credential_id"`
}

type errorResponse struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}
