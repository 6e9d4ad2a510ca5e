package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/MrEthical07/authgate"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	res, err := s.engine.CreateAccount(r.Context(), req.Username, req.DisplayName, req.Password)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, registerResponse{
		UserID:   res.UserID,
		Username: res.Username,
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	res, err := s.engine.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.SessionToken,
		UserID:    res.UserID,
		Username:  res.Username,
		ExpiresAt: res.ExpiresAt,
	})
}

// handleLogout revokes the presented session. Always 204: revoking a
// missing or already-revoked token is not an error.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := s.sessionToken(r)
	if err := s.engine.Logout(r.Context(), token); err != nil {
		s.writeEngineError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRegistrationStart(w http.ResponseWriter, r *http.Request) {
	var req ceremonyStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	challenge, err := s.engine.RegistrationStart(r.Context(), req.Username)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ceremonyStartResponse{
		CeremonyID: challenge.CeremonyID,
		Options:    challenge.Options,
	})
}

func (s *Server) handleRegistrationFinish(w http.ResponseWriter, r *http.Request) {
	var req ceremonyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	credentialID, err := s.engine.RegistrationFinish(r.Context(), req.CeremonyID, req.Credential)
	if err != nil {
		// An attestation the verifier rejects is a malformed enrollment,
		// not a failed login.
		if authgate.Classify(err) == authgate.KindAuthentication {
			s.writeBadRequest(w, "credential verification failed")
			return
		}
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, registerFinishResponse{CredentialID: credentialID})
}

func (s *Server) handleAuthenticationStart(w http.ResponseWriter, r *http.Request) {
	var req ceremonyStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	challenge, err := s.engine.AuthenticationStart(r.Context(), req.Username)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, ceremonyStartResponse{
		CeremonyID: challenge.CeremonyID,
		Options:    challenge.Options,
	})
}

func (s *Server) handleAuthenticationFinish(w http.ResponseWriter, r *http.Request) {
	var req ceremonyFinishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeBadRequest(w, "invalid request body")
		return
	}

	res, err := s.engine.AuthenticationFinish(r.Context(), req.CeremonyID, req.Credential)
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, loginResponse{
		Token:     res.SessionToken,
		UserID:    res.UserID,
		Username:  res.Username,
		ExpiresAt: res.ExpiresAt,
	})
}

// handleAuth is the auth_request check endpoint. The proxy forwards only
// the status and response headers, so identity travels in headers and the
// body stays empty.
func (s *Server) handleAuth(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Validate(r.Context(), s.sessionToken(r))
	if err != nil {
		s.writeEngineError(w, r, err)
		return
	}

	w.Header().Set("X-Auth-User", res.Username)
	w.Header().Set("X-Auth-User-Id", res.UserID)
	if res.IdentityAssertion != "" {
		w.Header().Set("X-Auth-Assertion", res.IdentityAssertion)
	}
	w.WriteHeader(http.StatusOK)
}
