package authgate

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/MrEthical07/authgate/challenge"
)

// webauthnUser adapts a stored account and its passkeys to the verifier's
// user interface.
type webauthnUser struct {
	rec   UserRecord
	creds []webauthn.Credential
}

func (u *webauthnUser) WebAuthnID() []byte {
	return []byte(u.rec.UserID)
}

func (u *webauthnUser) WebAuthnName() string {
	return u.rec.Username
}

func (u *webauthnUser) WebAuthnDisplayName() string {
	if u.rec.DisplayName != "" {
		return u.rec.DisplayName
	}
	return u.rec.Username
}

func (u *webauthnUser) WebAuthnCredentials() []webauthn.Credential {
	return u.creds
}

func encodeCredentialID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}

// loadWebauthnUser fetches the account's passkeys and decodes them. The
// SignCount column overrides the counter embedded in the stored JSON;
// undecodable records are skipped rather than blocking every ceremony for
// the account.
func (e *Engine) loadWebauthnUser(ctx context.Context, rec UserRecord) (*webauthnUser, []CredentialRecord, error) {
	sctx, cancel := e.storeCtx(ctx)
	records, err := e.store.ListCredentials(sctx, rec.UserID)
	cancel()
	if err != nil {
		return nil, nil, wrapStoreErr(err)
	}

	creds := make([]webauthn.Credential, 0, len(records))
	for _, r := range records {
		var cred webauthn.Credential
		if err := json.Unmarshal(r.Data, &cred); err != nil {
			log.Print("authgate: skipping undecodable credential record")
			continue
		}
		cred.Authenticator.SignCount = r.SignCount
		creds = append(creds, cred)
	}

	return &webauthnUser{rec: rec, creds: creds}, records, nil
}

// RegistrationStart opens a passkey enrollment ceremony for an existing
// account. Enrolled credentials are excluded so an authenticator refuses to
// re-register itself.
func (e *Engine) RegistrationStart(ctx context.Context, username string) (*RegistrationChallenge, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username", ErrInvalidInput)
	}

	sctx, cancel := e.storeCtx(ctx)
	user, err := e.store.FindUser(sctx, username)
	cancel()
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	waUser, records, err := e.loadWebauthnUser(ctx, user)
	if err != nil {
		return nil, err
	}

	exclusions := make([]protocol.CredentialDescriptor, 0, len(records))
	for _, cred := range waUser.creds {
		exclusions = append(exclusions, protocol.CredentialDescriptor{
			Type:         protocol.PublicKeyCredentialType,
			CredentialID: cred.ID,
		})
	}

	creation, sessionData, err := e.webauthn.BeginRegistration(waUser, webauthn.WithExclusions(exclusions))
	if err != nil {
		return nil, fmt.Errorf("begin registration: %w", err)
	}

	ceremonyID, err := e.ceremonies.Put(challenge.Ceremony{
		Kind:     challenge.KindRegistration,
		UserID:   user.UserID,
		Username: user.Username,
		Session:  *sessionData,
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricRegistrationStart)
	e.emitAudit(ctx, auditEventRegistrationStart, true, user.UserID, user.Username, ceremonyID, nil, nil)

	return &RegistrationChallenge{
		CeremonyID: ceremonyID,
		Options:    creation,
	}, nil
}

// RegistrationFinish consumes the ceremony, verifies the attestation
// response, and persists the new passkey. It returns the credential ID of
// the enrolled passkey. The ceremony is spent even when verification fails.
func (e *Engine) RegistrationFinish(ctx context.Context, ceremonyID string, response []byte) (string, error) {
	if !e.ready() {
		return "", ErrEngineNotReady
	}

	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	c, ok := e.ceremonies.TakeAndRemove(ceremonyID)
	if !ok || c.Kind != challenge.KindRegistration {
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistrationFinish, false, "", "", ceremonyID, ErrCeremonyInvalid, nil)
		return "", ErrCeremonyInvalid
	}

	sctx, cancel := e.storeCtx(ctx)
	user, err := e.store.FindUserByID(sctx, c.UserID)
	cancel()
	if err != nil {
		return "", wrapStoreErr(err)
	}

	waUser, _, err := e.loadWebauthnUser(ctx, user)
	if err != nil {
		return "", err
	}

	cred, err := e.webauthn.CreateCredential(waUser, c.Session, parsed)
	if err != nil {
		e.metricInc(MetricRegistrationFailure)
		e.emitAudit(ctx, auditEventRegistrationFinish, false, user.UserID, user.Username, ceremonyID, err, func() map[string]string {
			return map[string]string{
				"reason": "attestation_verification",
			}
		})
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	data, err := json.Marshal(cred)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec := CredentialRecord{
		CredentialID: encodeCredentialID(cred.ID),
		UserID:       user.UserID,
		Data:         data,
		SignCount:    cred.Authenticator.SignCount,
		CreatedAt:    now,
		LastUsedAt:   now,
	}

	sctx, cancel = e.storeCtx(ctx)
	err = e.store.UpsertCredential(sctx, rec)
	cancel()
	if err != nil {
		err = wrapStoreErr(err)
		if errors.Is(err, ErrCredentialBound) {
			e.metricInc(MetricRegistrationFailure)
			e.emitAudit(ctx, auditEventRegistrationFinish, false, user.UserID, user.Username, ceremonyID, err, nil)
		}
		return "", err
	}

	e.metricInc(MetricRegistrationSuccess)
	e.emitAudit(ctx, auditEventRegistrationFinish, true, user.UserID, user.Username, ceremonyID, nil, func() map[string]string {
		return map[string]string{
			"credential_id": rec.CredentialID,
		}
	})

	return rec.CredentialID, nil
}

// AuthenticationStart opens a passkey login ceremony for an account. With
// Security.ConcealUnknownUsers set, unknown and credential-less usernames
// receive a decoy challenge whose finish always fails with the generic
// credential error.
func (e *Engine) AuthenticationStart(ctx context.Context, username string) (*AuthenticationChallenge, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}
	if strings.TrimSpace(username) == "" {
		return nil, fmt.Errorf("%w: username", ErrInvalidInput)
	}

	sctx, cancel := e.storeCtx(ctx)
	user, err := e.store.FindUser(sctx, username)
	cancel()
	if err != nil {
		err = wrapStoreErr(err)
		if errors.Is(err, ErrUserNotFound) && e.config.Security.ConcealUnknownUsers {
			return e.decoyChallenge(ctx, username)
		}
		return nil, err
	}

	waUser, _, err := e.loadWebauthnUser(ctx, user)
	if err != nil {
		return nil, err
	}

	if len(waUser.creds) == 0 {
		if e.config.Security.ConcealUnknownUsers {
			return e.decoyChallenge(ctx, username)
		}
		return nil, ErrNoCredentials
	}

	assertion, sessionData, err := e.webauthn.BeginLogin(waUser)
	if err != nil {
		return nil, fmt.Errorf("begin login: %w", err)
	}

	ceremonyID, err := e.ceremonies.Put(challenge.Ceremony{
		Kind:     challenge.KindAuthentication,
		UserID:   user.UserID,
		Username: user.Username,
		Session:  *sessionData,
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricAuthenticationStart)
	e.emitAudit(ctx, auditEventAuthenticationStart, true, user.UserID, user.Username, ceremonyID, nil, nil)

	return &AuthenticationChallenge{
		CeremonyID: ceremonyID,
		Options:    assertion,
	}, nil
}

// decoyChallenge mints a discoverable-login ceremony with no bound user so
// the response shape for unknown usernames matches the real one. Its finish
// can only fail.
func (e *Engine) decoyChallenge(ctx context.Context, username string) (*AuthenticationChallenge, error) {
	assertion, sessionData, err := e.webauthn.BeginDiscoverableLogin()
	if err != nil {
		return nil, fmt.Errorf("begin login: %w", err)
	}

	ceremonyID, err := e.ceremonies.Put(challenge.Ceremony{
		Kind:     challenge.KindAuthentication,
		Username: username,
		Session:  *sessionData,
	})
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricAuthenticationStart)
	e.emitAudit(ctx, auditEventAuthenticationStart, true, "", username, ceremonyID, nil, func() map[string]string {
		return map[string]string{
			"decoy": "true",
		}
	})

	return &AuthenticationChallenge{
		CeremonyID: ceremonyID,
		Options:    assertion,
	}, nil
}

// AuthenticationFinish consumes the ceremony, verifies the assertion, and
// mints a session. A counter that fails to advance past the stored value is
// treated as a cloned-authenticator signal and rejected with
// [ErrReplayDetected]; the session is never minted in that case.
func (e *Engine) AuthenticationFinish(ctx context.Context, ceremonyID string, response []byte) (*LoginResult, error) {
	if !e.ready() {
		return nil, ErrEngineNotReady
	}

	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCredential, err)
	}

	c, ok := e.ceremonies.TakeAndRemove(ceremonyID)
	if !ok || c.Kind != challenge.KindAuthentication {
		e.metricInc(MetricAuthenticationFailure)
		e.emitAudit(ctx, auditEventAuthenticationFinish, false, "", "", ceremonyID, ErrCeremonyInvalid, nil)
		return nil, ErrCeremonyInvalid
	}

	if c.UserID == "" {
		// Decoy ceremony for a concealed username.
		e.metricInc(MetricAuthenticationFailure)
		e.emitAudit(ctx, auditEventAuthenticationFinish, false, "", c.Username, ceremonyID, ErrInvalidCredentials, func() map[string]string {
			return map[string]string{
				"decoy": "true",
			}
		})
		return nil, ErrInvalidCredentials
	}

	sctx, cancel := e.storeCtx(ctx)
	user, err := e.store.FindUserByID(sctx, c.UserID)
	cancel()
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	waUser, _, err := e.loadWebauthnUser(ctx, user)
	if err != nil {
		return nil, err
	}

	cred, err := e.webauthn.ValidateLogin(waUser, c.Session, parsed)
	if err != nil {
		e.metricInc(MetricAuthenticationFailure)
		e.emitAudit(ctx, auditEventAuthenticationFinish, false, user.UserID, user.Username, ceremonyID, err, func() map[string]string {
			return map[string]string{
				"reason": "assertion_verification",
			}
		})
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	credentialID := encodeCredentialID(cred.ID)

	if cred.Authenticator.CloneWarning {
		return nil, e.replayDetected(ctx, user, ceremonyID, credentialID)
	}

	// Authenticators without counters report zero forever; only persist
	// when the counter is in use.
	if cred.Authenticator.SignCount != 0 {
		sctx, cancel := e.storeCtx(ctx)
		err = e.store.UpdateSignatureCounter(sctx, credentialID, cred.Authenticator.SignCount)
		cancel()
		if err != nil {
			err = wrapStoreErr(err)
			if errors.Is(err, ErrStaleCounter) {
				return nil, e.replayDetected(ctx, user, ceremonyID, credentialID)
			}
			if errors.Is(err, ErrCredentialNotFound) {
				return nil, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
			}
			return nil, err
		}
	}

	token, rec, err := e.sessions.Issue(ctx, user.UserID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	e.metricInc(MetricSessionCreated)
	e.metricInc(MetricAuthenticationSuccess)
	e.emitAudit(ctx, auditEventAuthenticationFinish, true, user.UserID, user.Username, ceremonyID, nil, func() map[string]string {
		return map[string]string{
			"credential_id": credentialID,
		}
	})

	return &LoginResult{
		UserID:       user.UserID,
		Username:     user.Username,
		SessionToken: token,
		ExpiresAt:    time.Unix(rec.ExpiresAt, 0),
	}, nil
}

func (e *Engine) replayDetected(ctx context.Context, user UserRecord, ceremonyID, credentialID string) error {
	e.metricInc(MetricReplayDetected)
	e.metricInc(MetricAuthenticationFailure)
	e.emitAudit(ctx, auditEventReplayDetected, false, user.UserID, user.Username, ceremonyID, ErrReplayDetected, func() map[string]string {
		return map[string]string{
			"credential_id": credentialID,
		}
	})
	return ErrReplayDetected
}
