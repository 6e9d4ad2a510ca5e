package authgate_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/descope/virtualwebauthn"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/authgate"
	"github.com/MrEthical07/authgate/store/memory"
)

func testRelyingParty() virtualwebauthn.RelyingParty {
	return virtualwebauthn.RelyingParty{
		Name:   testRPName,
		ID:     testRPID,
		Origin: testRPOrigin,
	}
}

// attestationFor answers a registration challenge with the virtual
// authenticator and returns the raw response body a browser would send.
func attestationFor(t *testing.T, rp virtualwebauthn.RelyingParty, auth *virtualwebauthn.Authenticator, cred virtualwebauthn.Credential, ch *authgate.RegistrationChallenge) []byte {
	t.Helper()

	optionsJSON, err := json.Marshal(ch.Options.Response)
	require.NoError(t, err)

	parsed, err := virtualwebauthn.ParseAttestationOptions(string(optionsJSON))
	require.NoError(t, err)

	return []byte(virtualwebauthn.CreateAttestationResponse(rp, *auth, cred, *parsed))
}

// assertionFor answers an authentication challenge with the virtual
// authenticator.
func assertionFor(t *testing.T, rp virtualwebauthn.RelyingParty, auth *virtualwebauthn.Authenticator, cred virtualwebauthn.Credential, ch *authgate.AuthenticationChallenge) []byte {
	t.Helper()

	optionsJSON, err := json.Marshal(ch.Options.Response)
	require.NoError(t, err)

	parsed, err := virtualwebauthn.ParseAssertionOptions(string(optionsJSON))
	require.NoError(t, err)

	return []byte(virtualwebauthn.CreateAssertionResponse(rp, *auth, cred, *parsed))
}

// enrollPasskey runs account creation plus a full registration ceremony and
// returns the enrolled credential ID.
func enrollPasskey(t *testing.T, engine *authgate.Engine, auth *virtualwebauthn.Authenticator, cred virtualwebauthn.Credential, username string) (userID, credentialID string) {
	t.Helper()
	ctx := context.Background()

	created, err := engine.CreateAccount(ctx, username, "", "correct-horse-battery")
	require.NoError(t, err)

	ch, err := engine.RegistrationStart(ctx, username)
	require.NoError(t, err)
	require.NotEmpty(t, ch.CeremonyID)

	credentialID, err = engine.RegistrationFinish(ctx, ch.CeremonyID, attestationFor(t, testRelyingParty(), auth, cred, ch))
	require.NoError(t, err)
	require.NotEmpty(t, credentialID)

	auth.AddCredential(cred)

	return created.UserID, credentialID
}

func TestPasskeyRegistrationAndLogin(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)

	userID, _ := enrollPasskey(t, engine, &authenticator, credential, "alice")

	ch, err := engine.AuthenticationStart(ctx, "alice")
	require.NoError(t, err)
	require.NotEmpty(t, ch.CeremonyID)
	assert.NotEmpty(t, ch.Options.Response.Challenge)

	result, err := engine.AuthenticationFinish(ctx, ch.CeremonyID, assertionFor(t, testRelyingParty(), &authenticator, credential, ch))
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	assert.Equal(t, "alice", result.Username)
	require.NotEmpty(t, result.SessionToken)

	auth, err := engine.Validate(ctx, result.SessionToken)
	require.NoError(t, err)
	assert.Equal(t, userID, auth.UserID)
}

func TestRegistrationStartUnknownUser(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	_, err := engine.RegistrationStart(context.Background(), "ghost")
	assert.ErrorIs(t, err, authgate.ErrUserNotFound)
}

func TestRegistrationFinishMalformedResponse(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)

	_, err := engine.RegistrationFinish(context.Background(), "some-ceremony", []byte("not-a-credential"))
	assert.ErrorIs(t, err, authgate.ErrMalformedCredential)
}

func TestCeremonyIsSingleUse(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	enrollPasskey(t, engine, &authenticator, credential, "alice")

	ch, err := engine.AuthenticationStart(ctx, "alice")
	require.NoError(t, err)

	response := assertionFor(t, testRelyingParty(), &authenticator, credential, ch)

	_, err = engine.AuthenticationFinish(ctx, ch.CeremonyID, response)
	require.NoError(t, err)

	// The ceremony was consumed by the first finish.
	_, err = engine.AuthenticationFinish(ctx, ch.CeremonyID, response)
	assert.ErrorIs(t, err, authgate.ErrCeremonyInvalid)
}

func TestAuthenticationFinishRejectsRegistrationCeremony(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	enrollPasskey(t, engine, &authenticator, credential, "alice")

	// A registration ceremony ID can never finish an authentication.
	regCh, err := engine.RegistrationStart(ctx, "alice")
	require.NoError(t, err)

	loginCh, err := engine.AuthenticationStart(ctx, "alice")
	require.NoError(t, err)
	response := assertionFor(t, testRelyingParty(), &authenticator, credential, loginCh)

	_, err = engine.AuthenticationFinish(ctx, regCh.CeremonyID, response)
	assert.ErrorIs(t, err, authgate.ErrCeremonyInvalid)
}

func TestAuthenticationFinishChallengeMismatch(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	enrollPasskey(t, engine, &authenticator, credential, "alice")

	chA, err := engine.AuthenticationStart(ctx, "alice")
	require.NoError(t, err)
	chB, err := engine.AuthenticationStart(ctx, "alice")
	require.NoError(t, err)

	// Sign ceremony B's challenge but finish ceremony A with it.
	response := assertionFor(t, testRelyingParty(), &authenticator, credential, chB)

	_, err = engine.AuthenticationFinish(ctx, chA.CeremonyID, response)
	assert.ErrorIs(t, err, authgate.ErrInvalidCredentials)
}

func TestAuthenticationStartNoCredentials(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := engine.CreateAccount(ctx, "alice", "", "correct-horse-battery")
	require.NoError(t, err)

	_, err = engine.AuthenticationStart(ctx, "alice")
	assert.ErrorIs(t, err, authgate.ErrNoCredentials)
}

func TestConcealUnknownUsersDecoyChallenge(t *testing.T) {
	engine, _, _ := newTestEngine(t, func(cfg *authgate.Config) {
		cfg.Security.ConcealUnknownUsers = true
	})
	ctx := context.Background()

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	enrollPasskey(t, engine, &authenticator, credential, "alice")

	// Unknown usernames still get a syntactically valid challenge.
	ch, err := engine.AuthenticationStart(ctx, "ghost")
	require.NoError(t, err)
	require.NotEmpty(t, ch.CeremonyID)
	assert.NotEmpty(t, ch.Options.Response.Challenge)

	// Finishing a decoy always fails with the generic credential error,
	// even with a real authenticator response.
	response := assertionFor(t, testRelyingParty(), &authenticator, credential, ch)
	_, err = engine.AuthenticationFinish(ctx, ch.CeremonyID, response)
	assert.ErrorIs(t, err, authgate.ErrInvalidCredentials)
}

func TestReplayDetectedOnCounterRegression(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)
	ctx := context.Background()

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	_, credentialID := enrollPasskey(t, engine, &authenticator, credential, "alice")

	// First login advances the stored counter.
	ch, err := engine.AuthenticationStart(ctx, "alice")
	require.NoError(t, err)
	_, err = engine.AuthenticationFinish(ctx, ch.CeremonyID, assertionFor(t, testRelyingParty(), &authenticator, credential, ch))
	require.NoError(t, err)

	// Simulate a cloned authenticator having raced ahead: the stored
	// counter is far beyond what this authenticator will sign next.
	require.NoError(t, store.UpdateSignatureCounter(ctx, credentialID, 1000))

	ch, err = engine.AuthenticationStart(ctx, "alice")
	require.NoError(t, err)
	_, err = engine.AuthenticationFinish(ctx, ch.CeremonyID, assertionFor(t, testRelyingParty(), &authenticator, credential, ch))
	assert.ErrorIs(t, err, authgate.ErrReplayDetected)

	// The stored counter did not regress and no session was minted.
	count, ok := store.SignCount(credentialID)
	require.True(t, ok)
	assert.Equal(t, uint32(1000), count)

	snapshot := engine.MetricsSnapshot()
	assert.Equal(t, uint64(1), snapshot.Counters[authgate.MetricReplayDetected])
}

func TestCounterPersistedAcrossLogins(t *testing.T) {
	engine, store, _ := newTestEngine(t, nil)
	ctx := context.Background()

	authenticator := virtualwebauthn.NewAuthenticator()
	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	_, credentialID := enrollPasskey(t, engine, &authenticator, credential, "alice")

	for i := 1; i <= 3; i++ {
		ch, err := engine.AuthenticationStart(ctx, "alice")
		require.NoError(t, err)
		_, err = engine.AuthenticationFinish(ctx, ch.CeremonyID, assertionFor(t, testRelyingParty(), &authenticator, credential, ch))
		require.NoError(t, err)

		count, ok := store.SignCount(credentialID)
		require.True(t, ok)
		assert.Equal(t, uint32(i), count)
	}
}

func TestPendingCeremoniesTracksOutstanding(t *testing.T) {
	engine, _, _ := newTestEngine(t, nil)
	ctx := context.Background()

	_, err := engine.CreateAccount(ctx, "alice", "", "correct-horse-battery")
	require.NoError(t, err)

	require.Equal(t, 0, engine.PendingCeremonies())

	_, err = engine.RegistrationStart(ctx, "alice")
	require.NoError(t, err)
	_, err = engine.RegistrationStart(ctx, "alice")
	require.NoError(t, err)

	assert.Equal(t, 2, engine.PendingCeremonies())
}

func TestAuditEventsEmittedForCeremonies(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := fastTestConfig()
	cfg.Audit.Enabled = true
	cfg.Audit.BufferSize = 64

	sink := authgate.NewChannelSink(64)
	engine, err := authgate.New().
		WithConfig(cfg).
		WithRedis(client).
		WithUserStore(memory.New()).
		WithAuditSink(sink).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	ctx := context.Background()
	_, err = engine.CreateAccount(ctx, "alice", "", "correct-horse-battery")
	require.NoError(t, err)
	login, err := engine.Login(ctx, "alice", "correct-horse-battery")
	require.NoError(t, err)
	require.NoError(t, engine.Logout(ctx, login.SessionToken))

	// Close drains the dispatcher so every emitted event has reached the
	// sink before we inspect it.
	engine.Close()

	var types []string
	for {
		select {
		case event := <-sink.Events():
			types = append(types, event.EventType)
			continue
		default:
		}
		break
	}
	assert.Contains(t, types, "account.created")
	assert.Contains(t, types, "login.success")
	assert.Contains(t, types, "session.logout")
}
