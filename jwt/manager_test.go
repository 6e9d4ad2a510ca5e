package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"strings"
	"testing"
	"time"
)

func newEdManager(t *testing.T, ttl time.Duration) (*Manager, ed25519.PrivateKey) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}

	m, err := NewManager(Config{
		AssertionTTL:  ttl,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		Issuer:        "authgate-test",
		Audience:      "upstream",
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	return m, priv
}

func TestCreateAndParseAssertion(t *testing.T) {
	m, _ := newEdManager(t, 2*time.Minute)

	assertion, err := m.CreateAssertion("u1", "alice")
	if err != nil {
		t.Fatalf("CreateAssertion error: %v", err)
	}

	claims, err := m.ParseAssertion(assertion)
	if err != nil {
		t.Fatalf("ParseAssertion error: %v", err)
	}

	if claims.Subject != "u1" {
		t.Fatalf("expected subject u1, got %q", claims.Subject)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected username alice, got %q", claims.Username)
	}
	if claims.Issuer != "authgate-test" {
		t.Fatalf("expected issuer authgate-test, got %q", claims.Issuer)
	}
}

func TestParseRejectsTamperedAssertion(t *testing.T) {
	m, _ := newEdManager(t, 2*time.Minute)

	assertion, err := m.CreateAssertion("u1", "alice")
	if err != nil {
		t.Fatalf("CreateAssertion error: %v", err)
	}

	parts := strings.Split(assertion, ".")
	if len(parts) != 3 {
		t.Fatalf("expected JWS compact form, got %d segments", len(parts))
	}
	tampered := parts[0] + ".eyJzdWIiOiJhdHRhY2tlciJ9." + parts[2]

	if _, err := m.ParseAssertion(tampered); err == nil {
		t.Fatal("expected tampered assertion to be rejected")
	}
}

func TestParseRejectsForeignKey(t *testing.T) {
	m1, _ := newEdManager(t, 2*time.Minute)
	m2, _ := newEdManager(t, 2*time.Minute)

	assertion, err := m1.CreateAssertion("u1", "alice")
	if err != nil {
		t.Fatalf("CreateAssertion error: %v", err)
	}

	if _, err := m2.ParseAssertion(assertion); err == nil {
		t.Fatal("expected assertion signed by another key to be rejected")
	}
}

func TestParseRejectsExpiredAssertion(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}

	m, err := NewManager(Config{
		AssertionTTL:  time.Nanosecond,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	assertion, err := m.CreateAssertion("u1", "alice")
	if err != nil {
		t.Fatalf("CreateAssertion error: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	if _, err := m.ParseAssertion(assertion); err == nil {
		t.Fatal("expected expired assertion to be rejected")
	}
}

func TestHS256RoundTrip(t *testing.T) {
	m, err := NewManager(Config{
		AssertionTTL:  time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "authgate-test",
	})
	if err != nil {
		t.Fatalf("NewManager error: %v", err)
	}

	assertion, err := m.CreateAssertion("u2", "bob")
	if err != nil {
		t.Fatalf("CreateAssertion error: %v", err)
	}

	claims, err := m.ParseAssertion(assertion)
	if err != nil {
		t.Fatalf("ParseAssertion error: %v", err)
	}
	if claims.Subject != "u2" || claims.Username != "bob" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestHS256RejectsAlgorithmConfusion(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey error: %v", err)
	}

	edManager, err := NewManager(Config{
		AssertionTTL:  time.Minute,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
	})
	if err != nil {
		t.Fatalf("NewManager(ed25519) error: %v", err)
	}

	hsManager, err := NewManager(Config{
		AssertionTTL:  time.Minute,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
	})
	if err != nil {
		t.Fatalf("NewManager(hs256) error: %v", err)
	}

	assertion, err := edManager.CreateAssertion("u1", "alice")
	if err != nil {
		t.Fatalf("CreateAssertion error: %v", err)
	}

	if _, err := hsManager.ParseAssertion(assertion); err == nil {
		t.Fatal("expected cross-algorithm assertion to be rejected")
	}
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("k")}); err == nil {
		t.Fatal("expected zero TTL to be rejected")
	}
	if _, err := NewManager(Config{AssertionTTL: time.Minute, SigningMethod: "rs256"}); err == nil {
		t.Fatal("expected unsupported method to be rejected")
	}
	if _, err := NewManager(Config{AssertionTTL: time.Minute, SigningMethod: MethodEd25519}); err == nil {
		t.Fatal("expected missing key material to be rejected")
	}
}
