package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-test-secret-test-secret!"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newHSManager(t *testing.T, clock *fakeClock) *Manager {
	t.Helper()
	m, err := NewManager(Config{
		SigningMethod: MethodHS256,
		PrivateKey:    []byte(testSecret),
		Issuer:        "authcore",
		Audience:      "shop",
		Now:           clock.Now,
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func accessClaims(sub string) Claims {
	return Claims{
		Kind:             KindAccess,
		SID:              "sess-1",
		Role:             "staff",
		Permissions:      []string{"orders.read", "catalog.write"},
		RegisteredClaims: gjwt.RegisteredClaims{Subject: sub},
	}
}

func TestSignParseRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	tok, issued, err := m.Sign(accessClaims("acct-7"), 15*time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if issued.ID == "" {
		t.Fatal("jti must be set")
	}

	got, err := m.Parse(tok, KindAccess)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got.Subject != "acct-7" || got.SID != "sess-1" || got.Role != "staff" {
		t.Fatalf("unexpected claims %+v", got)
	}
	if len(got.Permissions) != 2 || got.Permissions[0] != "orders.read" {
		t.Fatalf("permissions lost: %v", got.Permissions)
	}
	if got.ID != issued.ID {
		t.Fatal("jti changed across round trip")
	}
}

func TestParseRejectsWrongKind(t *testing.T) {
	m := newHSManager(t, &fakeClock{t: time.Now()})

	c := accessClaims("acct-1")
	c.Kind = KindRefresh
	tok, _, err := m.Sign(c, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := m.Parse(tok, KindAccess); !errors.Is(err, ErrWrongKind) {
		t.Fatalf("expected ErrWrongKind, got %v", err)
	}
}

func TestParseExpiredAndIgnoringExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	m := newHSManager(t, clock)

	tok, _, err := m.Sign(accessClaims("acct-1"), time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	clock.t = clock.t.Add(2 * time.Minute)

	if _, err := m.Parse(tok, KindAccess); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	claims, err := m.ParseIgnoringExpiry(tok)
	if err != nil {
		t.Fatalf("ParseIgnoringExpiry: %v", err)
	}
	if claims.Subject != "acct-1" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
}

func TestParseRejectsTamperingAndForeignKeys(t *testing.T) {
	m := newHSManager(t, &fakeClock{t: time.Now()})
	tok, _, err := m.Sign(accessClaims("acct-1"), time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tampered := tok[:len(tok)-2] + "xx"
	if _, err := m.Parse(tampered, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for tampered token, got %v", err)
	}
	if _, err := m.ParseIgnoringExpiry(tampered); !errors.Is(err, ErrMalformed) {
		t.Fatalf("signature must be checked even when ignoring expiry, got %v", err)
	}

	other, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("another-secret-another-secret-1234")})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	foreign, _, err := other.Sign(accessClaims("acct-1"), time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := m.Parse(foreign, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for foreign key, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	m, err := NewManager(Config{SigningMethod: MethodEd25519, PrivateKey: priv, PublicKey: pub})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	edTok, _, err := m.Sign(accessClaims("acct-1"), time.Minute)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if _, err := m.Parse(edTok, KindAccess); err != nil {
		t.Fatalf("ed25519 round trip: %v", err)
	}

	hs := gjwt.NewWithClaims(gjwt.SigningMethodHS256, &Claims{
		Kind: KindAccess,
		RegisteredClaims: gjwt.RegisteredClaims{
			ID:        "j",
			Subject:   "acct-1",
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	})
	signed, err := hs.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(signed, KindAccess); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected algorithm confusion to be rejected, got %v", err)
	}
}

func TestNewManagerRejectsShortSecret(t *testing.T) {
	if _, err := NewManager(Config{SigningMethod: MethodHS256, PrivateKey: []byte("short")}); err == nil {
		t.Fatal("expected short hs256 secret to be rejected")
	}
}
