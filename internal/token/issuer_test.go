package token

import (
	"errors"
	"testing"
	"time"
)

func TestIssueAndDecodeRoundTrip(t *testing.T) {
	iss, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	attrs := Attributes{
		Backend:     "directory",
		DisplayName: "Jane Doe",
		Email:       "jdoe@example.com",
		Groups:      []string{"Engineering", "Users"},
	}
	signed, expiresAt, err := iss.Issue("jdoe@example.com", attrs, 10*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatalf("expected future expiry, got %v", expiresAt)
	}

	claims, err := iss.Decode(signed)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if claims.Subject != "jdoe@example.com" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if claims.Backend != "directory" || claims.DisplayName != "Jane Doe" || claims.Email != "jdoe@example.com" {
		t.Fatalf("attributes not preserved: %+v", claims)
	}
	if len(claims.Groups) != 2 || claims.Groups[0] != "Engineering" {
		t.Fatalf("groups not preserved: %v", claims.Groups)
	}
	if claims.Admin {
		t.Fatalf("unexpected admin hint")
	}
	if claims.ID == "" {
		t.Fatalf("expected a token id claim")
	}
}

func TestDecodeExpiredToken(t *testing.T) {
	now := time.Now()
	clock := now
	iss, err := NewIssuer("test-secret", WithClock(func() time.Time { return clock }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	signed, _, err := iss.Issue("jdoe@example.com", Attributes{}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	if _, err := iss.Decode(signed); err != nil {
		t.Fatalf("Decode before expiry: %v", err)
	}

	clock = now.Add(2 * time.Minute)
	if _, err := iss.Decode(signed); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestDecodeInvalidSignature(t *testing.T) {
	iss, err := NewIssuer("secret-a")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	other, err := NewIssuer("secret-b")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	signed, _, err := other.Issue("jdoe@example.com", Attributes{}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := iss.Decode(signed); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestDecodeMalformedToken(t *testing.T) {
	iss, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	for _, raw := range []string{"", "   ", "not-a-token", "a.b.c"} {
		if _, err := iss.Decode(raw); !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("Decode(%q): expected ErrMalformedToken, got %v", raw, err)
		}
	}
}

func TestIssueDefaultTTL(t *testing.T) {
	now := time.Now()
	iss, err := NewIssuer("test-secret",
		WithDefaultTTL(45*time.Minute),
		WithClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	_, expiresAt, err := iss.Issue("jdoe@example.com", Attributes{}, 0)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := expiresAt.Sub(now.UTC()); got != 45*time.Minute {
		t.Fatalf("expected default ttl 45m, got %v", got)
	}
}

func TestIssueRequiresPrincipal(t *testing.T) {
	iss, err := NewIssuer("test-secret")
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	if _, _, err := iss.Issue("  ", Attributes{}, time.Minute); err == nil {
		t.Fatalf("expected error for empty principal name")
	}
}

func TestDecodeRejectsForeignIssuer(t *testing.T) {
	a, err := NewIssuer("test-secret", WithIssuerName("issuer-a"))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	b, err := NewIssuer("test-secret", WithIssuerName("issuer-b"))
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	signed, _, err := b.Issue("jdoe@example.com", Attributes{}, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := a.Decode(signed); !errors.Is(err, ErrMalformedToken) {
		t.Fatalf("expected ErrMalformedToken for foreign issuer, got %v", err)
	}
}
