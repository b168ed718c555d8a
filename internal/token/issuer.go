// Package token issues and verifies the signed, stateless session tokens
// that prove prior authentication. Tokens are self-contained; expiry is
// enforced by claim inspection only and there is no revocation list.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultIssuer = "omnicorp-authcore"

var (
	// ErrMalformedToken covers tokens that cannot be parsed or whose
	// claims fail structural validation.
	ErrMalformedToken = errors.New("token: malformed token")
	// ErrInvalidSignature indicates the signature did not verify under
	// the configured secret and algorithm.
	ErrInvalidSignature = errors.New("token: invalid signature")
	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token: expired token")
)

// Claims is the session token payload: the principal identifier in the
// registered subject plus display attributes and a coarse capability
// hint for the admin backend.
type Claims struct {
	Backend     string   `json:"backend,omitempty"`
	DisplayName string   `json:"display_name,omitempty"`
	Email       string   `json:"email,omitempty"`
	Groups      []string `json:"groups,omitempty"`
	Admin       bool     `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// Attributes carries the display attributes embedded at issue time.
type Attributes struct {
	Backend     string
	DisplayName string
	Email       string
	Groups      []string
	Admin       bool
}

// Issuer signs and verifies session tokens with an HMAC secret. Its
// operations are pure functions of the secret and are safe for
// unbounded concurrent use.
type Issuer struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithIssuerName overrides the issuer claim.
func WithIssuerName(name string) Option {
	return func(i *Issuer) {
		if name = strings.TrimSpace(name); name != "" {
			i.issuer = name
		}
	}
}

// WithDefaultTTL sets the lifetime used when Issue is called with a
// non-positive ttl.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(i *Issuer) {
		if ttl > 0 {
			i.defaultTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(i *Issuer) {
		if fn != nil {
			i.now = fn
		}
	}
}

// NewIssuer constructs an Issuer signing with the given secret.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token: signing secret is required")
	}
	iss := &Issuer{
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		defaultTTL: 30 * time.Minute,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(iss)
	}
	return iss, nil
}

// Issue signs a token for the principal. A non-positive ttl selects the
// configured default.
func (i *Issuer) Issue(principalName string, attrs Attributes, ttl time.Duration) (string, time.Time, error) {
	principalName = strings.TrimSpace(principalName)
	if principalName == "" {
		return "", time.Time{}, errors.New("token: principal name is required")
	}
	if ttl <= 0 {
		ttl = i.defaultTTL
	}

	now := i.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		Backend:     attrs.Backend,
		DisplayName: attrs.DisplayName,
		Email:       attrs.Email,
		Groups:      attrs.Groups,
		Admin:       attrs.Admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   principalName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}
	return signed, expiresAt, nil
}

// Decode verifies the signature and expiry and returns the claims. The
// three failure modes are distinguished so callers can log precisely,
// though all of them surface to end users as a generic unauthorized.
func (i *Issuer) Decode(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrMalformedToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidSignature
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, ErrInvalidSignature):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrMalformedToken
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformedToken
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrMalformedToken
	}
	if claims.ExpiresAt == nil || claims.IssuedAt == nil {
		return nil, ErrMalformedToken
	}
	if i.issuer != "" && claims.Issuer != i.issuer {
		return nil, ErrMalformedToken
	}
	return claims, nil
}
