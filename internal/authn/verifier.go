// Package authn dispatches credential verification between the built-in
// administrator account and the external directory backend, producing a
// uniform outcome either way. Verification never raises: every failure
// mode is encoded in the outcome, and the caller-visible reason never
// distinguishes bad credentials from directory outages.
package authn

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"omnicorp.dev/authcore/internal/access"
	"omnicorp.dev/authcore/internal/directory"
	"omnicorp.dev/authcore/internal/obs"
)

// Backends reported in Outcome.Backend.
const (
	BackendLocal     = "local"
	BackendDirectory = "directory"
)

// Fixed attributes for the built-in administrator identity.
const (
	DefaultAdminName = "administrator"
	adminDisplayName = "System Administrator"
	adminEmail       = "admin@omnicorp.com"
)

// reasonGeneric is the only reason ever surfaced to callers, preventing
// account enumeration and outage probing.
const reasonGeneric = "invalid credentials"

// Outcome is the ephemeral result of one verification attempt. It is
// never persisted.
type Outcome struct {
	Identifier    string
	Authenticated bool
	Backend       string
	DisplayName   string
	Email         string
	Groups        []string
	// Reason is a caller-safe failure description; the diagnostic
	// detail is logged, not returned.
	Reason string
}

// Directory is the slice of the directory client the verifier consumes.
type Directory interface {
	Authenticate(ctx context.Context, login, secret string) (*directory.Result, error)
}

// Verifier decides per request which credential backend applies and
// normalizes the result. It is stateless per call.
type Verifier struct {
	adminName string
	adminHash []byte
	dir       Directory
}

// NewVerifier constructs a Verifier. adminHash is the bcrypt hash of the
// reserved administrator's credential; an empty adminName selects the
// default reserved name.
func NewVerifier(adminName, adminHash string, dir Directory) (*Verifier, error) {
	adminName = strings.TrimSpace(adminName)
	if adminName == "" {
		adminName = DefaultAdminName
	}
	if strings.TrimSpace(adminHash) == "" {
		return nil, errors.New("authn: administrator credential hash is required")
	}
	if dir == nil {
		return nil, errors.New("authn: directory backend is required")
	}
	return &Verifier{adminName: adminName, adminHash: []byte(adminHash), dir: dir}, nil
}

// Verify authenticates the identifier with the matching backend. The
// reserved administrator name never triggers a directory call, whatever
// the secret.
func (v *Verifier) Verify(ctx context.Context, identifier, secret string) Outcome {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || secret == "" {
		return Outcome{Identifier: identifier, Reason: reasonGeneric}
	}

	if identifier == v.adminName {
		return v.verifyLocal(identifier, secret)
	}
	return v.verifyDirectory(ctx, identifier, secret)
}

func (v *Verifier) verifyLocal(identifier, secret string) Outcome {
	// bcrypt comparison is constant-time over the derived key.
	if err := bcrypt.CompareHashAndPassword(v.adminHash, []byte(secret)); err != nil {
		obs.RecordLogin(BackendLocal, false)
		obs.Warn("administrator authentication failed", map[string]any{"identifier": identifier})
		return Outcome{Identifier: identifier, Reason: reasonGeneric}
	}
	obs.RecordLogin(BackendLocal, true)
	return Outcome{
		Identifier:    identifier,
		Authenticated: true,
		Backend:       BackendLocal,
		DisplayName:   adminDisplayName,
		Email:         adminEmail,
		Groups:        []string{access.FullAccessGroup},
	}
}

func (v *Verifier) verifyDirectory(ctx context.Context, identifier, secret string) Outcome {
	result, err := v.dir.Authenticate(ctx, identifier, secret)
	if err != nil {
		obs.RecordLogin(BackendDirectory, false)
		if !errors.Is(err, directory.ErrInvalidCredentials) {
			obs.Error("directory authentication fault", map[string]any{
				"identifier": identifier,
				"error":      err.Error(),
			})
		}
		return Outcome{Identifier: identifier, Reason: reasonGeneric}
	}

	obs.RecordLogin(BackendDirectory, true)
	return Outcome{
		Identifier:    identifier,
		Authenticated: true,
		Backend:       BackendDirectory,
		DisplayName:   result.DisplayName,
		Email:         result.Email,
		Groups:        result.Groups,
	}
}
