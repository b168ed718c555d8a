package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"omnicorp.dev/authcore/internal/obs"
	"omnicorp.dev/authcore/internal/token"
)

// Gate is the single authorization entry point: it verifies a session
// token, resolves the principal's permission set and answers allow/deny.
type Gate struct {
	issuer   *token.Issuer
	store    Store
	resolver *Resolver
}

// NewGate constructs a Gate from its collaborators.
func NewGate(issuer *token.Issuer, store Store, resolver *Resolver) (*Gate, error) {
	if issuer == nil || store == nil || resolver == nil {
		return nil, errors.New("access: gate requires issuer, store and resolver")
	}
	return &Gate{issuer: issuer, store: store, resolver: resolver}, nil
}

// Authorize verifies the raw bearer token and checks the required
// permission against the principal's resolved set. Decode failures and
// unknown or inactive principals yield ErrUnauthorized; a valid identity
// lacking the permission yields ErrForbidden carrying the permission
// name.
func (g *Gate) Authorize(ctx context.Context, rawToken, requiredPermission string) (*Principal, error) {
	requiredPermission = strings.TrimSpace(requiredPermission)
	if requiredPermission == "" {
		return nil, fmt.Errorf("%w: required permission is empty", ErrInvalidInput)
	}

	claims, err := g.issuer.Decode(rawToken)
	if err != nil {
		obs.RecordAuthzDecision("unauthorized")
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	principal, err := g.store.FindPrincipalByName(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.RecordAuthzDecision("unauthorized")
			return nil, fmt.Errorf("%w: unknown principal", ErrUnauthorized)
		}
		return nil, fmt.Errorf("%w: find principal: %v", ErrStoreUnavailable, err)
	}
	if !principal.Active {
		obs.RecordAuthzDecision("unauthorized")
		return nil, fmt.Errorf("%w: principal disabled", ErrUnauthorized)
	}

	perms, err := g.resolver.Resolve(ctx, principal)
	if err != nil {
		return nil, err
	}

	if perms.Has(PermAllAccess) || perms.Has(requiredPermission) {
		obs.RecordAuthzDecision("allow")
		return principal, nil
	}

	obs.RecordAuthzDecision("deny")
	return nil, fmt.Errorf("%w: missing permission %s", ErrForbidden, requiredPermission)
}
