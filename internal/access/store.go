package access

import "context"

// Store is the read-only contract the core consumes from the credential
// store. Mutating collaborators own entity lifecycle and must invoke the
// matching Cache.Drop* before acknowledging any change that affects
// group membership or permission assignment.
type Store interface {
	// FindPrincipalByName returns the principal with the given unique
	// name, with Groups populated, or ErrNotFound.
	FindPrincipalByName(ctx context.Context, name string) (*Principal, error)

	// FindPrincipalByID returns the principal with the given id, with
	// Groups populated, or ErrNotFound.
	FindPrincipalByID(ctx context.Context, id string) (*Principal, error)

	// ListGrantGroups returns every grant group the principal belongs
	// to, across both grouping mechanisms.
	ListGrantGroups(ctx context.Context, principalID string) ([]GrantGroup, error)

	// ListPermissionNames returns the permission names owned by a grant
	// group.
	ListPermissionNames(ctx context.Context, groupID string) ([]string, error)
}
