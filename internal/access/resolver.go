package access

import (
	"context"
	"errors"
	"fmt"
)

// Resolver computes the effective permission set of a principal by
// expanding every grant group it belongs to, memoizing through the
// two-level cache.
type Resolver struct {
	store Store
	cache *Cache
}

// NewResolver constructs a Resolver. The cache may be nil; resolution
// then always reads through to the store.
func NewResolver(store Store, cache *Cache) (*Resolver, error) {
	if store == nil {
		return nil, errors.New("access: resolver requires a store")
	}
	return &Resolver{store: store, cache: cache}, nil
}

// Resolve returns the union of permission names reachable through every
// grant group the principal belongs to. Members of the full-access group
// short-circuit to the universal-access marker without any cache or
// store traffic. The result is a pure set union, independent of group
// enumeration order.
//
// A store read failure aborts resolution; group entries already cached
// before the failure remain in place and are not rolled back.
func (r *Resolver) Resolve(ctx context.Context, principal *Principal) (PermissionSet, error) {
	if principal == nil || principal.ID == "" {
		return nil, fmt.Errorf("%w: principal is required", ErrInvalidInput)
	}

	groups := principal.Groups
	if groups == nil {
		var err error
		groups, err = r.store.ListGrantGroups(ctx, principal.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: list grant groups for %s: %v", ErrStoreUnavailable, principal.ID, err)
		}
	}

	for _, g := range groups {
		if g.Name == FullAccessGroup {
			return PermissionSet{PermAllAccess: struct{}{}}, nil
		}
	}

	if names, ok := r.cache.Principal(ctx, principal.ID); ok {
		return NewPermissionSet(names), nil
	}

	result := make(PermissionSet)
	for _, g := range groups {
		names, ok := r.cache.Group(ctx, g.ID)
		if !ok {
			var err error
			names, err = r.store.ListPermissionNames(ctx, g.ID)
			if err != nil {
				return nil, fmt.Errorf("%w: list permissions for group %s: %v", ErrStoreUnavailable, g.ID, err)
			}
			r.cache.PutGroup(ctx, g.ID, names)
		}
		for _, n := range names {
			if n == "" {
				continue
			}
			result[n] = struct{}{}
		}
	}

	r.cache.PutPrincipal(ctx, principal.ID, result.Names())
	return result, nil
}
