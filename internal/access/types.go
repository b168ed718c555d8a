package access

import "sort"

// Principal is an identity known to the credential store. The core only
// reads principals; creation and mutation belong to the CRUD layer.
type Principal struct {
	ID          string
	Name        string
	DisplayName string
	Email       string
	Active      bool

	// Groups holds the grant groups the principal belongs to. The store
	// populates it when the principal is loaded; a nil slice makes the
	// resolver fall back to ListGrantGroups.
	Groups []GrantGroup
}

// GrantGroup is a named set of permissions assignable to principals. It
// unifies the profile- and role-based grouping mechanisms: both feed the
// same resolution algorithm and are distinguished only by their ID prefix.
type GrantGroup struct {
	ID   string
	Name string
}

// PermissionSet is the resolved set of permission names for a principal.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from a list of permission names.
func NewPermissionSet(names []string) PermissionSet {
	set := make(PermissionSet, len(names))
	for _, n := range names {
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return set
}

// Has reports whether the set contains the permission name.
func (s PermissionSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Names returns the sorted permission names.
func (s PermissionSet) Names() []string {
	out := make([]string, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
