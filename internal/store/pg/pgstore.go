// Package pg implements the read-only credential store contract over
// PostgreSQL. The profile- and role-based grouping tables both feed the
// same resolution algorithm; a grant-group id is namespaced with its
// origin table ("profile:<id>" or "role:<id>") so the two mechanisms
// stay distinguishable in cache keys and invalidation calls.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"omnicorp.dev/authcore/internal/access"
)

const (
	kindProfile = "profile"
	kindRole    = "role"
)

var _ access.Store = (*Store)(nil)

// Store reads principals, grant groups and permission assignments.
type Store struct {
	db *sql.DB
}

// New wraps an open database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) FindPrincipalByName(ctx context.Context, name string) (*access.Principal, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: principal name is required", access.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx,
		`select id, username, display_name, email, active from users where username=$1`, name)
	return s.scanPrincipal(ctx, row)
}

func (s *Store) FindPrincipalByID(ctx context.Context, id string) (*access.Principal, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: principal id is required", access.ErrInvalidInput)
	}
	row := s.db.QueryRowContext(ctx,
		`select id, username, display_name, email, active from users where id=$1`, id)
	return s.scanPrincipal(ctx, row)
}

func (s *Store) scanPrincipal(ctx context.Context, row *sql.Row) (*access.Principal, error) {
	var p access.Principal
	if err := row.Scan(&p.ID, &p.Name, &p.DisplayName, &p.Email, &p.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, access.ErrNotFound
		}
		return nil, fmt.Errorf("scan principal: %w", err)
	}
	groups, err := s.ListGrantGroups(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Groups = groups
	return &p, nil
}

func (s *Store) ListGrantGroups(ctx context.Context, principalID string) ([]access.GrantGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		select 'profile:' || p.id as id, p.name
		  from profiles p
		  join user_profiles up on up.profile_id = p.id
		 where up.user_id = $1
		union all
		select 'role:' || r.id as id, r.name
		  from roles r
		  join user_roles ur on ur.role_id = r.id
		 where ur.user_id = $1
		 order by 1`, principalID)
	if err != nil {
		return nil, fmt.Errorf("list grant groups: %w", err)
	}
	defer rows.Close()

	groups := make([]access.GrantGroup, 0)
	for rows.Next() {
		var g access.GrantGroup
		if err := rows.Scan(&g.ID, &g.Name); err != nil {
			return nil, fmt.Errorf("scan grant group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

func (s *Store) ListPermissionNames(ctx context.Context, groupID string) ([]string, error) {
	kind, id, err := splitGroupID(groupID)
	if err != nil {
		return nil, err
	}

	var query string
	switch kind {
	case kindProfile:
		query = `
			select perm.name
			  from permissions perm
			  join profile_permissions pp on pp.permission_id = perm.id
			 where pp.profile_id = $1
			 order by perm.name`
	case kindRole:
		query = `
			select perm.name
			  from permissions perm
			  join role_permissions rp on rp.permission_id = perm.id
			 where rp.role_id = $1
			 order by perm.name`
	}

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("list permissions for %s: %w", groupID, err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan permission name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func splitGroupID(groupID string) (kind, id string, err error) {
	kind, id, ok := strings.Cut(groupID, ":")
	if !ok || id == "" || (kind != kindProfile && kind != kindRole) {
		return "", "", fmt.Errorf("%w: malformed grant group id %q", access.ErrInvalidInput, groupID)
	}
	return kind, id, nil
}
