package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"omnicorp.dev/authcore/internal/access"
	"omnicorp.dev/authcore/internal/audit"
	"omnicorp.dev/authcore/internal/token"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/metrics",
	"/healthz",
	"/readyz",
	"/",
}

type claimsContextKey struct{}

func contextWithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

func claimsFromContext(ctx context.Context) (*token.Claims, bool) {
	v, ok := ctx.Value(claimsContextKey{}).(*token.Claims)
	return v, ok && v != nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	if !strings.HasPrefix(header, bearer) {
		return "", errors.New("authorization header is not a bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearer))
	if raw == "" {
		return "", errors.New("empty bearer token")
	}
	return raw, nil
}

// withAuth decodes the bearer token on protected paths and attaches the
// raw token plus its claims to the request context. Every decode failure
// surfaces as the same unauthorized response.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.issuer.Decode(raw)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := access.ContextWithToken(r.Context(), raw)
		ctx = contextWithClaims(ctx, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission guards a handler behind the authorization gate. It
// is the hook the CRUD layer wraps its mutating routes with.
func (a *API) RequirePermission(permission string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := access.TokenFromContext(r.Context())
		if !ok {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}
		principal, err := a.gate.Authorize(r.Context(), raw, permission)
		if err != nil {
			a.writeGateError(w, r, permission, err)
			return
		}
		next(w, r.WithContext(access.ContextWithPrincipal(r.Context(), principal)))
	}
}

func (a *API) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req struct {
		Permission string `json:"permission"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Permission = strings.TrimSpace(req.Permission)
	if req.Permission == "" {
		writeError(w, r, http.StatusBadRequest, "permission is required")
		return
	}

	raw, ok := access.TokenFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	principal, err := a.gate.Authorize(r.Context(), raw, req.Permission)
	if err != nil {
		a.writeGateError(w, r, req.Permission, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"allowed":    true,
		"principal":  principal.Name,
		"permission": req.Permission,
	})
}

func (a *API) writeGateError(w http.ResponseWriter, r *http.Request, permission string, err error) {
	switch {
	case errors.Is(err, access.ErrForbidden):
		_ = audit.LogEvent(r.Context(), "authz.denied", map[string]any{"permission": permission})
		writeError(w, r, http.StatusForbidden, "permission denied: "+permission)
	case errors.Is(err, access.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, "invalid token")
	default:
		writeError(w, r, http.StatusInternalServerError, "authorization error")
	}
}
