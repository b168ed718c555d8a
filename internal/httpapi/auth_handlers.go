package httpapi

import (
	"net/http"
	"strings"
	"time"

	"omnicorp.dev/authcore/internal/access"
	"omnicorp.dev/authcore/internal/audit"
	"omnicorp.dev/authcore/internal/authn"
	"omnicorp.dev/authcore/internal/token"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"secret"`
}

type principalPayload struct {
	Name        string   `json:"name"`
	DisplayName string   `json:"display_name"`
	Email       string   `json:"email"`
	Groups      []string `json:"groups"`
	Backend     string   `json:"backend"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	Principal principalPayload `json:"principal"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" || req.Secret == "" {
		writeError(w, r, http.StatusBadRequest, "identifier and secret are required")
		return
	}

	outcome := a.verifier.Verify(r.Context(), req.Identifier, req.Secret)
	if !outcome.Authenticated {
		_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
			"identifier": req.Identifier,
		})
		// Same response for wrong secrets, unknown identities and
		// directory outages.
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	isAdmin := outcome.Backend == authn.BackendLocal
	for _, g := range outcome.Groups {
		if g == access.FullAccessGroup {
			isAdmin = true
		}
	}

	signed, expiresAt, err := a.issuer.Issue(outcome.Identifier, token.Attributes{
		Backend:     outcome.Backend,
		DisplayName: outcome.DisplayName,
		Email:       outcome.Email,
		Groups:      outcome.Groups,
		Admin:       isAdmin,
	}, 0)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login.succeeded", map[string]any{
		"identifier": outcome.Identifier,
		"backend":    outcome.Backend,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     signed,
		ExpiresAt: expiresAt,
		Principal: principalPayload{
			Name:        outcome.Identifier,
			DisplayName: outcome.DisplayName,
			Email:       outcome.Email,
			Groups:      outcome.Groups,
			Backend:     outcome.Backend,
		},
	})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"principal": principalPayload{
			Name:        claims.Subject,
			DisplayName: claims.DisplayName,
			Email:       claims.Email,
			Groups:      claims.Groups,
			Backend:     claims.Backend,
		},
		"admin":      claims.Admin,
		"expires_at": claims.ExpiresAt.Time,
	})
}
