// Package httpapi is the thin HTTP surface over the authorization core:
// the login endpoint, the bearer-token middleware and the operational
// endpoints. Entity CRUD lives elsewhere and couples to the core only
// through the permission cache invalidation hooks.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"omnicorp.dev/authcore/internal/access"
	"omnicorp.dev/authcore/internal/authn"
	"omnicorp.dev/authcore/internal/obs"
	"omnicorp.dev/authcore/internal/token"
)

// Pinger reports reachability of an external collaborator.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadyProbe checks the service's external collaborators. A nil member
// skips that check.
type ReadyProbe struct {
	DB    *sql.DB
	Cache Pinger
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Cache != nil {
		if err := rp.Cache.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	verifier   *authn.Verifier
	issuer     *token.Issuer
	gate       *access.Gate
	readyProbe ReadyProbe
	version    string
}

// New wires the HTTP layer to the core components.
func New(verifier *authn.Verifier, issuer *token.Issuer, gate *access.Gate, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		verifier:   verifier,
		issuer:     issuer,
		gate:       gate,
		readyProbe: rp,
		version:    version,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.Handle("/v1/auth/login", RateLimit(http.HandlerFunc(a.handleLogin), 10, 5))
	a.mux.HandleFunc("/v1/auth/me", a.handleMe)
	a.mux.HandleFunc("/v1/auth/check", a.handleCheck)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = RequestID(h)
	h = Logging(h)
	h = SecurityHeaders(h)
	h = MaxBodyBytes(h, 1<<20)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "authd",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
