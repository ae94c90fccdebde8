package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lyric-s/together-app-backend/internal/auth"
	"github.com/lyric-s/together-app-backend/internal/obs"
)

// ReadyProbe is the readiness check exposed on /readyz.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the HTTP layer configuration.
type Options struct {
	Auth       *auth.Service
	Probe      ReadyProbe
	Version    string
	RatePerSec int
	RateBurst  int
}

// API is the HTTP layer.
type API struct {
	router  chi.Router
	auth    *auth.Service
	probe   ReadyProbe
	version string
}

// New wires routes and middleware for the service.
func New(opts Options) *API {
	a := &API{
		router:  chi.NewRouter(),
		auth:    opts.Auth,
		probe:   opts.Probe,
		version: opts.Version,
	}

	perSecond, burst := opts.RatePerSec, opts.RateBurst
	if perSecond <= 0 {
		perSecond = 5
	}
	if burst <= 0 {
		burst = 10
	}

	r := a.router
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(LoggingJSON)
	r.Use(MaxBodyBytes(1 << 20))

	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	// Credential endpoints are brute-force targets and carry their own
	// per-IP throttle.
	r.Group(func(r chi.Router) {
		r.Use(RateLimit(perSecond, burst))
		r.Post("/auth/token", a.handleLogin)
		r.Post("/auth/refresh", a.handleRefresh)
		r.Post("/internal/admin/login", a.handleAdminLogin)
	})

	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth(""))
		r.Get("/auth/me", a.handleMe)
		r.Post("/auth/logout", a.handleLogout)
	})

	// Admin area: requires the admin mode claim, not just a valid token.
	r.Group(func(r chi.Router) {
		r.Use(a.requireAuth(auth.KindAdmin))
		r.Get("/internal/admin/me", a.handleMe)
	})

	return a
}

// Handler returns the composed http.Handler, instrumented with metrics.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "together-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.probe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "together-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, map[string]any{
		"error":      msg,
		"request_id": w.Header().Get(requestIDHeader),
	})
}

func decodeJSON(r *http.Request, v any) error {
	defer func() { _, _ = io.Copy(io.Discard, r.Body) }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
