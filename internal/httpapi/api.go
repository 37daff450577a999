package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"enlace.org/internal/auth"
	"enlace.org/internal/content"
	"enlace.org/internal/obs"
	"enlace.org/internal/ratelimit"
)

// ReadyProbe checks downstream dependencies for the readiness endpoint.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries HTTP-layer tunables.
type Options struct {
	Version      string
	RateLimit    int
	RateWindow   time.Duration
	MaxBodyBytes int64
	CORSOrigins  []string
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	content    content.Store
	limiter    ratelimit.Limiter
	readyProbe ReadyProbe
	opts       Options
}

func New(authSvc *auth.Service, contentStore content.Store, limiter ratelimit.Limiter, rp ReadyProbe, opts Options) *API {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 100
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = 15 * time.Minute
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	a := &API{
		mux:        http.NewServeMux(),
		auth:       authSvc,
		content:    contentStore,
		limiter:    limiter,
		readyProbe: rp,
		opts:       opts,
	}

	mux := a.mux

	// health / metrics
	mux.HandleFunc("GET /healthz", a.handleHealthz)
	mux.HandleFunc("GET /readyz", a.handleReady)
	mux.Handle("GET /metrics", obs.Handler())

	// auth surface
	mux.HandleFunc("POST /auth/register", a.handleRegister)
	mux.HandleFunc("POST /auth/login", a.handleLogin)
	mux.HandleFunc("POST /auth/refresh", a.handleRefresh)
	mux.HandleFunc("POST /auth/logout", a.handleLogout)
	mux.Handle("GET /auth/me", a.withAuth(http.HandlerFunc(a.handleMe)))

	// user administration, SUPERADMIN only
	admin := func(h http.HandlerFunc) http.Handler {
		return a.withAuth(RequireSuperadmin()(h))
	}
	mux.Handle("GET /auth/users", admin(a.handleListUsers))
	mux.Handle("POST /auth/users", admin(a.handleCreateUser))
	mux.Handle("GET /auth/users/{id}", admin(a.handleGetUser))
	mux.Handle("PUT /auth/users/{id}", admin(a.handleUpdateUser))
	mux.Handle("DELETE /auth/users/{id}", admin(a.handleDeleteUser))

	// news articles: municipalities publish, owners (or SUPERADMIN) delete
	mux.Handle("GET /articles", a.withOptionalAuth(http.HandlerFunc(a.handleListArticles)))
	mux.HandleFunc("GET /articles/{id}", a.handleGetArticle)
	mux.Handle("POST /articles",
		a.withAuth(RequireEntityType(auth.KindMunicipality)(http.HandlerFunc(a.handleCreateArticle))))
	mux.Handle("DELETE /articles/{id}",
		a.withAuth(RequireOwnership(a.articleOwner, "id")(http.HandlerFunc(a.handleDeleteArticle))))

	// job offers: companies publish; students apply
	mux.HandleFunc("GET /offers", a.handleListOffers)
	mux.HandleFunc("GET /offers/{id}", a.handleGetOffer)
	mux.Handle("POST /offers",
		a.withAuth(RequireEntityType(auth.KindCompany)(http.HandlerFunc(a.handleCreateOffer))))
	mux.Handle("DELETE /offers/{id}", a.withAuth(http.HandlerFunc(a.handleDeleteOffer)))
	mux.Handle("POST /offers/{id}/applications",
		a.withAuth(RequireStudent()(http.HandlerFunc(a.handleCreateApplication))))
	mux.Handle("GET /offers/{id}/applications", a.withAuth(http.HandlerFunc(a.handleListApplications)))

	// applications: owner-gated reads and withdrawals
	mux.Handle("GET /applications/{id}",
		a.withAuth(RequireOwnership(a.applicationOwner, "id")(http.HandlerFunc(a.handleGetApplication))))
	mux.Handle("DELETE /applications/{id}",
		a.withAuth(RequireOwnership(a.applicationOwner, "id")(http.HandlerFunc(a.handleDeleteApplication))))

	return a
}

// Handler returns the fully wrapped handler chain.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = RateLimit(a.limiter, a.opts.RateLimit, a.opts.RateWindow)(h)
	h = MaxBodyBytes(a.opts.MaxBodyBytes)(h)
	h = CORS(a.opts.CORSOrigins)(h)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "enlace-api",
		"version": a.opts.Version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
