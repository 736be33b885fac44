package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ysa/internal/adapters/email"
	"ysa/internal/adapters/http/middleware"
	"ysa/internal/adapters/http/perf"
	accountStore "ysa/internal/adapters/storage/account"
	orgMemberStore "ysa/internal/adapters/storage/orgmember"
	requirementStore "ysa/internal/adapters/storage/requirement"
	rosterStore "ysa/internal/adapters/storage/roster"
	"ysa/internal/application/app"
	"ysa/internal/domain/scope"
)

// Config holds the transport settings.
type Config struct {
	Scope              scope.Scope
	SessionSecret      []byte // HS256 key for session tokens, at least 32 bytes
	SessionTTL         time.Duration
	CSRFKey            []byte // 32 bytes
	SecureCookies      bool
	TrustedOrigins     []string
	RateLimitPerSecond int
	SlowRequestMs      int
	BaseURL            string // absolute URL used in emails
}

// Stores holds all storage dependencies.
type Stores struct {
	Accounts     accountStore.Store
	Roster       rosterStore.Store
	Requirements requirementStore.Store
	Members      orgMemberStore.Store
}

// Deps holds the collaborators the handlers use.
type Deps struct {
	Stores    Stores
	Mailer    email.Sender            // optional: nil disables notifications
	Collector *perf.Collector         // optional: nil disables the perf panel
	Health    func(context.Context) error // optional: nil reports healthy
	Now       func() time.Time
}

// Server owns the handlers, live sessions and their shared state.
type Server struct {
	cfg        Config
	deps       Deps
	controller *app.Controller
	views      *Views
	sessions   *middleware.Sessions
	hub        *Hub
	limiter    *middleware.RateLimiter
	upgrader   websocket.Upgrader
	handler    http.Handler
}

// NewServer wires HTTP handlers for the app.
// PRE: cfg.Scope is complete; cfg.CSRFKey is 32 bytes; cfg.SessionSecret is at least 32 bytes
// POST: Handler() serves pages, forms, assets and the live channel
func NewServer(cfg Config, deps Deps) (*Server, error) {
	if err := cfg.Scope.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.CSRFKey) != 32 {
		return nil, errors.New("csrf key must be 32 bytes")
	}
	if len(cfg.SessionSecret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if cfg.RateLimitPerSecond <= 0 {
		cfg.RateLimitPerSecond = 10
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	views, err := NewViews()
	if err != nil {
		return nil, err
	}

	s := deps.Stores
	srv := &Server{
		cfg:  cfg,
		deps: deps,
		controller: app.NewController(cfg.Scope, app.Stores{
			Roster:       s.Roster,
			Athletes:     s.Roster,
			Requirements: s.Requirements,
			Members:      s.Members,
			Requests:     s.Members,
		}, app.NewFilterPrefs()),
		views:    views,
		sessions: middleware.NewSessions(cfg.SessionSecret, cfg.SessionTTL, cfg.SecureCookies),
		hub:      NewHub(),
		limiter:  middleware.NewRateLimiter(cfg.RateLimitPerSecond, time.Second),
		// A nil CheckOrigin rejects cross-origin upgrades.
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096},
	}

	mux := http.NewServeMux()
	srv.registerRoutes(mux)

	// Applied inner to outer: Timing -> RateLimit -> Auth -> CSRF -> SecurityHeaders -> mux
	srv.handler = middleware.Chain(mux,
		middleware.SecurityHeaders,
		middleware.CSRF(cfg.CSRFKey, cfg.SecureCookies, cfg.TrustedOrigins),
		middleware.Auth(srv.sessions),
		middleware.RateLimit(srv.limiter),
		middleware.Timing(deps.Collector, cfg.SlowRequestMs),
	)
	return srv, nil
}

// Handler returns the root handler.
func (srv *Server) Handler() http.Handler {
	return srv.handler
}

// Close stops background work. Open live connections end with the process.
func (srv *Server) Close() {
	srv.limiter.Stop()
}

// registerRoutes maps every path to its handler.
func (srv *Server) registerRoutes(mux *http.ServeMux) {
	mux.Handle("GET /static/", staticHandler())
	mux.HandleFunc("GET /healthz", srv.handleHealth)

	mux.HandleFunc("GET /{$}", srv.handlePage)
	mux.HandleFunc("GET /dashboard", srv.handlePage)
	mux.HandleFunc("GET /admin", srv.handlePage)
	mux.HandleFunc("GET /athlete/{id}", srv.handlePage)

	mux.HandleFunc("GET /login", srv.handleLoginForm)
	mux.HandleFunc("POST /login", srv.handleLogin)
	mux.HandleFunc("GET /signup", srv.handleSignupForm)
	mux.HandleFunc("POST /signup", srv.handleSignup)
	mux.HandleFunc("POST /logout", srv.handleLogout)

	authed := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }
	mux.Handle("POST /access-request", authed(srv.handleRequestAccess))
	mux.Handle("POST /athlete/{id}/requirements/{rid}", authed(srv.handleSaveStatus))
	mux.Handle("POST /admin/requests/{id}/approve", authed(srv.handleApprove))
	mux.Handle("POST /admin/requests/{id}/deny", authed(srv.handleDeny))
	mux.Handle("POST /admin/members/{user}/role", authed(srv.handleChangeRole))
	mux.Handle("POST /admin/members/{user}/remove", authed(srv.handleRemoveMember))

	mux.HandleFunc("GET /live", srv.handleLive)
}

// recordRender reports one page render to the perf collector.
func (srv *Server) recordRender(kind string, d time.Duration, err error) {
	ms := float64(d.Microseconds()) / 1000.0
	if err != nil {
		slog.Warn("render_failed", "kind", kind, "duration_ms", ms, "error", err)
	}
	if srv.deps.Collector == nil {
		return
	}
	srv.deps.Collector.Record(perf.Entry{
		Kind:       perf.KindRender,
		Path:       kind,
		DurationMs: ms,
		Timestamp:  srv.deps.Now().Add(-d),
	})
}
