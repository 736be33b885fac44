package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const sessionContextKey contextKey = "session"

const (
	sessionCookieName = "ysa_session"
	tokenIssuer       = "ysa"

	// DefaultSessionTTL is how long a sign-in lasts without activity.
	DefaultSessionTTL = 24 * time.Hour
)

// Auth state change kinds delivered to OnAuthStateChange subscribers.
const (
	AuthSignedIn       = "signed_in"
	AuthSignedOut      = "signed_out"
	AuthTokenRefreshed = "token_refreshed"
)

// Session is an authenticated sign-in. ID is stable across token refreshes.
type Session struct {
	ID        string
	AccountID string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// AuthEvent is delivered to subscribers when a session changes.
type AuthEvent struct {
	Kind    string
	Session Session
}

type claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies signed session tokens. Tokens are self-contained; the only
// server-side state is the set of signed-out session ids and the change subscribers.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	secure bool // Secure attribute on session cookies
	now    func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // session id -> token expiry
	subs    map[string]map[uint64]func(AuthEvent)
	nextSub uint64
}

// NewSessions creates a session issuer. secureCookies marks its cookies Secure (production).
// PRE: len(secret) >= 32
// POST: Returns an issuer with no sessions revoked
func NewSessions(secret []byte, ttl time.Duration, secureCookies bool) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		secret:  secret,
		ttl:     ttl,
		secure:  secureCookies,
		now:     time.Now,
		revoked: make(map[string]time.Time),
		subs:    make(map[string]map[uint64]func(AuthEvent)),
	}
}

// Create signs a token for a new session and notifies nobody: a new session has no
// subscribers yet.
// PRE: accountID is non-empty
// POST: Returns the token and the session it carries
func (s *Sessions) Create(accountID, email string) (string, Session, error) {
	sess := Session{ID: uuid.NewString(), AccountID: accountID, Email: email}
	token, sess, err := s.sign(sess)
	if err != nil {
		return "", Session{}, err
	}
	slog.Info("auth_event", "event", AuthSignedIn, "account_id", accountID, "session_id", sess.ID)
	return token, sess, nil
}

func (s *Sessions) sign(sess Session) (string, Session, error) {
	now := s.now()
	sess.IssuedAt = now.Truncate(time.Second)
	sess.ExpiresAt = sess.IssuedAt.Add(s.ttl)
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: sess.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        sess.ID,
			Subject:   sess.AccountID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(sess.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
		},
	})
	signed, err := tok.SignedString(s.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, sess, nil
}

// Get verifies a token.
// POST: Returns the session if the signature is valid, it has not expired and it was not
// signed out
func (s *Sessions) Get(token string) (Session, bool) {
	if token == "" {
		return Session{}, false
	}
	var c claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid || c.ID == "" || c.Subject == "" {
		return Session{}, false
	}

	s.mu.Lock()
	_, gone := s.revoked[c.ID]
	s.mu.Unlock()
	if gone {
		return Session{}, false
	}

	sess := Session{ID: c.ID, AccountID: c.Subject, Email: c.Email}
	if c.IssuedAt != nil {
		sess.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		sess.ExpiresAt = c.ExpiresAt.Time
	}
	return sess, true
}

// Refresh reissues a token for the same session once half its lifetime has passed.
// POST: Returns the new token and its session; ok is false when the token is invalid or
// still fresh
func (s *Sessions) Refresh(token string) (string, Session, bool) {
	sess, ok := s.Get(token)
	if !ok || s.now().Before(sess.IssuedAt.Add(s.ttl/2)) {
		return "", Session{}, false
	}
	fresh, sess, err := s.sign(sess)
	if err != nil {
		slog.Warn("auth_event", "event", "refresh_failed", "session_id", sess.ID, "error", err)
		return "", Session{}, false
	}
	s.notify(AuthEvent{Kind: AuthTokenRefreshed, Session: sess})
	return fresh, sess, true
}

// Delete signs the token's session out everywhere it is used.
// POST: Get fails for every token of the session; subscribers receive AuthSignedOut
func (s *Sessions) Delete(token string) {
	sess, ok := s.Get(token)
	if !ok {
		return
	}
	now := s.now()
	s.mu.Lock()
	for id, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, id)
		}
	}
	s.revoked[sess.ID] = sess.ExpiresAt
	s.mu.Unlock()

	slog.Info("auth_event", "event", AuthSignedOut, "account_id", sess.AccountID, "session_id", sess.ID)
	s.notify(AuthEvent{Kind: AuthSignedOut, Session: sess})
}

// OnAuthStateChange subscribes to changes of one session.
// POST: Returns a function that removes the subscription
func (s *Sessions) OnAuthStateChange(sessionID string, fn func(AuthEvent)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSub++
	id := s.nextSub
	if s.subs[sessionID] == nil {
		s.subs[sessionID] = make(map[uint64]func(AuthEvent))
	}
	s.subs[sessionID][id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs[sessionID], id)
		if len(s.subs[sessionID]) == 0 {
			delete(s.subs, sessionID)
		}
	}
}

// notify calls subscribers outside the lock so they may unsubscribe or query the issuer.
func (s *Sessions) notify(ev AuthEvent) {
	s.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(s.subs[ev.Session.ID]))
	for _, fn := range s.subs[ev.Session.ID] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Auth returns middleware that extracts the session from the cookie and sets it in context.
// Tokens past half their lifetime are reissued. It does NOT block unauthenticated requests.
func Auth(sessions *Sessions) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err == nil && cookie.Value != "" {
				if sess, ok := sessions.Get(cookie.Value); ok {
					if fresh, freshSess, ok := sessions.Refresh(cookie.Value); ok {
						sessions.SetCookie(w, fresh, freshSess)
						sess = freshSess
					}
					r = r.WithContext(ContextWithSession(r.Context(), sess))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth returns middleware that blocks unauthenticated requests.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetSessionFromContext(r.Context()); !ok {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetSessionFromContext extracts the session from the request context.
func GetSessionFromContext(ctx context.Context) (Session, bool) {
	session, ok := ctx.Value(sessionContextKey).(Session)
	return session, ok
}

// ContextWithSession returns a context with the given session set.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, sess)
}

// SessionToken returns the raw session token of the request, if any.
func SessionToken(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return "", err
	}
	if cookie.Value == "" {
		return "", errors.New("empty session cookie")
	}
	return cookie.Value, nil
}

// SetCookie sets the session cookie on the response. The cookie lives as long as the token.
func (s *Sessions) SetCookie(w http.ResponseWriter, token string, sess Session) {
	maxAge := int(s.ttl / time.Second)
	if !sess.ExpiresAt.IsZero() {
		maxAge = int(math.Ceil(sess.ExpiresAt.Sub(s.now()).Seconds()))
	}
	if maxAge <= 0 {
		maxAge = -1
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   maxAge,
	})
}

// ClearCookie removes the session cookie.
func (s *Sessions) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
		MaxAge:   -1,
	})
}
