package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/csrf"
	"github.com/gorilla/websocket"

	"ysa/internal/adapters/http/middleware"
	"ysa/internal/application/app"
	"ysa/internal/application/render"
)

// Live connection limits.
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 2048
	sendBuffer     = 16
)

// Change kinds published after a successful mutation.
const (
	ChangeStatus     = "status"
	ChangeMembership = "membership"
	ChangeRequest    = "access_request"
)

// Change tells open views that stored data they may show has changed.
type Change struct {
	Kind      string
	AthleteID string // set for status changes
}

// Hub fans data changes out to every live session.
type Hub struct {
	mu   sync.Mutex
	subs map[uint64]func(Change)
	next uint64
}

// NewHub creates a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]func(Change))}
}

// Subscribe registers fn for every later Publish.
// POST: Returns a function that removes the subscription
func (h *Hub) Subscribe(fn func(Change)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	id := h.next
	h.subs[id] = fn
	return func() {
		h.mu.Lock()
		delete(h.subs, id)
		h.mu.Unlock()
	}
}

// Publish calls every subscriber outside the lock.
func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	fns := make([]func(Change), 0, len(h.subs))
	for _, fn := range h.subs {
		fns = append(fns, fn)
	}
	h.mu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// liveInbound is a message from the browser.
type liveInbound struct {
	Type    string `json:"type"` // navigate | filter
	Route   string `json:"route,omitempty"`
	Athlete string `json:"athlete,omitempty"`
	Filter  string `json:"filter,omitempty"`
}

// liveOutbound is a message to the browser.
type liveOutbound struct {
	Type     string `json:"type"` // render | reload
	Route    string `json:"route,omitempty"`
	HTML     string `json:"html,omitempty"`
	Location string `json:"location,omitempty"`
}

// liveSession is one browser tab. Every render rebuilds the whole page from its current
// viewer and route; renders are serialized and coalesced by the queue.
type liveSession struct {
	srv       *Server
	conn      *websocket.Conn
	send      chan []byte
	csrfToken string
	queue     *render.Queue

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	viewer    app.Viewer
	route     string
	expiresAt time.Time   // token expiry; zero means none
	expiry    *time.Timer // requests a render at expiresAt
}

// handleLive upgrades a signed-in request to a live session.
func (srv *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		http.Error(w, "sign in to continue", http.StatusUnauthorized)
		return
	}
	token := csrf.Token(r)

	conn, err := srv.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		slog.Warn("live_upgrade_failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ls := &liveSession{
		srv:       srv,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		csrfToken: token,
		ctx:       ctx,
		cancel:    cancel,
		viewer:    viewerFromSession(sess),
		route:     r.URL.Query().Get("route"),
	}
	ls.queue = render.NewQueue(ls.render, srv.recordRender)
	ls.setExpiry(sess.ExpiresAt)

	unsubAuth := srv.sessions.OnAuthStateChange(sess.ID, ls.onAuthStateChange)
	unsubData := srv.hub.Subscribe(func(Change) { ls.request() })
	slog.Debug("live_connected", "session_id", sess.ID, "remote_addr", r.RemoteAddr)

	go ls.writePump()
	go func() {
		ls.readPump()
		unsubAuth()
		unsubData()
		ls.setExpiry(time.Time{})
		cancel()
		slog.Debug("live_disconnected", "session_id", sess.ID)
	}()
}

// onAuthStateChange re-evaluates the page for any change of the session. A sign-out
// clears the viewer so the next render sends the tab to the login view; a refresh moves
// the expiry to the new token's.
func (ls *liveSession) onAuthStateChange(ev middleware.AuthEvent) {
	switch ev.Kind {
	case middleware.AuthSignedOut:
		ls.mu.Lock()
		ls.viewer = app.Viewer{}
		ls.mu.Unlock()
	case middleware.AuthTokenRefreshed:
		ls.setExpiry(ev.Session.ExpiresAt)
	}
	ls.request()
}

// setExpiry replaces the expiry timer. A zero time only stops the current one.
// POST: a render is requested once at (not before) the expiry
func (ls *liveSession) setExpiry(at time.Time) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.expiry != nil {
		ls.expiry.Stop()
		ls.expiry = nil
	}
	ls.expiresAt = at
	if at.IsZero() {
		return
	}
	ls.expiry = time.AfterFunc(at.Sub(ls.srv.deps.Now()), ls.request)
}

// expired reports whether the session token has run out, which counts as a sign-out.
// PRE: ls.mu is held
func (ls *liveSession) expired() bool {
	return !ls.expiresAt.IsZero() && !ls.srv.deps.Now().Before(ls.expiresAt)
}

// request asks for a render without blocking the caller.
func (ls *liveSession) request() {
	go func() {
		if err := ls.queue.Request(ls.ctx); err != nil && ls.ctx.Err() == nil {
			slog.Warn("live_render_failed", "error", err)
		}
	}()
}

// render builds the current page and queues it for the browser.
// POST: Returns the page kind for timing; never sends a partially rendered fragment
func (ls *liveSession) render(ctx context.Context) (string, error) {
	ls.mu.Lock()
	if ls.expired() {
		ls.viewer = app.Viewer{}
	}
	v, token := ls.viewer, ls.route
	ls.mu.Unlock()

	if !v.SignedIn() {
		return string(app.KindLogin), ls.push(ctx, liveOutbound{Type: "reload", Location: "/login"})
	}

	page := ls.srv.controller.Build(ctx, v, token)
	data := ls.srv.dataFor(page, ls.csrfToken)
	data.Live = true
	html, err := ls.srv.views.Fragment(data)
	if err != nil {
		slog.Error("render_failed", "kind", page.Kind, "error", err)
		page = app.Page{Kind: app.KindError, Route: page.Route, Viewer: v, Message: err.Error()}
		if html, err = ls.srv.views.Fragment(viewData{Page: page, CSRFToken: ls.csrfToken, Live: true}); err != nil {
			return string(app.KindError), err
		}
	}
	return string(page.Kind), ls.push(ctx, liveOutbound{
		Type:  "render",
		Route: page.Route.Token(),
		HTML:  string(html),
	})
}

// push hands a message to the write pump, waiting while the buffer is full.
func (ls *liveSession) push(ctx context.Context, msg liveOutbound) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	select {
	case ls.send <- b:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handle applies one inbound message and schedules a render.
func (ls *liveSession) handle(msg liveInbound) {
	switch msg.Type {
	case "navigate":
		ls.mu.Lock()
		ls.route = msg.Route
		ls.mu.Unlock()
	case "filter":
		ls.mu.Lock()
		sid := ls.viewer.SessionID
		ls.mu.Unlock()
		if sid == "" || !ls.srv.controller.Filters().Set(sid, msg.Athlete, msg.Filter) {
			return
		}
	default:
		slog.Debug("live_message_ignored", "type", msg.Type)
		return
	}
	ls.request()
}

// readPump handles inbound messages until the connection fails.
func (ls *liveSession) readPump() {
	defer ls.conn.Close()

	ls.conn.SetReadLimit(maxMessageSize)
	if err := ls.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	ls.conn.SetPongHandler(func(string) error {
		return ls.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := ls.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("live_read_failed", "remote_addr", ls.conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var msg liveInbound
		if err := json.Unmarshal(message, &msg); err != nil {
			slog.Warn("live_invalid_message", "remote_addr", ls.conn.RemoteAddr().String(), "error", err)
			continue
		}
		ls.handle(msg)
	}
}

// writePump sends queued messages and keeps the connection alive with pings.
func (ls *liveSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ls.conn.Close()
	}()

	for {
		select {
		case message := <-ls.send:
			if err := ls.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := ls.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Warn("live_write_failed", "remote_addr", ls.conn.RemoteAddr().String(), "error", err)
				return
			}
		case <-ticker.C:
			if err := ls.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := ls.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-ls.ctx.Done():
			_ = ls.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
