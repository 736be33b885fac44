package web

import (
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (b *browser) dialLive() *websocket.Conn {
	b.t.Helper()
	dialer := websocket.Dialer{Jar: b.jar, HandshakeTimeout: 5 * time.Second}
	conn, resp, err := dialer.Dial("ws"+strings.TrimPrefix(b.env.ts.URL, "http")+"/live", nil)
	require.NoError(b.t, err)
	resp.Body.Close()
	b.t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads live messages until match accepts one or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(liveOutbound) bool) liveOutbound {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		require.NoError(t, conn.SetReadDeadline(deadline))
		var msg liveOutbound
		require.NoError(t, conn.ReadJSON(&msg), "no matching live message before the deadline")
		if match(msg) {
			return msg
		}
	}
}

func TestLive_RejectsSignedOutVisitors(t *testing.T) {
	env := newTestEnv(t)
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	_, resp, err := dialer.Dial("ws"+strings.TrimPrefix(env.ts.URL, "http")+"/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLive_NavigateRendersTheRoute(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.login(presidentEmail, testPassword)
	conn := b.dialLive()

	require.NoError(t, conn.WriteJSON(liveInbound{Type: "navigate", Route: "athlete/demo-ath-03"}))
	msg := readUntil(t, conn, func(m liveOutbound) bool {
		return m.Type == "render" && m.Route == "athlete/demo-ath-03"
	})
	assert.Contains(t, msg.HTML, "Chen")
	assert.Contains(t, msg.HTML, `name="gorilla.csrf.Token"`, "live fragments keep working forms")

	require.NoError(t, conn.WriteJSON(liveInbound{Type: "navigate", Route: "no/such/view"}))
	msg = readUntil(t, conn, func(m liveOutbound) bool { return m.Type == "render" && m.Route == "dashboard" })
	assert.Contains(t, msg.HTML, "Alvarez", "unknown routes fall back to the dashboard")
}

func TestLive_FilterMessageRerendersChecklist(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.login(presidentEmail, testPassword)
	conn := b.dialLive()

	require.NoError(t, conn.WriteJSON(liveInbound{Type: "navigate", Route: "athlete/demo-ath-03"}))
	readUntil(t, conn, func(m liveOutbound) bool { return m.Route == "athlete/demo-ath-03" })

	require.NoError(t, conn.WriteJSON(liveInbound{Type: "filter", Athlete: "demo-ath-03", Filter: "pending"}))
	msg := readUntil(t, conn, func(m liveOutbound) bool {
		return m.Type == "render" && !strings.Contains(m.HTML, "Liability waiver")
	})
	assert.Contains(t, msg.HTML, "Sports physical")
}

func TestLive_OtherTabsSeeSavedStatus(t *testing.T) {
	env := newTestEnv(t)
	watcher := env.newBrowser(t)
	watcher.login(presidentEmail, testPassword)
	conn := watcher.dialLive()
	require.NoError(t, conn.WriteJSON(liveInbound{Type: "navigate", Route: "athlete/demo-ath-03"}))
	readUntil(t, conn, func(m liveOutbound) bool { return m.Route == "athlete/demo-ath-03" })

	editor := env.newBrowser(t)
	editor.login(presidentEmail, testPassword)
	resp, body := editor.post("/athlete/demo-ath-03/requirements/demo-req-physical", url.Values{
		"status": {"complete"},
		"notes":  {"cleared by Dr. Ortiz"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, body)

	msg := readUntil(t, conn, func(m liveOutbound) bool {
		return m.Type == "render" && strings.Contains(m.HTML, "cleared by Dr. Ortiz")
	})
	assert.Equal(t, "athlete/demo-ath-03", msg.Route)
}

func TestLive_LogoutSendsEveryTabToLogin(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.login(presidentEmail, testPassword)
	conn := b.dialLive()
	require.NoError(t, conn.WriteJSON(liveInbound{Type: "navigate", Route: "dashboard"}))
	readUntil(t, conn, func(m liveOutbound) bool { return m.Type == "render" })

	resp, _ := b.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	msg := readUntil(t, conn, func(m liveOutbound) bool { return m.Type == "reload" })
	assert.Equal(t, "/login", msg.Location)
}

func TestLive_ExpiredSessionStopsReceivingData(t *testing.T) {
	env := newTestEnvWith(t, func(cfg *Config) { cfg.SessionTTL = 2 * time.Second })
	watcher := env.newBrowser(t)
	watcher.login(presidentEmail, testPassword)
	conn := watcher.dialLive()
	require.NoError(t, conn.WriteJSON(liveInbound{Type: "navigate", Route: "athlete/demo-ath-03"}))
	readUntil(t, conn, func(m liveOutbound) bool { return m.Type == "render" })

	// The token runs out without any other event.
	msg := readUntil(t, conn, func(m liveOutbound) bool { return m.Type == "reload" })
	assert.Equal(t, "/login", msg.Location)

	editor := env.newBrowser(t)
	editor.login(presidentEmail, testPassword)
	resp, body := editor.post("/athlete/demo-ath-03/requirements/demo-req-physical", url.Values{
		"status": {"complete"},
		"notes":  {"seen only by signed-in tabs"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode, body)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	for {
		var next liveOutbound
		if err := conn.ReadJSON(&next); err != nil {
			break
		}
		assert.NotEqual(t, "render", next.Type, "expired tab received %q", next.HTML)
		assert.NotContains(t, next.HTML, "seen only by signed-in tabs")
	}
}

func TestLive_DisconnectUnsubscribes(t *testing.T) {
	env := newTestEnv(t)
	b := env.newBrowser(t)
	b.login(presidentEmail, testPassword)
	conn := b.dialLive()
	require.NoError(t, conn.WriteJSON(liveInbound{Type: "navigate", Route: "dashboard"}))
	readUntil(t, conn, func(m liveOutbound) bool { return m.Type == "render" })
	assert.Equal(t, 1, env.srv.hub.Len())

	conn.Close()
	assert.Eventually(t, func() bool { return env.srv.hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_PublishReachesSubscribersUntilUnsubscribed(t *testing.T) {
	h := NewHub()
	var a, b atomic.Int32
	unsubA := h.Subscribe(func(c Change) {
		if c.Kind == ChangeStatus {
			a.Add(1)
		}
	})
	h.Subscribe(func(Change) { b.Add(1) })

	h.Publish(Change{Kind: ChangeStatus, AthleteID: "a1"})
	unsubA()
	h.Publish(Change{Kind: ChangeMembership})

	assert.Equal(t, int32(1), a.Load())
	assert.Equal(t, int32(2), b.Load())
	assert.Equal(t, 1, h.Len())
}

func TestHub_SubscriberMayUnsubscribeDuringPublish(t *testing.T) {
	h := NewHub()
	var unsub func()
	calls := 0
	unsub = h.Subscribe(func(Change) {
		calls++
		unsub()
	})
	h.Publish(Change{Kind: ChangeRequest})
	h.Publish(Change{Kind: ChangeRequest})
	assert.Equal(t, 1, calls)
}
