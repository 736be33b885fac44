//go:build browser

package browser_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	web "ysa/internal/adapters/http"
	"ysa/internal/adapters/email"
	"ysa/internal/adapters/http/perf"
	"ysa/internal/adapters/storage"
	accountStore "ysa/internal/adapters/storage/account"
	orgMemberStore "ysa/internal/adapters/storage/orgmember"
	requirementStore "ysa/internal/adapters/storage/requirement"
	rosterStore "ysa/internal/adapters/storage/roster"
	"ysa/internal/application/orchestrators"
	"ysa/internal/domain/scope"
)

const (
	adminEmail    = "president@test.example"
	adminPassword = "TestPass123!long"
)

// testApp holds the running test server and Playwright handles.
type testApp struct {
	BaseURL string
	Server  *http.Server
	PW      *playwright.Playwright
	Browser playwright.Browser
	Stores  web.Stores
	AdminID string
}

// newTestApp creates a fully wired app with a temp SQLite DB and the demo season, and starts
// an HTTP server. Skips when Playwright's browsers are not installed.
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}

	ctx := context.Background()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test DB: %v", err)
	}
	if err := storage.Migrate(ctx, db); err != nil {
		t.Fatalf("failed to migrate test DB: %v", err)
	}

	d := storage.SQLite()
	stores := web.Stores{
		Accounts:     accountStore.NewSQLStore(db, d),
		Roster:       rosterStore.NewSQLStore(db, d),
		Requirements: requirementStore.NewSQLStore(db, d),
		Members:      orgMemberStore.NewSQLStore(db, d),
	}

	sc := scope.Default()
	if _, err := orchestrators.ExecuteSeedDemo(ctx, sc, "seed", orchestrators.SeedDemoDeps{
		Athletes:     stores.Roster,
		Requirements: stores.Requirements,
	}); err != nil {
		t.Fatalf("failed to seed demo season: %v", err)
	}
	adminID, err := orchestrators.ExecuteBootstrapAdmin(ctx, orchestrators.BootstrapAdminInput{
		Scope:    sc,
		Email:    adminEmail,
		Password: adminPassword,
	}, orchestrators.BootstrapAdminDeps{AccountStore: stores.Accounts, MemberStore: stores.Members})
	if err != nil {
		t.Fatalf("failed to create admin: %v", err)
	}

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	port := listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	server, err := web.NewServer(web.Config{
		Scope:          sc,
		SessionSecret:  bytes.Repeat([]byte("s"), 32),
		CSRFKey:        bytes.Repeat([]byte("k"), 32),
		TrustedOrigins: []string{fmt.Sprintf("127.0.0.1:%d", port), fmt.Sprintf("localhost:%d", port)},
		BaseURL:        fmt.Sprintf("http://127.0.0.1:%d", port),
	}, web.Deps{
		Stores:    stores,
		Mailer:    email.NewNoopSender(),
		Collector: perf.NewCollector(perf.DefaultRingSize),
		Health:    db.PingContext,
	})
	if err != nil {
		t.Fatalf("failed to build server: %v", err)
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf("127.0.0.1:%d", port),
		Handler: server.Handler(),
	}
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			log.Printf("test server error: %v", err)
		}
	}()

	// Wait for server to be ready
	baseURL := fmt.Sprintf("http://127.0.0.1:%d", port)
	for i := 0; i < 50; i++ {
		resp, err := http.Get(baseURL + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	pw, err := playwright.Run()
	if err != nil {
		srv.Close()
		db.Close()
		t.Skipf("playwright unavailable: %v", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(true),
	})
	if err != nil {
		pw.Stop()
		srv.Close()
		db.Close()
		t.Skipf("chromium unavailable: %v", err)
	}

	app := &testApp{
		BaseURL: baseURL,
		Server:  srv,
		PW:      pw,
		Browser: browser,
		Stores:  stores,
		AdminID: adminID,
	}

	t.Cleanup(func() {
		browser.Close()
		pw.Stop()
		srv.Close()
		server.Close()
		db.Close()
	})

	return app
}

// newPage opens a tab in its own browser context, so each tab has its own cookies.
func (a *testApp) newPage(t *testing.T) playwright.Page {
	t.Helper()
	bctx, err := a.Browser.NewContext()
	if err != nil {
		t.Fatalf("failed to create browser context: %v", err)
	}
	page, err := bctx.NewPage()
	if err != nil {
		t.Fatalf("failed to create page: %v", err)
	}
	t.Cleanup(func() { bctx.Close() })
	return page
}

// login signs in through the form and waits for the dashboard.
func (a *testApp) login(t *testing.T, page playwright.Page, email, password string) {
	t.Helper()
	if _, err := page.Goto(a.BaseURL + "/login"); err != nil {
		t.Fatalf("failed to navigate to login: %v", err)
	}
	if err := page.Locator("input[name=email]").Fill(email); err != nil {
		t.Fatalf("failed to fill email: %v", err)
	}
	if err := page.Locator("input[name=password]").Fill(password); err != nil {
		t.Fatalf("failed to fill password: %v", err)
	}
	if err := page.Locator("button[type=submit]").Click(); err != nil {
		t.Fatalf("failed to click sign in: %v", err)
	}
	if err := page.WaitForURL(a.BaseURL+"/", playwright.PageWaitForURLOptions{
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("login did not redirect to the dashboard: %v", err)
	}
}

// waitLive waits until the page's live channel is connected.
func waitLive(t *testing.T, page playwright.Page) {
	t.Helper()
	if err := page.Locator("#app[data-live]").WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(10000),
	}); err != nil {
		t.Fatalf("live channel did not connect: %v", err)
	}
}
