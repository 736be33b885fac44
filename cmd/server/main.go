package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	emailPkg "ysa/internal/adapters/email"
	web "ysa/internal/adapters/http"
	"ysa/internal/adapters/http/perf"
	"ysa/internal/adapters/storage"
	accountStore "ysa/internal/adapters/storage/account"
	orgMemberStore "ysa/internal/adapters/storage/orgmember"
	requirementStore "ysa/internal/adapters/storage/requirement"
	rosterStore "ysa/internal/adapters/storage/roster"
	"ysa/internal/application/orchestrators"
	"ysa/internal/domain/scope"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// A missing .env is fine; real environment variables win over it.
	_ = godotenv.Load()

	root := newRootCommand(withLogging(runServe))
	if err := root.Run(context.Background(), os.Args); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

// newRootCommand builds the ysa command tree. serve runs for both `ysa` and `ysa serve`;
// its flags live on the root so the two invocations read the same settings.
func newRootCommand(serve cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:    "ysa",
		Usage:   "Season compliance tracker for a youth sports organization",
		Version: version,
		Flags:   append(globalFlags(), serveFlags()...),
		Commands: []*cli.Command{
			serveCommand(serve),
			migrateCommand(),
			seedCommand(),
			createAdminCommand(),
		},
		Action: serve,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "env", Value: "development", Usage: "development or production", Sources: cli.EnvVars("YSA_ENV")},
		&cli.StringFlag{Name: "log-level", Value: "info", Usage: "debug, info, warn or error", Sources: cli.EnvVars("YSA_LOG_LEVEL")},
		&cli.StringFlag{Name: "db-path", Value: "ysa.db", Usage: "local SQLite database path", Sources: cli.EnvVars("YSA_DB_PATH")},
		&cli.StringFlag{Name: "database-url", Usage: "hosted Postgres URL; replaces the local database when set", Sources: cli.EnvVars("YSA_DATABASE_URL")},
		&cli.StringFlag{Name: "schema", Value: storage.DefaultSchema, Usage: "hosted Postgres schema", Sources: cli.EnvVars("YSA_SCHEMA")},
		&cli.StringFlag{Name: "org-id", Value: scope.DefaultOrgID, Usage: "organization id", Sources: cli.EnvVars("YSA_ORG_ID")},
		&cli.StringFlag{Name: "season-id", Value: scope.DefaultSeasonID, Usage: "season id", Sources: cli.EnvVars("YSA_SEASON_ID")},
		&cli.IntFlag{Name: "slow-query-ms", Value: storage.DefaultSlowQueryMs, Usage: "log statements slower than this", Sources: cli.EnvVars("YSA_SLOW_QUERY_MS")},
	}
}

func serveCommand(serve cli.ActionFunc) *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the web server (default)",
		Action: serve,
	}
}

// serveFlags configure the web server.
func serveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "addr", Value: ":8080", Usage: "HTTP listen address", Sources: cli.EnvVars("YSA_ADDR")},
		&cli.StringFlag{Name: "base-url", Value: "http://localhost:8080", Usage: "public URL used in emails", Sources: cli.EnvVars("YSA_BASE_URL")},
		&cli.StringFlag{Name: "session-secret", Usage: "session signing key, at least 32 bytes", Sources: cli.EnvVars("YSA_SESSION_SECRET")},
		&cli.DurationFlag{Name: "session-ttl", Value: 24 * time.Hour, Usage: "session lifetime", Sources: cli.EnvVars("YSA_SESSION_TTL")},
		&cli.StringFlag{Name: "csrf-key", Usage: "CSRF key, 64 hex characters", Sources: cli.EnvVars("YSA_CSRF_KEY")},
		&cli.StringSliceFlag{Name: "trusted-origins", Usage: "extra origins allowed to post forms", Sources: cli.EnvVars("YSA_TRUSTED_ORIGINS")},
		&cli.IntFlag{Name: "rate-limit", Value: 20, Usage: "requests per second per client", Sources: cli.EnvVars("YSA_RATE_LIMIT")},
		&cli.IntFlag{Name: "slow-request-ms", Value: 200, Usage: "log requests slower than this", Sources: cli.EnvVars("YSA_SLOW_REQUEST_MS")},
		&cli.StringFlag{Name: "resend-key", Usage: "Resend API key; email is logged only when empty", Sources: cli.EnvVars("YSA_RESEND_KEY")},
		&cli.StringFlag{Name: "resend-from", Value: "YSA Tracker <noreply@ysa.example.org>", Usage: "sender address", Sources: cli.EnvVars("YSA_RESEND_FROM")},
		&cli.StringFlag{Name: "admin-email", Usage: "bootstrap administrator email", Sources: cli.EnvVars("YSA_ADMIN_EMAIL")},
		&cli.StringFlag{Name: "admin-password", Usage: "bootstrap administrator password", Sources: cli.EnvVars("YSA_ADMIN_PASSWORD")},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply local database migrations and exit",
		Action: withLogging(func(ctx context.Context, cmd *cli.Command) error {
			if cmd.String("database-url") != "" {
				return errors.New("the hosted schema is managed by the backend and is not migrated from here")
			}
			db, err := storage.OpenSQLite(cmd.String("db-path"))
			if err != nil {
				return err
			}
			defer db.Close()
			if err := storage.Migrate(ctx, db); err != nil {
				return err
			}
			v, err := storage.SchemaVersion(ctx, db)
			if err != nil {
				return err
			}
			slog.Info("migrated", "db_path", cmd.String("db-path"), "schema_version", v)
			return nil
		}),
	}
}

func seedCommand() *cli.Command {
	return &cli.Command{
		Name:  "seed",
		Usage: "Load the demo season (safe to repeat)",
		Action: withLogging(func(ctx context.Context, cmd *cli.Command) error {
			env, err := openEnv(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer env.close()
			_, err = orchestrators.ExecuteSeedDemo(ctx, env.scope, "seed", orchestrators.SeedDemoDeps{
				Athletes:     env.stores.Roster,
				Requirements: env.stores.Requirements,
			})
			return err
		}),
	}
}

func createAdminCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-admin",
		Usage: "Create an administrator or grant an existing account admin access",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true, Sources: cli.EnvVars("YSA_ADMIN_EMAIL")},
			&cli.StringFlag{Name: "password", Usage: "required for a new account", Sources: cli.EnvVars("YSA_ADMIN_PASSWORD")},
			&cli.StringFlag{Name: "role", Value: "president", Usage: "admin or president"},
		},
		Action: withLogging(func(ctx context.Context, cmd *cli.Command) error {
			env, err := openEnv(ctx, cmd, nil)
			if err != nil {
				return err
			}
			defer env.close()
			id, err := orchestrators.ExecuteBootstrapAdmin(ctx, orchestrators.BootstrapAdminInput{
				Scope:    env.scope,
				Email:    cmd.String("email"),
				Password: cmd.String("password"),
				Role:     cmd.String("role"),
			}, orchestrators.BootstrapAdminDeps{AccountStore: env.stores.Accounts, MemberStore: env.stores.Members})
			if err != nil {
				return err
			}
			fmt.Printf("administrator %s ready (account %s)\n", cmd.String("email"), id)
			return nil
		}),
	}
}

// withLogging installs the default slog handler before running action.
func withLogging(action cli.ActionFunc) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		slog.SetDefault(newLogger(cmd.String("env"), cmd.String("log-level")))
		return action(ctx, cmd)
	}
}

// newLogger returns a JSON logger in production and a text logger otherwise.
func newLogger(env, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func parseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return l
}

// appEnv is an opened database with its stores.
type appEnv struct {
	scope  scope.Scope
	db     *sql.DB
	stores web.Stores
	close  func()
}

// openEnv opens the hosted Postgres schema when a URL is configured, otherwise the local
// SQLite file (migrated on open). Statements are timed into collector when it is set.
func openEnv(ctx context.Context, cmd *cli.Command, collector *perf.Collector) (*appEnv, error) {
	sc := scope.Scope{OrgID: cmd.String("org-id"), SeasonID: cmd.String("season-id")}
	if err := sc.Validate(); err != nil {
		return nil, err
	}

	var (
		db      *sql.DB
		dialect storage.Dialect
		closer  func()
	)
	if url := cmd.String("database-url"); url != "" {
		pg, release, err := storage.OpenPostgres(ctx, url, 30*time.Second)
		if err != nil {
			return nil, err
		}
		db, dialect, closer = pg, storage.Postgres(cmd.String("schema")), release
		slog.Info("database_opened", "backend", "postgres", "schema", dialect.Schema)
	} else {
		path := cmd.String("db-path")
		local, err := storage.OpenSQLite(path)
		if err != nil {
			return nil, err
		}
		if err := storage.Migrate(ctx, local); err != nil {
			local.Close()
			return nil, err
		}
		db, dialect, closer = local, storage.SQLite(), func() { local.Close() }
		slog.Info("database_opened", "backend", "sqlite", "path", path)
	}

	var q storage.SQLDB = db
	if collector != nil {
		q = storage.NewTimedDB(db, collector, int(cmd.Int("slow-query-ms")))
	}
	return &appEnv{
		scope: sc,
		db:    db,
		stores: web.Stores{
			Accounts:     accountStore.NewSQLStore(q, dialect),
			Roster:       rosterStore.NewSQLStore(q, dialect),
			Requirements: requirementStore.NewSQLStore(q, dialect),
			Members:      orgMemberStore.NewSQLStore(q, dialect),
		},
		close: closer,
	}, nil
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	production := cmd.String("env") == "production"
	collector := perf.NewCollector(perf.DefaultRingSize)

	env, err := openEnv(ctx, cmd, collector)
	if err != nil {
		return err
	}
	defer env.close()

	if email := cmd.String("admin-email"); email != "" {
		if _, err := orchestrators.ExecuteBootstrapAdmin(ctx, orchestrators.BootstrapAdminInput{
			Scope:    env.scope,
			Email:    email,
			Password: cmd.String("admin-password"),
		}, orchestrators.BootstrapAdminDeps{AccountStore: env.stores.Accounts, MemberStore: env.stores.Members}); err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
	}

	sessionSecret, err := secretOrRandom("session-secret", []byte(cmd.String("session-secret")), 32, production)
	if err != nil {
		return err
	}
	csrfKey, err := decodeCSRFKey(cmd.String("csrf-key"))
	if err != nil {
		return err
	}
	csrfKey, err = secretOrRandom("csrf-key", csrfKey, 32, production)
	if err != nil {
		return err
	}

	var mailer emailPkg.Sender
	if key := cmd.String("resend-key"); key != "" {
		mailer = emailPkg.NewResendSender(key, cmd.String("resend-from"))
		slog.Info("email_configured", "provider", "resend")
	} else {
		mailer = emailPkg.NewNoopSender()
		if production {
			slog.Warn("email_configured", "provider", "noop", "warning", "YSA_RESEND_KEY is not set, email delivery is disabled")
		}
	}

	server, err := web.NewServer(web.Config{
		Scope:              env.scope,
		SessionSecret:      sessionSecret,
		SessionTTL:         cmd.Duration("session-ttl"),
		CSRFKey:            csrfKey,
		SecureCookies:      production,
		TrustedOrigins:     cmd.StringSlice("trusted-origins"),
		RateLimitPerSecond: int(cmd.Int("rate-limit")),
		SlowRequestMs:      int(cmd.Int("slow-request-ms")),
		BaseURL:            cmd.String("base-url"),
	}, web.Deps{
		Stores:    env.stores,
		Mailer:    mailer,
		Collector: collector,
		Health:    env.db.PingContext,
	})
	if err != nil {
		return err
	}
	defer server.Close()

	srv := &http.Server{
		Addr:              cmd.String("addr"),
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server_starting", "addr", srv.Addr, "version", version, "env", cmd.String("env"),
			"org_id", env.scope.OrgID, "season_id", env.scope.SeasonID)
		errCh <- srv.ListenAndServe()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		slog.Info("server_stopping", "reason", "signal")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// decodeCSRFKey accepts 64 hex characters or a raw 32-byte string.
func decodeCSRFKey(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return nil, nil
	case len(s) == 64:
		key, err := hex.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("csrf key: %w", err)
		}
		return key, nil
	case len(s) == 32:
		return []byte(s), nil
	}
	return nil, errors.New("csrf key must be 64 hex characters")
}

// secretOrRandom returns key when it is long enough. Outside production an empty key is
// replaced by a random one, which signs everyone out on restart.
func secretOrRandom(name string, key []byte, size int, production bool) ([]byte, error) {
	if len(key) > 0 {
		if len(key) < size {
			return nil, fmt.Errorf("%s must be at least %d bytes", name, size)
		}
		return key, nil
	}
	if production {
		return nil, fmt.Errorf("%s is required in production", name)
	}
	key = make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	slog.Warn("config_warning", "setting", name, "warning", "not set, using a random key for this run")
	return key, nil
}
