//go:build integration

package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ysa/internal/adapters/storage"
	accountstore "ysa/internal/adapters/storage/account"
	memberstore "ysa/internal/adapters/storage/orgmember"
	requirementstore "ysa/internal/adapters/storage/requirement"
	rosterstore "ysa/internal/adapters/storage/roster"
	"ysa/internal/domain/account"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/requirement"
	"ysa/internal/domain/roster"
	"ysa/internal/domain/scope"
)

func startPostgres(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	container, err := postgres.Run(ctx, "postgres:16.3-alpine",
		postgres.WithDatabase("ysa"),
		postgres.WithUsername("ysa"),
		postgres.WithPassword("secret"),
		postgres.WithInitScripts(filepath.Join("testdata", "postgres_schema.sql")),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	// The container is not configured for TLS.
	url, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return url
}

func TestPostgres_StoresAgainstHostedSchema(t *testing.T) {
	url := startPostgres(t)
	ctx := context.Background()

	db, closeDB, err := storage.OpenPostgres(ctx, url, 10*time.Second)
	require.NoError(t, err)
	defer closeDB()

	dialect := storage.Postgres(storage.DefaultSchema)
	sc := scope.Default()
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	accounts := accountstore.NewSQLStore(db, dialect)
	require.NoError(t, accounts.Save(ctx, account.Account{ID: "u-1", Email: "admin@example.org", PasswordHash: "x", CreatedAt: now}))
	got, err := accounts.GetByEmail(ctx, "ADMIN@example.org")
	require.NoError(t, err)
	assert.True(t, now.Equal(got.CreatedAt))

	athletes := rosterstore.NewSQLStore(db, dialect)
	requirements := requirementstore.NewSQLStore(db, dialect)
	require.NoError(t, athletes.SaveAthlete(ctx, roster.Athlete{ID: "a-1", OrgID: sc.OrgID, SeasonID: sc.SeasonID, LastName: "Ng", FirstName: "Ivy", Grade: "6", Active: true}))
	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	require.NoError(t, requirements.SaveRequirement(ctx, requirement.Requirement{ID: "r-1", OrgID: sc.OrgID, SeasonID: sc.SeasonID, Name: "Physical", Type: "checkbox", DueDate: &due, Critical: true}))

	flags, err := athletes.ListRedFlags(ctx, sc)
	require.NoError(t, err)
	require.Len(t, flags, 1)
	assert.Equal(t, 1, flags[0].AthletesNotComplete)

	rec, err := requirement.NewStatusRecord(sc.OrgID, sc.SeasonID, "a-1", "r-1", requirement.StatusComplete, "ok", requirement.Values{}, "u-1", now)
	require.NoError(t, err)
	require.NoError(t, requirements.UpsertStatus(ctx, rec))
	require.NoError(t, requirements.UpsertStatus(ctx, rec))

	statuses, err := requirements.ListStatuses(ctx, sc, "a-1")
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	require.NotNil(t, statuses[0].CompletedAt)
	assert.True(t, now.Equal(*statuses[0].CompletedAt))

	entries, err := athletes.ListRoster(ctx, sc)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsGreen())

	members := memberstore.NewSQLStore(db, dialect)
	require.NoError(t, members.CreateRequest(ctx, orgmember.AccessRequest{ID: "req-1", OrgID: sc.OrgID, UserID: "u-2", CreatedAt: now}))
	req, err := members.GetRequest(ctx, sc.OrgID, "req-1")
	require.NoError(t, err)
	m, err := req.MemberFor(orgmember.RoleCoach, now)
	require.NoError(t, err)
	require.NoError(t, members.UpsertMember(ctx, m))
	require.NoError(t, members.DeleteRequest(ctx, sc.OrgID, "req-1"))

	list, err := members.ListMembers(ctx, sc.OrgID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, orgmember.RoleCoach, list[0].Role)
	pending, err := members.ListRequests(ctx, sc.OrgID)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
