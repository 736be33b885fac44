package roster

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ysa/internal/adapters/storage"
	domain "ysa/internal/domain/roster"
	"ysa/internal/domain/scope"
)

var testScope = scope.Default()

func newTestStore(t *testing.T) (*SQLStore, *sql.DB) {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, storage.Migrate(context.Background(), db))
	return NewSQLStore(db, storage.SQLite()), db
}

// seed creates three active athletes and one inactive one, two critical requirements and
// one optional requirement. Only Baker has completed both critical requirements.
func seed(t *testing.T, store *SQLStore, db *sql.DB) {
	t.Helper()
	ctx := context.Background()
	athletes := []domain.Athlete{
		{ID: "a-baker", LastName: "Baker", FirstName: "Sam", Grade: "7", TeamLevel: "JV", Active: true},
		{ID: "a-adams", LastName: "Adams", FirstName: "Zoe", Grade: "8", TeamLevel: "Varsity", Active: true},
		{ID: "a-adams2", LastName: "Adams", FirstName: "Ben", Active: true},
		{ID: "a-gone", LastName: "Archer", FirstName: "Kim", Active: false},
	}
	for _, a := range athletes {
		a.OrgID = testScope.OrgID
		a.SeasonID = testScope.SeasonID
		require.NoError(t, store.SaveAthlete(ctx, a))
	}

	exec := func(query string, args ...any) {
		_, err := db.ExecContext(ctx, query, args...)
		require.NoError(t, err)
	}
	for _, r := range []struct {
		id, name string
		critical int
		due      any
	}{
		{"r-physical", "Physical", 1, "2026-09-01"},
		{"r-waiver", "Waiver", 1, nil},
		{"r-photo", "Photo", 0, nil},
	} {
		exec("INSERT INTO requirement (id, org_id, season_id, name, due_date, critical) VALUES (?, ?, ?, ?, ?, ?)",
			r.id, testScope.OrgID, testScope.SeasonID, r.name, r.due, r.critical)
	}
	status := func(athlete, req, st string) {
		exec("INSERT INTO requirement_status (org_id, season_id, athlete_id, requirement_id, status) VALUES (?, ?, ?, ?, ?)",
			testScope.OrgID, testScope.SeasonID, athlete, req, st)
	}
	status("a-baker", "r-physical", "complete")
	status("a-baker", "r-waiver", "complete")
	status("a-adams", "r-physical", "complete")
	status("a-adams", "r-waiver", "pending")
	status("a-adams2", "r-photo", "complete")
}

func TestSQLStore_ListRoster(t *testing.T) {
	store, db := newTestStore(t)
	seed(t, store, db)

	entries, err := store.ListRoster(context.Background(), testScope)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "Adams, Ben", entries[0].DisplayName())
	assert.Equal(t, "Adams, Zoe", entries[1].DisplayName())
	assert.Equal(t, "Baker, Sam", entries[2].DisplayName())

	assert.Equal(t, 2, entries[0].CriticalTotal)
	assert.Equal(t, 0, entries[0].CriticalComplete)
	assert.Equal(t, 2, entries[0].CriticalIncomplete)
	assert.False(t, entries[0].IsGreen())

	assert.Equal(t, 1, entries[1].CriticalComplete)
	assert.False(t, entries[1].IsGreen())
	assert.Equal(t, "Varsity", entries[1].TeamLevel)

	assert.Equal(t, 2, entries[2].CriticalComplete)
	assert.Equal(t, 0, entries[2].CriticalIncomplete)
	assert.True(t, entries[2].IsGreen())

	dash := domain.BuildDashboard(entries, nil)
	assert.Equal(t, domain.Totals{Athletes: 3, Green: 1, NotGreen: 2}, dash.Totals)
}

func TestSQLStore_ListRedFlags(t *testing.T) {
	store, db := newTestStore(t)
	seed(t, store, db)

	flags, err := store.ListRedFlags(context.Background(), testScope)
	require.NoError(t, err)
	require.Len(t, flags, 2)

	assert.Equal(t, "Waiver", flags[0].RequirementName)
	assert.Equal(t, 2, flags[0].AthletesNotComplete)
	assert.Nil(t, flags[0].DueDate)

	assert.Equal(t, "Physical", flags[1].RequirementName)
	assert.Equal(t, 1, flags[1].AthletesNotComplete)
	require.NotNil(t, flags[1].DueDate)
	assert.Equal(t, "2026-09-01", flags[1].DueDate.Format(storage.DateLayout))
}

func TestSQLStore_RedFlagTiesBreakByName(t *testing.T) {
	store, db := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveAthlete(ctx, domain.Athlete{ID: "a1", OrgID: testScope.OrgID, SeasonID: testScope.SeasonID, LastName: "Lee", FirstName: "Jo", Active: true}))
	for _, name := range []string{"Zinc", "Alpha"} {
		_, err := db.ExecContext(ctx, "INSERT INTO requirement (id, org_id, season_id, name, critical) VALUES (?, ?, ?, ?, 1)",
			"r-"+name, testScope.OrgID, testScope.SeasonID, name)
		require.NoError(t, err)
	}

	flags, err := store.ListRedFlags(ctx, testScope)
	require.NoError(t, err)
	require.Len(t, flags, 2)
	assert.Equal(t, "Alpha", flags[0].RequirementName)
	assert.Equal(t, "Zinc", flags[1].RequirementName)
}

func TestSQLStore_GetAthlete(t *testing.T) {
	store, db := newTestStore(t)
	seed(t, store, db)
	ctx := context.Background()

	a, err := store.GetAthlete(ctx, testScope, "a-adams2")
	require.NoError(t, err)
	assert.Equal(t, "Ben", a.FirstName)
	assert.Equal(t, "", a.Grade)
	assert.True(t, a.Active)

	_, err = store.GetAthlete(ctx, testScope, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = store.GetAthlete(ctx, scope.Scope{OrgID: testScope.OrgID, SeasonID: "other"}, "a-adams2")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSQLStore_EmptySeason(t *testing.T) {
	store, _ := newTestStore(t)
	entries, err := store.ListRoster(context.Background(), testScope)
	require.NoError(t, err)
	assert.Empty(t, entries)
	flags, err := store.ListRedFlags(context.Background(), testScope)
	require.NoError(t, err)
	assert.Empty(t, flags)
}
