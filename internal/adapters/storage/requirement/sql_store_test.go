package requirement

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ysa/internal/adapters/storage"
	domain "ysa/internal/domain/requirement"
	"ysa/internal/domain/scope"
)

var testScope = scope.Default()

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := storage.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	ctx := context.Background()
	require.NoError(t, storage.Migrate(ctx, db))
	_, err = db.ExecContext(ctx,
		"INSERT INTO athlete (id, org_id, season_id, last_name, first_name) VALUES (?, ?, ?, ?, ?)",
		"ath-1", testScope.OrgID, testScope.SeasonID, "Okafor", "Ada")
	require.NoError(t, err)
	return NewSQLStore(db, storage.SQLite())
}

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func seedRequirements(t *testing.T, store *SQLStore) {
	t.Helper()
	reqs := []domain.Requirement{
		{ID: "r-waiver", Name: "Waiver", Critical: false, DueDate: date(2026, 8, 1)},
		{ID: "r-physical", Name: "Physical", Critical: true, DueDate: date(2026, 9, 1)},
		{ID: "r-concussion", Name: "Concussion form", Critical: true, DueDate: date(2026, 8, 15)},
		{ID: "r-birth", Name: "Birth certificate", Critical: true},
		{ID: "r-photo", Name: "Photo", Critical: false},
	}
	for _, r := range reqs {
		r.OrgID = testScope.OrgID
		r.SeasonID = testScope.SeasonID
		r.Category = "registration"
		r.Type = "checkbox"
		require.NoError(t, store.SaveRequirement(context.Background(), r))
	}
}

func TestSQLStore_ListRequirementsOrdering(t *testing.T) {
	store := newTestStore(t)
	seedRequirements(t, store)

	got, err := store.ListRequirements(context.Background(), testScope)
	require.NoError(t, err)

	ids := make([]string, len(got))
	for i, r := range got {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"r-concussion", "r-physical", "r-birth", "r-waiver", "r-photo"}, ids)
	require.NotNil(t, got[0].DueDate)
	assert.Equal(t, "2026-08-15", got[0].DueDate.Format(storage.DateLayout))
	assert.Nil(t, got[2].DueDate)
	assert.True(t, got[0].Critical)
	assert.False(t, got[3].Critical)
}

func TestSQLStore_ListRequirementsOtherSeasonExcluded(t *testing.T) {
	store := newTestStore(t)
	seedRequirements(t, store)

	got, err := store.ListRequirements(context.Background(), scope.Scope{OrgID: testScope.OrgID, SeasonID: "other"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLStore_UpsertStatusKeepsOneRowPerKey(t *testing.T) {
	store := newTestStore(t)
	seedRequirements(t, store)
	ctx := context.Background()
	now := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)

	pending, err := domain.NewStatusRecord(testScope.OrgID, testScope.SeasonID, "ath-1", "r-physical", domain.StatusPending, "", domain.Values{}, "u-1", now)
	require.NoError(t, err)
	require.NoError(t, store.UpsertStatus(ctx, pending))

	complete, err := domain.NewStatusRecord(testScope.OrgID, testScope.SeasonID, "ath-1", "r-physical", domain.StatusComplete, "seen by nurse", domain.Values{}, "u-1", now.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, store.UpsertStatus(ctx, complete))

	rows, err := store.ListStatuses(ctx, testScope, "ath-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.StatusComplete, rows[0].Status)
	require.NotNil(t, rows[0].CompletedByUserID)
	assert.Equal(t, "u-1", *rows[0].CompletedByUserID)
	require.NotNil(t, rows[0].CompletedAt)
	assert.True(t, now.Add(time.Hour).Equal(*rows[0].CompletedAt))
	require.NotNil(t, rows[0].Notes)
	assert.Equal(t, "seen by nurse", *rows[0].Notes)
}

func TestSQLStore_UpsertStatusPreservesValues(t *testing.T) {
	store := newTestStore(t)
	seedRequirements(t, store)
	ctx := context.Background()
	now := time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)

	height := 152.5
	text := ""
	url := "https://files.example.org/physical.pdf"
	values := domain.Values{Number: &height, Date: date(2026, 8, 30), Text: &text, EvidenceURL: &url}

	first, err := domain.NewStatusRecord(testScope.OrgID, testScope.SeasonID, "ath-1", "r-physical", domain.StatusComplete, "", values, "u-1", now)
	require.NoError(t, err)
	require.NoError(t, store.UpsertStatus(ctx, first))

	loaded, err := store.ListStatuses(ctx, testScope, "ath-1")
	require.NoError(t, err)
	require.Len(t, loaded, 1)

	// A status edit that carries the loaded values through must leave them identical.
	second, err := domain.NewStatusRecord(testScope.OrgID, testScope.SeasonID, "ath-1", "r-physical", domain.StatusPending, "", loaded[0].Values, "u-2", now.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, store.UpsertStatus(ctx, second))

	reloaded, err := store.ListStatuses(ctx, testScope, "ath-1")
	require.NoError(t, err)
	require.Len(t, reloaded, 1)
	assert.Equal(t, loaded[0].Values, reloaded[0].Values)
	assert.Nil(t, reloaded[0].CompletedAt)
	assert.Nil(t, reloaded[0].CompletedByUserID)
	assert.Nil(t, reloaded[0].Notes)
}

func TestSQLStore_UpsertStatusUnknownRequirementRejected(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	rec, err := domain.NewStatusRecord(testScope.OrgID, testScope.SeasonID, "ath-1", "r-missing", domain.StatusPending, "", domain.Values{}, "u-1", now)
	require.NoError(t, err)
	assert.Error(t, store.UpsertStatus(context.Background(), rec))
}
