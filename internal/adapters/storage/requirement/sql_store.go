package requirement

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"ysa/internal/adapters/storage"
	domain "ysa/internal/domain/requirement"
	"ysa/internal/domain/scope"
)

var statusColumns = []string{
	"org_id", "season_id", "athlete_id", "requirement_id", "status",
	"value_number", "value_date", "value_text", "evidence_url",
	"completed_by_user_id", "completed_at", "notes", "updated_at",
}

// SQLStore implements Store over either backend dialect.
type SQLStore struct {
	db      storage.SQLDB
	dialect storage.Dialect
}

// NewSQLStore creates a new requirement store.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// ListRequirements returns the season's requirements.
// POST: Critical first, then due date ascending with undated last, then name
func (s *SQLStore) ListRequirements(ctx context.Context, sc scope.Scope) ([]domain.Requirement, error) {
	q := s.dialect.Builder().
		Select("id", "org_id", "season_id", "category", "name", "type", "due_date", "critical").
		From(s.dialect.Table("requirement")).
		Where(sq.Eq{"org_id": sc.OrgID, "season_id": sc.SeasonID}).
		OrderBy("critical DESC", "due_date IS NULL", "due_date ASC", "name ASC")

	rows, err := storage.Query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Requirement
	for rows.Next() {
		var r domain.Requirement
		var category, typ, due sql.NullString
		if err := rows.Scan(&r.ID, &r.OrgID, &r.SeasonID, &category, &r.Name, &typ, &due, &r.Critical); err != nil {
			return nil, err
		}
		r.Category = category.String
		r.Type = typ.String
		r.DueDate = storage.ParseTime(due)
		results = append(results, r)
	}
	return results, rows.Err()
}

// ListStatuses returns the athlete's status rows for the season.
// PRE: athleteID is non-empty
func (s *SQLStore) ListStatuses(ctx context.Context, sc scope.Scope, athleteID string) ([]domain.StatusRecord, error) {
	q := s.dialect.Builder().
		Select(statusColumns...).
		From(s.dialect.Table("requirement_status")).
		Where(sq.Eq{"org_id": sc.OrgID, "season_id": sc.SeasonID, "athlete_id": athleteID})

	rows, err := storage.Query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.StatusRecord
	for rows.Next() {
		rec, err := scanStatus(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, rec)
	}
	return results, rows.Err()
}

// UpsertStatus writes the row for (season, athlete, requirement) in a single statement.
// Every column is overwritten, so callers pass the values they want kept.
// PRE: rec has been validated and stamped
// POST: Exactly one row exists for the key
func (s *SQLStore) UpsertStatus(ctx context.Context, rec domain.StatusRecord) error {
	q := s.dialect.Builder().
		Insert(s.dialect.Table("requirement_status")).
		Columns(statusColumns...).
		Values(
			rec.OrgID,
			rec.SeasonID,
			rec.AthleteID,
			rec.RequirementID,
			string(rec.Status),
			storage.NullFloat(rec.Values.Number),
			storage.NullDate(rec.Values.Date),
			storage.NullString(rec.Values.Text),
			storage.NullString(rec.Values.EvidenceURL),
			storage.NullString(rec.CompletedByUserID),
			storage.NullTime(rec.CompletedAt),
			storage.NullString(rec.Notes),
			storage.NullTime(rec.UpdatedAt),
		).
		Suffix(`ON CONFLICT (season_id, athlete_id, requirement_id) DO UPDATE SET
			org_id = excluded.org_id,
			status = excluded.status,
			value_number = excluded.value_number,
			value_date = excluded.value_date,
			value_text = excluded.value_text,
			evidence_url = excluded.evidence_url,
			completed_by_user_id = excluded.completed_by_user_id,
			completed_at = excluded.completed_at,
			notes = excluded.notes,
			updated_at = excluded.updated_at`)
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

// SaveRequirement inserts or updates a requirement definition.
func (s *SQLStore) SaveRequirement(ctx context.Context, r domain.Requirement) error {
	q := s.dialect.Builder().
		Insert(s.dialect.Table("requirement")).
		Columns("id", "org_id", "season_id", "category", "name", "type", "due_date", "critical").
		Values(r.ID, r.OrgID, r.SeasonID, r.Category, r.Name, r.Type, storage.NullDate(r.DueDate), r.Critical).
		Suffix("ON CONFLICT (id) DO UPDATE SET category = excluded.category, name = excluded.name, type = excluded.type, due_date = excluded.due_date, critical = excluded.critical")
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

// scanStatus extracts a StatusRecord from a row scanner function.
func scanStatus(scan func(dest ...any) error) (domain.StatusRecord, error) {
	var rec domain.StatusRecord
	var status string
	var number sql.NullFloat64
	var date, text, evidence, completedBy, completedAt, notes, updatedAt sql.NullString
	err := scan(
		&rec.OrgID,
		&rec.SeasonID,
		&rec.AthleteID,
		&rec.RequirementID,
		&status,
		&number,
		&date,
		&text,
		&evidence,
		&completedBy,
		&completedAt,
		&notes,
		&updatedAt,
	)
	if err != nil {
		return domain.StatusRecord{}, err
	}
	rec.Status = domain.Status(status)
	rec.Values = domain.Values{
		Number:      storage.FloatPtr(number),
		Date:        storage.ParseTime(date),
		Text:        storage.StringPtr(text),
		EvidenceURL: storage.StringPtr(evidence),
	}
	rec.CompletedByUserID = storage.StringPtr(completedBy)
	rec.CompletedAt = storage.ParseTime(completedAt)
	rec.Notes = storage.StringPtr(notes)
	rec.UpdatedAt = storage.ParseTime(updatedAt)
	return rec, nil
}
