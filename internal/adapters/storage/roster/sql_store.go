package roster

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"ysa/internal/adapters/storage"
	domain "ysa/internal/domain/roster"
	"ysa/internal/domain/scope"
)

// SQLStore implements Store over the v_athlete_status and v_red_flags views.
type SQLStore struct {
	db      storage.SQLDB
	dialect storage.Dialect
}

// NewSQLStore creates a new roster store.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// ListRoster returns the active athletes of the season with their critical counts.
// The views are keyed by season only.
// POST: Ordered by last name, then first name
func (s *SQLStore) ListRoster(ctx context.Context, sc scope.Scope) ([]domain.Entry, error) {
	q := s.dialect.Builder().
		Select("athlete_id", "last_name", "first_name", "grade", "team_level", "active",
			"critical_total", "critical_complete", "critical_incomplete", "play_status").
		From(s.dialect.Table("v_athlete_status")).
		Where(sq.Eq{"season_id": sc.SeasonID, "active": true}).
		OrderBy("last_name ASC", "first_name ASC")

	rows, err := storage.Query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Entry
	for rows.Next() {
		var e domain.Entry
		var grade, teamLevel, playStatus sql.NullString
		if err := rows.Scan(
			&e.AthleteID,
			&e.LastName,
			&e.FirstName,
			&grade,
			&teamLevel,
			&e.Active,
			&e.CriticalTotal,
			&e.CriticalComplete,
			&e.CriticalIncomplete,
			&playStatus,
		); err != nil {
			return nil, err
		}
		e.Grade = grade.String
		e.TeamLevel = teamLevel.String
		e.PlayStatus = playStatus.String
		results = append(results, e)
	}
	return results, rows.Err()
}

// ListRedFlags returns the critical requirements athletes have not completed.
// POST: Ordered by athletes not complete descending, then requirement name
func (s *SQLStore) ListRedFlags(ctx context.Context, sc scope.Scope) ([]domain.RedFlag, error) {
	q := s.dialect.Builder().
		Select("requirement_id", "requirement_name", "due_date", "athletes_not_complete").
		From(s.dialect.Table("v_red_flags")).
		Where(sq.Eq{"season_id": sc.SeasonID}).
		OrderBy("athletes_not_complete DESC", "requirement_name ASC")

	rows, err := storage.Query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.RedFlag
	for rows.Next() {
		var f domain.RedFlag
		var due sql.NullString
		if err := rows.Scan(&f.RequirementID, &f.RequirementName, &due, &f.AthletesNotComplete); err != nil {
			return nil, err
		}
		f.DueDate = storage.ParseTime(due)
		results = append(results, f)
	}
	return results, rows.Err()
}

// GetAthlete retrieves one athlete of the season.
// PRE: id is non-empty
// POST: Returns the athlete or storage.ErrNotFound
func (s *SQLStore) GetAthlete(ctx context.Context, sc scope.Scope, id string) (domain.Athlete, error) {
	q := s.dialect.Builder().
		Select("id", "org_id", "season_id", "last_name", "first_name", "grade", "team_level", "active").
		From(s.dialect.Table("athlete")).
		Where(sq.Eq{"id": id, "season_id": sc.SeasonID})

	row, err := storage.QueryRow(ctx, s.db, q)
	if err != nil {
		return domain.Athlete{}, err
	}
	var a domain.Athlete
	var grade, teamLevel sql.NullString
	err = row.Scan(&a.ID, &a.OrgID, &a.SeasonID, &a.LastName, &a.FirstName, &grade, &teamLevel, &a.Active)
	if err != nil {
		return domain.Athlete{}, storage.NotFound(err, "athlete")
	}
	a.Grade = grade.String
	a.TeamLevel = teamLevel.String
	return a, nil
}

// SaveAthlete inserts or updates an athlete.
// PRE: a has been validated
// POST: Athlete is persisted
func (s *SQLStore) SaveAthlete(ctx context.Context, a domain.Athlete) error {
	q := s.dialect.Builder().
		Insert(s.dialect.Table("athlete")).
		Columns("id", "org_id", "season_id", "last_name", "first_name", "grade", "team_level", "active").
		Values(a.ID, a.OrgID, a.SeasonID, a.LastName, a.FirstName, nullable(a.Grade), nullable(a.TeamLevel), a.Active).
		Suffix("ON CONFLICT (id) DO UPDATE SET last_name = excluded.last_name, first_name = excluded.first_name, grade = excluded.grade, team_level = excluded.team_level, active = excluded.active")
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
