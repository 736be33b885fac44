package orgmember

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"ysa/internal/adapters/storage"
	domain "ysa/internal/domain/orgmember"
)

var (
	memberColumns  = []string{"org_id", "user_id", "role", "email", "created_at"}
	requestColumns = []string{"id", "org_id", "user_id", "email", "created_at"}
)

// SQLStore implements Store over either backend dialect.
type SQLStore struct {
	db      storage.SQLDB
	dialect storage.Dialect
}

// NewSQLStore creates a new membership store.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// GetMember retrieves one membership.
// POST: Returns the member or storage.ErrNotFound for a non-member
func (s *SQLStore) GetMember(ctx context.Context, orgID, userID string) (domain.Member, error) {
	q := s.dialect.Builder().
		Select(memberColumns...).
		From(s.dialect.Table("org_member")).
		Where(sq.Eq{"org_id": orgID, "user_id": userID})
	row, err := storage.QueryRow(ctx, s.db, q)
	if err != nil {
		return domain.Member{}, err
	}
	m, err := scanMember(row.Scan)
	return m, storage.NotFound(err, "member")
}

// ListMembers returns the organization's members, newest first.
func (s *SQLStore) ListMembers(ctx context.Context, orgID string) ([]domain.Member, error) {
	q := s.dialect.Builder().
		Select(memberColumns...).
		From(s.dialect.Table("org_member")).
		Where(sq.Eq{"org_id": orgID}).
		OrderBy("created_at DESC", "user_id ASC")
	rows, err := storage.Query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.Member
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

// UpsertMember inserts or updates the membership keyed by (org, user).
// Safe to retry.
// PRE: m has been validated
func (s *SQLStore) UpsertMember(ctx context.Context, m domain.Member) error {
	q := s.dialect.Builder().
		Insert(s.dialect.Table("org_member")).
		Columns(memberColumns...).
		Values(m.OrgID, m.UserID, m.Role, nullable(m.Email), storage.FormatTime(m.CreatedAt)).
		Suffix("ON CONFLICT (org_id, user_id) DO UPDATE SET role = excluded.role, email = excluded.email")
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

// UpdateRole sets the role of an existing member. Updating a non-member is a no-op.
// PRE: role is valid
func (s *SQLStore) UpdateRole(ctx context.Context, orgID, userID, role string) error {
	q := s.dialect.Builder().
		Update(s.dialect.Table("org_member")).
		Set("role", role).
		Where(sq.Eq{"org_id": orgID, "user_id": userID})
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

// DeleteMember removes a membership. Removing a non-member is a no-op.
func (s *SQLStore) DeleteMember(ctx context.Context, orgID, userID string) error {
	q := s.dialect.Builder().
		Delete(s.dialect.Table("org_member")).
		Where(sq.Eq{"org_id": orgID, "user_id": userID})
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

// ListRequests returns the organization's pending access requests, newest first.
func (s *SQLStore) ListRequests(ctx context.Context, orgID string) ([]domain.AccessRequest, error) {
	q := s.dialect.Builder().
		Select(requestColumns...).
		From(s.dialect.Table("access_request")).
		Where(sq.Eq{"org_id": orgID}).
		OrderBy("created_at DESC", "id ASC")
	rows, err := storage.Query(ctx, s.db, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.AccessRequest
	for rows.Next() {
		r, err := scanRequest(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// GetRequest retrieves one pending request by id.
func (s *SQLStore) GetRequest(ctx context.Context, orgID, id string) (domain.AccessRequest, error) {
	return s.getRequest(ctx, sq.Eq{"org_id": orgID, "id": id})
}

// GetRequestByUser retrieves the user's pending request, if any.
func (s *SQLStore) GetRequestByUser(ctx context.Context, orgID, userID string) (domain.AccessRequest, error) {
	return s.getRequest(ctx, sq.Eq{"org_id": orgID, "user_id": userID})
}

func (s *SQLStore) getRequest(ctx context.Context, where sq.Eq) (domain.AccessRequest, error) {
	q := s.dialect.Builder().
		Select(requestColumns...).
		From(s.dialect.Table("access_request")).
		Where(where)
	row, err := storage.QueryRow(ctx, s.db, q)
	if err != nil {
		return domain.AccessRequest{}, err
	}
	r, err := scanRequest(row.Scan)
	return r, storage.NotFound(err, "access request")
}

// CreateRequest records an access request. A second request from the same user is ignored.
// PRE: r has been validated
func (s *SQLStore) CreateRequest(ctx context.Context, r domain.AccessRequest) error {
	q := s.dialect.Builder().
		Insert(s.dialect.Table("access_request")).
		Columns(requestColumns...).
		Values(r.ID, r.OrgID, r.UserID, nullable(r.Email), storage.FormatTime(r.CreatedAt)).
		Suffix("ON CONFLICT (org_id, user_id) DO NOTHING")
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

// DeleteRequest removes a pending request by id. Deleting a missing request is a no-op.
func (s *SQLStore) DeleteRequest(ctx context.Context, orgID, id string) error {
	q := s.dialect.Builder().
		Delete(s.dialect.Table("access_request")).
		Where(sq.Eq{"org_id": orgID, "id": id})
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

func scanMember(scan func(dest ...any) error) (domain.Member, error) {
	var m domain.Member
	var email, createdAt sql.NullString
	if err := scan(&m.OrgID, &m.UserID, &m.Role, &email, &createdAt); err != nil {
		return domain.Member{}, err
	}
	m.Email = email.String
	m.CreatedAt = storage.TimeOrZero(createdAt)
	return m, nil
}

func scanRequest(scan func(dest ...any) error) (domain.AccessRequest, error) {
	var r domain.AccessRequest
	var email, createdAt sql.NullString
	if err := scan(&r.ID, &r.OrgID, &r.UserID, &email, &createdAt); err != nil {
		return domain.AccessRequest{}, err
	}
	r.Email = email.String
	r.CreatedAt = storage.TimeOrZero(createdAt)
	return r, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
