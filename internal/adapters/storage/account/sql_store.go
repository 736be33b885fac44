package account

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"

	"ysa/internal/adapters/storage"
	domain "ysa/internal/domain/account"
)

var accountColumns = []string{"id", "email", "password_hash", "created_at", "failed_logins", "locked_until"}

// SQLStore implements Store over either backend dialect.
type SQLStore struct {
	db      storage.SQLDB
	dialect storage.Dialect
}

// NewSQLStore creates a new account store.
func NewSQLStore(db storage.SQLDB, dialect storage.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

func (s *SQLStore) selectAccounts() sq.SelectBuilder {
	return s.dialect.Builder().Select(accountColumns...).From(s.dialect.Table("account"))
}

// GetByID retrieves an Account by its ID.
// PRE: id is non-empty
// POST: Returns the entity or storage.ErrNotFound
func (s *SQLStore) GetByID(ctx context.Context, id string) (domain.Account, error) {
	row, err := storage.QueryRow(ctx, s.db, s.selectAccounts().Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Account{}, err
	}
	entity, err := scanAccount(row.Scan)
	return entity, storage.NotFound(err, "account")
}

// GetByEmail retrieves an Account by normalized email.
// PRE: email is non-empty
// POST: Returns the entity or storage.ErrNotFound
func (s *SQLStore) GetByEmail(ctx context.Context, email string) (domain.Account, error) {
	row, err := storage.QueryRow(ctx, s.db, s.selectAccounts().Where(sq.Eq{"email": domain.NormalizeEmail(email)}))
	if err != nil {
		return domain.Account{}, err
	}
	entity, err := scanAccount(row.Scan)
	return entity, storage.NotFound(err, "account")
}

// Save persists an Account (insert or update).
// PRE: entity has been validated
// POST: Entity is persisted
func (s *SQLStore) Save(ctx context.Context, entity domain.Account) error {
	var lockedUntil any
	if !entity.LockedUntil.IsZero() {
		lockedUntil = storage.FormatTime(entity.LockedUntil)
	}
	q := s.dialect.Builder().
		Insert(s.dialect.Table("account")).
		Columns(accountColumns...).
		Values(
			entity.ID,
			domain.NormalizeEmail(entity.Email),
			entity.PasswordHash,
			storage.FormatTime(entity.CreatedAt),
			entity.FailedLogins,
			lockedUntil,
		).
		Suffix("ON CONFLICT (id) DO UPDATE SET email = excluded.email, password_hash = excluded.password_hash, failed_logins = excluded.failed_logins, locked_until = excluded.locked_until")
	_, err := storage.Exec(ctx, s.db, q)
	return err
}

// Count returns the total number of accounts.
func (s *SQLStore) Count(ctx context.Context) (int, error) {
	row, err := storage.QueryRow(ctx, s.db, s.dialect.Builder().Select("COUNT(*)").From(s.dialect.Table("account")))
	if err != nil {
		return 0, err
	}
	var count int
	err = row.Scan(&count)
	return count, err
}

// scanAccount extracts an Account from a row scanner function.
func scanAccount(scan func(dest ...any) error) (domain.Account, error) {
	var entity domain.Account
	var createdAt, lockedUntil sql.NullString
	err := scan(
		&entity.ID,
		&entity.Email,
		&entity.PasswordHash,
		&createdAt,
		&entity.FailedLogins,
		&lockedUntil,
	)
	if err != nil {
		return domain.Account{}, err
	}
	entity.CreatedAt = storage.TimeOrZero(createdAt)
	entity.LockedUntil = storage.TimeOrZero(lockedUntil)
	return entity, nil
}
