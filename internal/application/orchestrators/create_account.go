package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ysa/internal/adapters/storage"
	"ysa/internal/domain/account"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/scope"
)

// AccountStoreForCreate defines the store interface needed by CreateAccount.
type AccountStoreForCreate interface {
	GetByEmail(ctx context.Context, email string) (account.Account, error)
	Save(ctx context.Context, a account.Account) error
}

// CreateAccountInput carries input for the orchestrator.
type CreateAccountInput struct {
	Email    string
	Password string
}

// CreateAccountDeps holds dependencies for CreateAccount.
type CreateAccountDeps struct {
	AccountStore AccountStoreForCreate
	Now          func() time.Time
}

var ErrEmailAlreadyExists = errors.New("an account with this email already exists")

// ExecuteCreateAccount registers a sign-in identity. It grants no organization access.
// PRE: Valid email, password >= 12 chars
// POST: Account created with hashed password; returns its id
// INVARIANT: Email must be unique
func ExecuteCreateAccount(ctx context.Context, input CreateAccountInput, deps CreateAccountDeps) (string, error) {
	acct := account.Account{
		ID:        uuid.New().String(),
		Email:     account.NormalizeEmail(input.Email),
		CreatedAt: nowFrom(deps.Now),
	}
	if err := acct.Validate(); err != nil {
		return "", err
	}

	_, err := deps.AccountStore.GetByEmail(ctx, acct.Email)
	if err == nil {
		return "", ErrEmailAlreadyExists
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", err
	}

	if err := acct.SetPassword(input.Password); err != nil {
		return "", err
	}
	if err := deps.AccountStore.Save(ctx, acct); err != nil {
		return "", err
	}

	slog.Info("auth_event", "event", "account_created", "account_id", acct.ID)
	return acct.ID, nil
}

// MemberStoreForBootstrap defines the membership store interface needed by BootstrapAdmin.
type MemberStoreForBootstrap interface {
	UpsertMember(ctx context.Context, m orgmember.Member) error
}

// BootstrapAdminInput carries the first administrator's credentials.
type BootstrapAdminInput struct {
	Scope    scope.Scope
	Email    string
	Password string
	Role     string // admin or president; defaults to president
}

// BootstrapAdminDeps holds dependencies for BootstrapAdmin.
type BootstrapAdminDeps struct {
	AccountStore AccountStoreForCreate
	MemberStore  MemberStoreForBootstrap
	Now          func() time.Time
}

// ExecuteBootstrapAdmin makes sure an administrator can sign in.
// An existing account keeps its password and is granted the role.
// PRE: Role, when set, grants admin access
// POST: The account exists and is a member with an admin-capable role; returns its id
func ExecuteBootstrapAdmin(ctx context.Context, input BootstrapAdminInput, deps BootstrapAdminDeps) (string, error) {
	role := input.Role
	if role == "" {
		role = orgmember.RolePresident
	}
	if !orgmember.CanAdminister(role) {
		return "", orgmember.ErrInvalidRole
	}

	email := account.NormalizeEmail(input.Email)
	var accountID string
	existing, err := deps.AccountStore.GetByEmail(ctx, email)
	switch {
	case err == nil:
		accountID = existing.ID
	case errors.Is(err, storage.ErrNotFound):
		accountID, err = ExecuteCreateAccount(ctx, CreateAccountInput{Email: email, Password: input.Password},
			CreateAccountDeps{AccountStore: deps.AccountStore, Now: deps.Now})
		if err != nil {
			return "", err
		}
	default:
		return "", err
	}

	member := orgmember.Member{
		OrgID:     input.Scope.OrgID,
		UserID:    accountID,
		Role:      role,
		Email:     email,
		CreatedAt: nowFrom(deps.Now),
	}
	if err := member.Validate(); err != nil {
		return "", err
	}
	if err := deps.MemberStore.UpsertMember(ctx, member); err != nil {
		return "", err
	}

	slog.Info("auth_event", "event", "admin_bootstrapped", "account_id", accountID, "role", role)
	return accountID, nil
}
