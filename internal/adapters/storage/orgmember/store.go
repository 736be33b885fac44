package orgmember

import (
	"context"

	domain "ysa/internal/domain/orgmember"
)

// Store persists organization memberships and pending access requests.
type Store interface {
	GetMember(ctx context.Context, orgID, userID string) (domain.Member, error)
	ListMembers(ctx context.Context, orgID string) ([]domain.Member, error)
	UpsertMember(ctx context.Context, m domain.Member) error
	UpdateRole(ctx context.Context, orgID, userID, role string) error
	DeleteMember(ctx context.Context, orgID, userID string) error

	ListRequests(ctx context.Context, orgID string) ([]domain.AccessRequest, error)
	GetRequest(ctx context.Context, orgID, id string) (domain.AccessRequest, error)
	GetRequestByUser(ctx context.Context, orgID, userID string) (domain.AccessRequest, error)
	CreateRequest(ctx context.Context, r domain.AccessRequest) error
	DeleteRequest(ctx context.Context, orgID, id string) error
}
