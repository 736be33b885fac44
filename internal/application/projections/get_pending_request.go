package projections

import (
	"context"
	"errors"

	"ysa/internal/adapters/storage"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/scope"
)

// GetPendingRequestQuery carries input for the viewer's own access request lookup.
type GetPendingRequestQuery struct {
	Scope  scope.Scope
	UserID string
}

// GetPendingRequestDeps holds dependencies for the pending request lookup.
type GetPendingRequestDeps struct {
	AccessRequestStore AccessRequestStore
}

// QueryGetPendingRequest returns the viewer's pending request, or nil when there is none.
func QueryGetPendingRequest(ctx context.Context, query GetPendingRequestQuery, deps GetPendingRequestDeps) (*orgmember.AccessRequest, error) {
	r, err := deps.AccessRequestStore.GetRequestByUser(ctx, query.Scope.OrgID, query.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}
