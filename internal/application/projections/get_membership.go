package projections

import (
	"context"
	"errors"

	"ysa/internal/adapters/storage"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/scope"
)

// GetMembershipQuery carries input for the membership lookup.
type GetMembershipQuery struct {
	Scope  scope.Scope
	UserID string
}

// GetMembershipDeps holds dependencies for the membership lookup.
type GetMembershipDeps struct {
	MemberStore MemberStore
}

// MembershipResult reports whether the user belongs to the organization.
type MembershipResult struct {
	IsMember bool
	Member   orgmember.Member
}

// CanAdminister reports whether the membership grants the admin view.
func (r MembershipResult) CanAdminister() bool {
	return r.IsMember && r.Member.CanAdminister()
}

// QueryGetMembership resolves the viewer's membership.
// PRE: query.UserID is non-empty
// POST: A missing row is a non-member result, not an error
func QueryGetMembership(ctx context.Context, query GetMembershipQuery, deps GetMembershipDeps) (MembershipResult, error) {
	if query.UserID == "" {
		return MembershipResult{}, orgmember.ErrEmptyUserID
	}
	m, err := deps.MemberStore.GetMember(ctx, query.Scope.OrgID, query.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return MembershipResult{}, nil
	}
	if err != nil {
		return MembershipResult{}, err
	}
	return MembershipResult{IsMember: true, Member: m}, nil
}
