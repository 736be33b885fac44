package orchestrators

import (
	"context"
	"errors"
	"log/slog"

	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/scope"
)

// Membership management errors
var (
	ErrSelfDemotion = errors.New("you cannot remove your own admin access")
	ErrSelfRemoval  = errors.New("you cannot remove yourself from the organization")
)

// MemberStoreForManage defines the store interface needed by ChangeMemberRole and RemoveMember.
type MemberStoreForManage interface {
	UpdateRole(ctx context.Context, orgID, userID, role string) error
	DeleteMember(ctx context.Context, orgID, userID string) error
}

// ChangeMemberRoleInput carries a role change.
type ChangeMemberRoleInput struct {
	Scope   scope.Scope
	ActorID string
	UserID  string
	Role    string
}

// ManageMembersDeps holds dependencies for ChangeMemberRole and RemoveMember.
type ManageMembersDeps struct {
	MemberStore MemberStoreForManage
}

// ExecuteChangeMemberRole sets a member's role.
// PRE: Role is valid; the actor is authorized by the caller
// POST: The member holds the role; the actor never loses admin access through this call
func ExecuteChangeMemberRole(ctx context.Context, input ChangeMemberRoleInput, deps ManageMembersDeps) error {
	if input.UserID == "" {
		return orgmember.ErrEmptyUserID
	}
	if !orgmember.ValidRole(input.Role) {
		return orgmember.ErrInvalidRole
	}
	if input.UserID == input.ActorID && !orgmember.CanAdminister(input.Role) {
		return ErrSelfDemotion
	}
	if err := deps.MemberStore.UpdateRole(ctx, input.Scope.OrgID, input.UserID, input.Role); err != nil {
		return err
	}
	slog.Info("access_event", "event", "role_changed", "user_id", input.UserID, "role", input.Role, "actor_id", input.ActorID)
	return nil
}

// RemoveMemberInput identifies the member to remove.
type RemoveMemberInput struct {
	Scope   scope.Scope
	ActorID string
	UserID  string
}

// ExecuteRemoveMember deletes a membership.
// POST: The user is no longer a member; removing a non-member succeeds
func ExecuteRemoveMember(ctx context.Context, input RemoveMemberInput, deps ManageMembersDeps) error {
	if input.UserID == "" {
		return orgmember.ErrEmptyUserID
	}
	if input.UserID == input.ActorID {
		return ErrSelfRemoval
	}
	if err := deps.MemberStore.DeleteMember(ctx, input.Scope.OrgID, input.UserID); err != nil {
		return err
	}
	slog.Info("access_event", "event", "member_removed", "user_id", input.UserID, "actor_id", input.ActorID)
	return nil
}
