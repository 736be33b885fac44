package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ysa/internal/adapters/email"
	"ysa/internal/adapters/storage"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/scope"
)

// Access request errors
var (
	// ErrApprovalIncomplete means the member was granted but the request row could not be removed.
	// The member has access; the stale request needs another deny or approve to clear it.
	ErrApprovalIncomplete = errors.New("member was added but the access request could not be removed")
	ErrAlreadyMember      = errors.New("you already have access to this organization")
)

// MemberStoreForApprove defines the membership store interface needed by ApproveAccessRequest.
type MemberStoreForApprove interface {
	UpsertMember(ctx context.Context, m orgmember.Member) error
}

// RequestStoreForApprove defines the request store interface needed by Approve and Deny.
type RequestStoreForApprove interface {
	GetRequest(ctx context.Context, orgID, id string) (orgmember.AccessRequest, error)
	DeleteRequest(ctx context.Context, orgID, id string) error
}

// ApproveAccessRequestInput carries the operator's decision.
type ApproveAccessRequestInput struct {
	Scope     scope.Scope
	RequestID string
	Role      string
	ActorID   string
}

// ApproveAccessRequestDeps holds dependencies for ApproveAccessRequest.
type ApproveAccessRequestDeps struct {
	MemberStore  MemberStoreForApprove
	RequestStore RequestStoreForApprove
	Mailer       email.Sender // optional: nil skips the approval email
	BaseURL      string
	Now          func() time.Time
}

// ExecuteApproveAccessRequest grants membership, then removes the request.
// PRE: Role is valid; the actor is authorized by the caller
// POST: On nil error the member exists and the request is gone. If granting fails the request
// is untouched. If removal fails the error wraps ErrApprovalIncomplete and the member exists.
func ExecuteApproveAccessRequest(ctx context.Context, input ApproveAccessRequestInput, deps ApproveAccessRequestDeps) (orgmember.Member, error) {
	if !orgmember.ValidRole(input.Role) {
		return orgmember.Member{}, orgmember.ErrInvalidRole
	}
	if input.RequestID == "" {
		return orgmember.Member{}, orgmember.ErrEmptyRequest
	}

	req, err := deps.RequestStore.GetRequest(ctx, input.Scope.OrgID, input.RequestID)
	if err != nil {
		return orgmember.Member{}, err
	}
	member, err := req.MemberFor(input.Role, nowFrom(deps.Now))
	if err != nil {
		return orgmember.Member{}, err
	}

	if err := deps.MemberStore.UpsertMember(ctx, member); err != nil {
		return orgmember.Member{}, err
	}
	if err := deps.RequestStore.DeleteRequest(ctx, input.Scope.OrgID, req.ID); err != nil {
		slog.Error("access_event", "event", "approval_incomplete", "request_id", req.ID, "user_id", req.UserID, "error", err)
		return member, fmt.Errorf("%w: %w", ErrApprovalIncomplete, err)
	}

	slog.Info("access_event", "event", "request_approved", "request_id", req.ID, "user_id", req.UserID, "role", input.Role, "actor_id", input.ActorID)

	if deps.Mailer != nil {
		msg, ok, err := email.AccessApproved(member.Email, orgmember.RoleLabel(member.Role), deps.BaseURL)
		if err != nil {
			slog.Error("access_event", "event", "approval_email_failed", "user_id", member.UserID, "error", err)
		} else if ok {
			if _, err := deps.Mailer.Send(ctx, msg); err != nil {
				slog.Warn("access_event", "event", "approval_email_failed", "user_id", member.UserID, "error", err)
			}
		}
	}
	return member, nil
}

// DenyAccessRequestInput carries the operator's decision.
type DenyAccessRequestInput struct {
	Scope     scope.Scope
	RequestID string
	ActorID   string
}

// DenyAccessRequestDeps holds dependencies for DenyAccessRequest.
type DenyAccessRequestDeps struct {
	RequestStore RequestStoreForApprove
}

// ExecuteDenyAccessRequest removes the request without creating a member.
// POST: The request no longer exists; denying an already-removed request succeeds
func ExecuteDenyAccessRequest(ctx context.Context, input DenyAccessRequestInput, deps DenyAccessRequestDeps) error {
	if input.RequestID == "" {
		return orgmember.ErrEmptyRequest
	}
	if err := deps.RequestStore.DeleteRequest(ctx, input.Scope.OrgID, input.RequestID); err != nil {
		return err
	}
	slog.Info("access_event", "event", "request_denied", "request_id", input.RequestID, "actor_id", input.ActorID)
	return nil
}

// MemberStoreForRequest defines the membership store interface needed by RequestAccess.
type MemberStoreForRequest interface {
	GetMember(ctx context.Context, orgID, userID string) (orgmember.Member, error)
	ListMembers(ctx context.Context, orgID string) ([]orgmember.Member, error)
}

// RequestStoreForRequest defines the request store interface needed by RequestAccess.
type RequestStoreForRequest interface {
	GetRequestByUser(ctx context.Context, orgID, userID string) (orgmember.AccessRequest, error)
	CreateRequest(ctx context.Context, r orgmember.AccessRequest) error
}

// RequestAccessInput identifies the signed-in non-member.
type RequestAccessInput struct {
	Scope  scope.Scope
	UserID string
	Email  string
}

// RequestAccessDeps holds dependencies for RequestAccess.
type RequestAccessDeps struct {
	MemberStore  MemberStoreForRequest
	RequestStore RequestStoreForRequest
	Mailer       email.Sender // optional: nil skips the admin notification
	BaseURL      string
	Now          func() time.Time
	GenerateID   func() string
}

// ExecuteRequestAccess records a pending access request for the viewer.
// PRE: UserID is non-empty
// POST: Exactly one pending request exists for the user; admins are notified when it is new
func ExecuteRequestAccess(ctx context.Context, input RequestAccessInput, deps RequestAccessDeps) (orgmember.AccessRequest, error) {
	if input.UserID == "" {
		return orgmember.AccessRequest{}, orgmember.ErrEmptyUserID
	}

	_, err := deps.MemberStore.GetMember(ctx, input.Scope.OrgID, input.UserID)
	if err == nil {
		return orgmember.AccessRequest{}, ErrAlreadyMember
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return orgmember.AccessRequest{}, err
	}

	existing, err := deps.RequestStore.GetRequestByUser(ctx, input.Scope.OrgID, input.UserID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return orgmember.AccessRequest{}, err
	}

	genID := deps.GenerateID
	if genID == nil {
		genID = uuid.NewString
	}
	req := orgmember.AccessRequest{
		ID:        genID(),
		OrgID:     input.Scope.OrgID,
		UserID:    input.UserID,
		Email:     input.Email,
		CreatedAt: nowFrom(deps.Now),
	}
	if err := req.Validate(); err != nil {
		return orgmember.AccessRequest{}, err
	}
	if err := deps.RequestStore.CreateRequest(ctx, req); err != nil {
		return orgmember.AccessRequest{}, err
	}
	slog.Info("access_event", "event", "request_created", "request_id", req.ID, "user_id", req.UserID)

	if deps.Mailer != nil {
		notifyAdmins(ctx, req, deps)
	}
	return req, nil
}

// notifyAdmins emails every admin-capable member with an address. Failures are logged only.
func notifyAdmins(ctx context.Context, req orgmember.AccessRequest, deps RequestAccessDeps) {
	members, err := deps.MemberStore.ListMembers(ctx, req.OrgID)
	if err != nil {
		slog.Warn("access_event", "event", "notify_lookup_failed", "error", err)
		return
	}
	var admins []string
	for _, m := range members {
		if m.CanAdminister() && m.Email != "" {
			admins = append(admins, m.Email)
		}
	}
	msg, ok, err := email.AccessRequested(admins, req.Email, req.CreatedAt, deps.BaseURL)
	if err != nil {
		slog.Error("access_event", "event", "notify_failed", "request_id", req.ID, "error", err)
		return
	}
	if !ok {
		return
	}
	if _, err := deps.Mailer.Send(ctx, msg); err != nil {
		slog.Warn("access_event", "event", "notify_failed", "request_id", req.ID, "error", err)
	}
}
