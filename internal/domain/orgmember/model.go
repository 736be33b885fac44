package orgmember

import (
	"errors"
	"strings"
	"time"
)

// Role constants
const (
	RoleStaff                = "staff"
	RoleCoach                = "coach"
	RoleUniformManager       = "uniform_manager"
	RoleVolunteerCoordinator = "volunteer_coordinator"
	RoleTreasurer            = "treasurer"
	RoleAdmin                = "admin"
	RolePresident            = "president"
)

// ValidRoles contains all valid role values, in display order.
var ValidRoles = []string{
	RoleStaff,
	RoleCoach,
	RoleUniformManager,
	RoleVolunteerCoordinator,
	RoleTreasurer,
	RoleAdmin,
	RolePresident,
}

// RequestState is the lifecycle position of an access request.
// pending -> approved (member created, request gone) or denied (request gone, no member).
type RequestState string

// Request states
const (
	RequestPending  RequestState = "pending"
	RequestApproved RequestState = "approved"
	RequestDenied   RequestState = "denied"
)

// Domain errors
var (
	ErrInvalidRole  = errors.New("role must be one of: staff, coach, uniform_manager, volunteer_coordinator, treasurer, admin, president")
	ErrEmptyUserID  = errors.New("user id cannot be empty")
	ErrEmptyOrgID   = errors.New("org id cannot be empty")
	ErrEmptyRequest = errors.New("access request id cannot be empty")
)

// Member is a user's membership in the organization.
type Member struct {
	OrgID     string
	UserID    string
	Role      string
	Email     string
	CreatedAt time.Time
}

// AccessRequest is an authenticated non-member asking to join the organization.
type AccessRequest struct {
	ID        string
	OrgID     string
	UserID    string
	Email     string
	CreatedAt time.Time
}

// Validate checks the membership can be stored.
// INVARIANT: Member fields are not mutated
func (m *Member) Validate() error {
	if strings.TrimSpace(m.OrgID) == "" {
		return ErrEmptyOrgID
	}
	if strings.TrimSpace(m.UserID) == "" {
		return ErrEmptyUserID
	}
	if !ValidRole(m.Role) {
		return ErrInvalidRole
	}
	return nil
}

// CanAdminister reports whether the member may use the admin view.
func (m *Member) CanAdminister() bool {
	return CanAdminister(m.Role)
}

// Validate checks the request can be stored.
// INVARIANT: AccessRequest fields are not mutated
func (r *AccessRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyRequest
	}
	if strings.TrimSpace(r.OrgID) == "" {
		return ErrEmptyOrgID
	}
	if strings.TrimSpace(r.UserID) == "" {
		return ErrEmptyUserID
	}
	return nil
}

// MemberFor builds the membership an approval of this request creates.
// PRE: role is valid
// POST: Returned member carries the request's org, user and email
func (r *AccessRequest) MemberFor(role string, now time.Time) (Member, error) {
	m := Member{
		OrgID:     r.OrgID,
		UserID:    r.UserID,
		Role:      role,
		Email:     r.Email,
		CreatedAt: now,
	}
	if err := m.Validate(); err != nil {
		return Member{}, err
	}
	return m, nil
}

// ValidRole reports whether role is in the closed role set.
func ValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}

// CanAdminister reports whether role grants the admin view. Only admin and president do.
func CanAdminister(role string) bool {
	return role == RoleAdmin || role == RolePresident
}

// RoleLabel returns a human readable role name.
func RoleLabel(role string) string {
	return strings.ReplaceAll(role, "_", " ")
}
