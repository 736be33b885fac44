package projections

import (
	"context"

	domainOrgMember "ysa/internal/domain/orgmember"
	domainRequirement "ysa/internal/domain/requirement"
	domainRoster "ysa/internal/domain/roster"
	"ysa/internal/domain/scope"
)

// RosterStore interface for roster and red flag queries.
type RosterStore interface {
	ListRoster(ctx context.Context, s scope.Scope) ([]domainRoster.Entry, error)
	ListRedFlags(ctx context.Context, s scope.Scope) ([]domainRoster.RedFlag, error)
}

// AthleteStore interface for single-athlete lookups.
type AthleteStore interface {
	GetAthlete(ctx context.Context, s scope.Scope, id string) (domainRoster.Athlete, error)
}

// RequirementStore interface for requirement and status queries.
type RequirementStore interface {
	ListRequirements(ctx context.Context, s scope.Scope) ([]domainRequirement.Requirement, error)
	ListStatuses(ctx context.Context, s scope.Scope, athleteID string) ([]domainRequirement.StatusRecord, error)
}

// MemberStore interface for membership queries.
type MemberStore interface {
	GetMember(ctx context.Context, orgID, userID string) (domainOrgMember.Member, error)
	ListMembers(ctx context.Context, orgID string) ([]domainOrgMember.Member, error)
}

// AccessRequestStore interface for access request queries.
type AccessRequestStore interface {
	ListRequests(ctx context.Context, orgID string) ([]domainOrgMember.AccessRequest, error)
	GetRequestByUser(ctx context.Context, orgID, userID string) (domainOrgMember.AccessRequest, error)
}
