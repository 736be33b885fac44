package app

import (
	"context"
	"errors"
	"log/slog"

	"ysa/internal/application/projections"
	"ysa/internal/domain/requirement"
	"ysa/internal/domain/route"
	"ysa/internal/domain/scope"
)

// Authorization errors returned by Authorize.
var (
	ErrNotSignedIn = errors.New("sign in to continue")
	ErrNotMember   = errors.New("you are not a member of this organization")
	ErrForbidden   = errors.New("you do not have permission to manage board access")
)

// forbiddenMessage is shown in place of the admin view to members without admin rights.
const forbiddenMessage = "Only admins and the president can open the admin page."

// Stores holds the read-side stores the controller queries.
type Stores struct {
	Roster       projections.RosterStore
	Athletes     projections.AthleteStore
	Requirements projections.RequirementStore
	Members      projections.MemberStore
	Requests     projections.AccessRequestStore
}

// Controller builds pages for viewers. It holds no per-render state and is safe for
// concurrent use; serializing renders is the caller's concern.
type Controller struct {
	scope   scope.Scope
	stores  Stores
	filters *FilterPrefs
}

// NewController creates a controller pinned to one organization and season.
// PRE: sc is complete
func NewController(sc scope.Scope, stores Stores, filters *FilterPrefs) *Controller {
	if filters == nil {
		filters = NewFilterPrefs()
	}
	return &Controller{scope: sc, stores: stores, filters: filters}
}

// Scope returns the controller's organization and season.
func (c *Controller) Scope() scope.Scope {
	return c.scope
}

// Filters returns the session filter preferences.
func (c *Controller) Filters() *FilterPrefs {
	return c.filters
}

// Build rebuilds the whole page for a viewer and navigation token from current state.
// POST: Never returns a partial page. Any query failure yields a KindError page carrying
// the failure text verbatim; a non-admin on the admin route gets KindForbidden in place.
func (c *Controller) Build(ctx context.Context, v Viewer, token string) Page {
	r := route.Parse(token)
	page := Page{Route: r, Viewer: v}
	if !v.SignedIn() {
		page.Kind = KindLogin
		return page
	}

	membership, err := projections.QueryGetMembership(ctx,
		projections.GetMembershipQuery{Scope: c.scope, UserID: v.AccountID},
		projections.GetMembershipDeps{MemberStore: c.stores.Members})
	if err != nil {
		return c.failed(page, err)
	}

	if !membership.IsMember {
		pending, err := projections.QueryGetPendingRequest(ctx,
			projections.GetPendingRequestQuery{Scope: c.scope, UserID: v.AccountID},
			projections.GetPendingRequestDeps{AccessRequestStore: c.stores.Requests})
		if err != nil {
			return c.failed(page, err)
		}
		page.Kind = KindAccessRequest
		page.PendingRequest = pending
		return page
	}

	page.Member = membership.Member
	page.IsAdmin = membership.CanAdminister()

	switch r.Name {
	case route.Admin:
		if !page.IsAdmin {
			page.Kind = KindForbidden
			page.Message = forbiddenMessage
			return page
		}
		overview, err := projections.QueryGetAdminOverview(ctx,
			projections.GetAdminOverviewQuery{Scope: c.scope},
			projections.GetAdminOverviewDeps{MemberStore: c.stores.Members, AccessRequestStore: c.stores.Requests})
		if err != nil {
			return c.failed(page, err)
		}
		page.Kind = KindAdmin
		page.Admin = overview

	case route.Athlete:
		result, err := projections.QueryGetAthleteChecklist(ctx,
			projections.GetAthleteChecklistQuery{Scope: c.scope, AthleteID: r.AthleteID},
			projections.GetAthleteChecklistDeps{AthleteStore: c.stores.Athletes, RequirementStore: c.stores.Requirements})
		if err != nil {
			return c.failed(page, err)
		}
		filter := c.filters.Get(v.SessionID, r.AthleteID)
		page.Kind = KindChecklist
		page.Checklist = ChecklistView{
			Athlete: result.Athlete,
			Items:   requirement.FilterItems(result.Items, filter),
			Summary: result.Summary,
			Total:   len(result.Items),
			Filter:  filter,
		}

	default:
		dash, err := projections.QueryGetDashboard(ctx,
			projections.GetDashboardQuery{Scope: c.scope},
			projections.GetDashboardDeps{RosterStore: c.stores.Roster})
		if err != nil {
			return c.failed(page, err)
		}
		page.Kind = KindDashboard
		page.Dashboard = dash
	}
	return page
}

// failed replaces whatever was being built with an error page.
func (c *Controller) failed(page Page, err error) Page {
	slog.Error("render_failed", "route", page.Route.Token(), "account_id", page.Viewer.AccountID, "error", err)
	return Page{
		Kind:    KindError,
		Route:   page.Route,
		Viewer:  page.Viewer,
		Member:  page.Member,
		IsAdmin: page.IsAdmin,
		Message: err.Error(),
	}
}

// Authorize checks the viewer may perform a mutation.
// POST: Returns the viewer's membership, or ErrNotSignedIn, ErrNotMember or (when
// requireAdmin is set) ErrForbidden. Lookup failures are returned unchanged.
func (c *Controller) Authorize(ctx context.Context, v Viewer, requireAdmin bool) (projections.MembershipResult, error) {
	if !v.SignedIn() {
		return projections.MembershipResult{}, ErrNotSignedIn
	}
	membership, err := projections.QueryGetMembership(ctx,
		projections.GetMembershipQuery{Scope: c.scope, UserID: v.AccountID},
		projections.GetMembershipDeps{MemberStore: c.stores.Members})
	if err != nil {
		return projections.MembershipResult{}, err
	}
	if !membership.IsMember {
		return membership, ErrNotMember
	}
	if requireAdmin && !membership.CanAdminister() {
		return membership, ErrForbidden
	}
	return membership, nil
}

// PreservedValues returns the evidence values currently stored for one checklist row, so a
// status save can write them back unchanged. A row that does not exist yet has no values.
func (c *Controller) PreservedValues(ctx context.Context, athleteID, requirementID string) (requirement.Values, error) {
	statuses, err := c.stores.Requirements.ListStatuses(ctx, c.scope, athleteID)
	if err != nil {
		return requirement.Values{}, err
	}
	var values requirement.Values
	for _, s := range statuses {
		if s.RequirementID == requirementID {
			values = s.Values
		}
	}
	return values, nil
}
