package projections

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/scope"
)

// GetAdminOverviewQuery carries input for the admin overview.
type GetAdminOverviewQuery struct {
	Scope scope.Scope
}

// GetAdminOverviewDeps holds dependencies for the admin overview.
type GetAdminOverviewDeps struct {
	MemberStore        MemberStore
	AccessRequestStore AccessRequestStore
}

// AdminOverviewResult lists current members and pending access requests.
type AdminOverviewResult struct {
	Members  []orgmember.Member
	Requests []orgmember.AccessRequest
}

// QueryGetAdminOverview loads members and pending requests concurrently.
// Authorization is the caller's responsibility.
// POST: Returns both lists, or the first fetch error and no partial result
func QueryGetAdminOverview(ctx context.Context, query GetAdminOverviewQuery, deps GetAdminOverviewDeps) (AdminOverviewResult, error) {
	var result AdminOverviewResult
	var g errgroup.Group
	g.Go(func() error {
		var err error
		result.Members, err = deps.MemberStore.ListMembers(ctx, query.Scope.OrgID)
		return err
	})
	g.Go(func() error {
		var err error
		result.Requests, err = deps.AccessRequestStore.ListRequests(ctx, query.Scope.OrgID)
		return err
	})
	if err := g.Wait(); err != nil {
		return AdminOverviewResult{}, err
	}
	return result, nil
}
