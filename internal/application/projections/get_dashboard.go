package projections

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ysa/internal/domain/roster"
	"ysa/internal/domain/scope"
)

// GetDashboardQuery carries input for the dashboard projection.
type GetDashboardQuery struct {
	Scope scope.Scope
}

// GetDashboardDeps holds dependencies for the dashboard projection.
type GetDashboardDeps struct {
	RosterStore RosterStore
}

// QueryGetDashboard loads the active roster and red flags and aggregates the totals.
// PRE: query.Scope is complete
// POST: Returns the dashboard, or the first fetch error and no partial result
// INVARIANT: Roster and red flag order are the store's; nothing is re-sorted
func QueryGetDashboard(ctx context.Context, query GetDashboardQuery, deps GetDashboardDeps) (roster.Dashboard, error) {
	if err := query.Scope.Validate(); err != nil {
		return roster.Dashboard{}, err
	}

	var (
		entries  []roster.Entry
		redFlags []roster.RedFlag
	)
	// Independent reads; both are awaited before either result is used.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		entries, err = deps.RosterStore.ListRoster(ctx, query.Scope)
		return err
	})
	g.Go(func() error {
		var err error
		redFlags, err = deps.RosterStore.ListRedFlags(ctx, query.Scope)
		return err
	})
	if err := g.Wait(); err != nil {
		return roster.Dashboard{}, err
	}

	return roster.BuildDashboard(entries, redFlags), nil
}
