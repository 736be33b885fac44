package projections

import (
	"context"

	"golang.org/x/sync/errgroup"

	"ysa/internal/domain/requirement"
	"ysa/internal/domain/roster"
	"ysa/internal/domain/scope"
)

// GetAthleteChecklistQuery carries input for the checklist projection.
type GetAthleteChecklistQuery struct {
	Scope     scope.Scope
	AthleteID string
}

// GetAthleteChecklistDeps holds dependencies for the checklist projection.
type GetAthleteChecklistDeps struct {
	AthleteStore     AthleteStore
	RequirementStore RequirementStore
}

// AthleteChecklistResult is one athlete's full checklist with its derived counts.
type AthleteChecklistResult struct {
	Athlete roster.Athlete
	Items   []requirement.ChecklistItem
	Summary requirement.Summary
}

// QueryGetAthleteChecklist joins the season's requirements with one athlete's status rows.
// PRE: query.AthleteID is non-empty
// POST: len(Items) equals the number of season requirements; order is the store's requirement order
func QueryGetAthleteChecklist(ctx context.Context, query GetAthleteChecklistQuery, deps GetAthleteChecklistDeps) (AthleteChecklistResult, error) {
	if err := query.Scope.Validate(); err != nil {
		return AthleteChecklistResult{}, err
	}
	if query.AthleteID == "" {
		return AthleteChecklistResult{}, requirement.ErrEmptyAthleteID
	}

	var (
		athlete      roster.Athlete
		requirements []requirement.Requirement
		statuses     []requirement.StatusRecord
	)
	var g errgroup.Group
	g.Go(func() error {
		var err error
		athlete, err = deps.AthleteStore.GetAthlete(ctx, query.Scope, query.AthleteID)
		return err
	})
	g.Go(func() error {
		var err error
		requirements, err = deps.RequirementStore.ListRequirements(ctx, query.Scope)
		return err
	})
	g.Go(func() error {
		var err error
		statuses, err = deps.RequirementStore.ListStatuses(ctx, query.Scope, query.AthleteID)
		return err
	})
	if err := g.Wait(); err != nil {
		return AthleteChecklistResult{}, err
	}

	items := requirement.BuildChecklist(requirements, statuses)
	return AthleteChecklistResult{
		Athlete: athlete,
		Items:   items,
		Summary: requirement.Summarize(items),
	}, nil
}
