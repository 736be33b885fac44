package orchestrators

import (
	"context"
	"log/slog"
	"time"

	"ysa/internal/domain/requirement"
	"ysa/internal/domain/scope"
)

// StatusStoreForSave defines the store interface needed by SaveRequirementStatus.
type StatusStoreForSave interface {
	UpsertStatus(ctx context.Context, rec requirement.StatusRecord) error
}

// SaveRequirementStatusInput carries one checklist row edit.
// Preserved holds the evidence values from the last-loaded checklist; they are written back
// unchanged so a status or notes edit never clears them.
type SaveRequirementStatusInput struct {
	Scope         scope.Scope
	AthleteID     string
	RequirementID string
	Status        string
	Notes         string
	Preserved     requirement.Values
	ActorID       string
}

// SaveRequirementStatusDeps holds dependencies for SaveRequirementStatus.
type SaveRequirementStatusDeps struct {
	StatusStore StatusStoreForSave
	Now         func() time.Time
}

// ExecuteSaveRequirementStatus writes one status row with a single upsert.
// PRE: Status parses; AthleteID, RequirementID and (for complete) ActorID are non-empty
// POST: The (season, athlete, requirement) row holds the new status; completion is stamped
// for complete and cleared otherwise; store errors are returned unchanged and not retried
func ExecuteSaveRequirementStatus(ctx context.Context, input SaveRequirementStatusInput, deps SaveRequirementStatusDeps) (requirement.StatusRecord, error) {
	if err := input.Scope.Validate(); err != nil {
		return requirement.StatusRecord{}, err
	}
	status, err := requirement.ParseStatus(input.Status)
	if err != nil {
		return requirement.StatusRecord{}, err
	}

	rec, err := requirement.NewStatusRecord(
		input.Scope.OrgID,
		input.Scope.SeasonID,
		input.AthleteID,
		input.RequirementID,
		status,
		input.Notes,
		input.Preserved,
		input.ActorID,
		nowFrom(deps.Now),
	)
	if err != nil {
		return requirement.StatusRecord{}, err
	}

	if err := deps.StatusStore.UpsertStatus(ctx, rec); err != nil {
		return requirement.StatusRecord{}, err
	}

	slog.Info("status_event", "event", "status_saved",
		"athlete_id", rec.AthleteID,
		"requirement_id", rec.RequirementID,
		"status", rec.Status,
		"actor_id", input.ActorID,
	)
	return rec, nil
}

// nowFrom returns the injected clock's time, or time.Now when none is set.
func nowFrom(now func() time.Time) time.Time {
	if now == nil {
		return time.Now()
	}
	return now()
}
