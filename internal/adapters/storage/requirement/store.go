package requirement

import (
	"context"

	domain "ysa/internal/domain/requirement"
	"ysa/internal/domain/scope"
)

// Store persists season requirements and per-athlete status rows.
type Store interface {
	ListRequirements(ctx context.Context, s scope.Scope) ([]domain.Requirement, error)
	ListStatuses(ctx context.Context, s scope.Scope, athleteID string) ([]domain.StatusRecord, error)
	UpsertStatus(ctx context.Context, rec domain.StatusRecord) error
	SaveRequirement(ctx context.Context, r domain.Requirement) error
}
