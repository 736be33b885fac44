package roster

import (
	"context"

	domain "ysa/internal/domain/roster"
	"ysa/internal/domain/scope"
)

// Store reads the season roster and its rollups.
type Store interface {
	ListRoster(ctx context.Context, s scope.Scope) ([]domain.Entry, error)
	ListRedFlags(ctx context.Context, s scope.Scope) ([]domain.RedFlag, error)
	GetAthlete(ctx context.Context, s scope.Scope, id string) (domain.Athlete, error)
	SaveAthlete(ctx context.Context, a domain.Athlete) error
}
