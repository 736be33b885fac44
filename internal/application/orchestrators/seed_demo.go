package orchestrators

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ysa/internal/domain/requirement"
	"ysa/internal/domain/roster"
	"ysa/internal/domain/scope"
)

// AthleteStoreForSeed defines the athlete store interface needed by SeedDemo.
type AthleteStoreForSeed interface {
	SaveAthlete(ctx context.Context, a roster.Athlete) error
}

// RequirementStoreForSeed defines the requirement store interface needed by SeedDemo.
type RequirementStoreForSeed interface {
	SaveRequirement(ctx context.Context, r requirement.Requirement) error
	UpsertStatus(ctx context.Context, rec requirement.StatusRecord) error
}

// SeedDemoDeps holds dependencies for SeedDemo.
type SeedDemoDeps struct {
	Athletes     AthleteStoreForSeed
	Requirements RequirementStoreForSeed
	Now          func() time.Time
}

// SeedDemoResult reports what the seed wrote.
type SeedDemoResult struct {
	Athletes     int
	Requirements int
	Statuses     int
}

type demoAthlete struct {
	id, last, first, grade, level string
	active                        bool
	complete                      []string
	pending                       []string
}

var demoRequirements = []struct {
	id, category, name, typ string
	dueOffsetDays           int // 0 means no due date
	critical                bool
}{
	{"demo-req-physical", "medical", "Sports physical", "document", 14, true},
	{"demo-req-concussion", "medical", "Concussion awareness form", "checkbox", 7, true},
	{"demo-req-waiver", "registration", "Liability waiver", "checkbox", 7, true},
	{"demo-req-birth", "registration", "Birth certificate on file", "document", 0, true},
	{"demo-req-uniform", "equipment", "Uniform size", "text", 21, false},
	{"demo-req-volunteer", "family", "Volunteer hours pledge", "number", 30, false},
}

var demoAthletes = []demoAthlete{
	{"demo-ath-01", "Alvarez", "Mateo", "7", "JV", true,
		[]string{"demo-req-physical", "demo-req-concussion", "demo-req-waiver", "demo-req-birth"}, nil},
	{"demo-ath-02", "Brooks", "Ava", "8", "Varsity", true,
		[]string{"demo-req-physical", "demo-req-concussion", "demo-req-waiver", "demo-req-birth", "demo-req-uniform"}, nil},
	{"demo-ath-03", "Chen", "Lucas", "6", "JV", true,
		[]string{"demo-req-concussion"}, []string{"demo-req-physical"}},
	{"demo-ath-04", "Diallo", "Amara", "8", "Varsity", true,
		[]string{"demo-req-waiver"}, []string{"demo-req-birth"}},
	{"demo-ath-05", "Evans", "Noah", "7", "JV", true, nil, nil},
	{"demo-ath-06", "Fischer", "Lena", "6", "JV", false,
		[]string{"demo-req-physical"}, nil},
}

// ExecuteSeedDemo writes a small demo season. Fixed ids make it safe to run repeatedly.
// PRE: The local schema is migrated
// POST: Demo athletes, requirements and statuses exist for the scope's season
func ExecuteSeedDemo(ctx context.Context, sc scope.Scope, actorID string, deps SeedDemoDeps) (SeedDemoResult, error) {
	if err := sc.Validate(); err != nil {
		return SeedDemoResult{}, err
	}
	now := nowFrom(deps.Now)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	var result SeedDemoResult

	for _, r := range demoRequirements {
		req := requirement.Requirement{
			ID:       r.id,
			OrgID:    sc.OrgID,
			SeasonID: sc.SeasonID,
			Category: r.category,
			Name:     r.name,
			Type:     r.typ,
			Critical: r.critical,
		}
		if r.dueOffsetDays > 0 {
			due := today.AddDate(0, 0, r.dueOffsetDays)
			req.DueDate = &due
		}
		if err := deps.Requirements.SaveRequirement(ctx, req); err != nil {
			return result, fmt.Errorf("seed requirement %s: %w", r.id, err)
		}
		result.Requirements++
	}

	for _, a := range demoAthletes {
		athlete := roster.Athlete{
			ID:        a.id,
			OrgID:     sc.OrgID,
			SeasonID:  sc.SeasonID,
			LastName:  a.last,
			FirstName: a.first,
			Grade:     a.grade,
			TeamLevel: a.level,
			Active:    a.active,
		}
		if err := athlete.Validate(); err != nil {
			return result, err
		}
		if err := deps.Athletes.SaveAthlete(ctx, athlete); err != nil {
			return result, fmt.Errorf("seed athlete %s: %w", a.id, err)
		}
		result.Athletes++

		for status, ids := range map[requirement.Status][]string{
			requirement.StatusComplete: a.complete,
			requirement.StatusPending:  a.pending,
		} {
			for _, reqID := range ids {
				rec, err := requirement.NewStatusRecord(sc.OrgID, sc.SeasonID, a.id, reqID, status, "", requirement.Values{}, actorID, now)
				if err != nil {
					return result, err
				}
				if err := deps.Requirements.UpsertStatus(ctx, rec); err != nil {
					return result, fmt.Errorf("seed status %s/%s: %w", a.id, reqID, err)
				}
				result.Statuses++
			}
		}
	}

	slog.Info("seed_event", "event", "demo_seeded", "athletes", result.Athletes, "requirements", result.Requirements, "statuses", result.Statuses)
	return result, nil
}
