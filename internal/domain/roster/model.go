package roster

import (
	"errors"
	"strings"
	"time"
)

// PlayStatusGreen marks an athlete whose critical requirements are all complete.
// Any other play status value counts as not green.
const PlayStatusGreen = "green"

// Domain errors
var (
	ErrEmptyName   = errors.New("athlete first and last name are required")
	ErrEmptySeason = errors.New("athlete season id cannot be empty")
)

// Athlete is one rostered athlete for a season.
type Athlete struct {
	ID        string
	OrgID     string
	SeasonID  string
	LastName  string
	FirstName string
	Grade     string
	TeamLevel string
	Active    bool
}

// Entry is the read-only roster projection of one athlete with critical-requirement counts.
type Entry struct {
	AthleteID          string
	LastName           string
	FirstName          string
	Grade              string
	TeamLevel          string
	Active             bool
	CriticalTotal      int
	CriticalComplete   int
	CriticalIncomplete int
	PlayStatus         string
}

// RedFlag counts the athletes who have not completed one requirement.
type RedFlag struct {
	RequirementID       string
	RequirementName     string
	DueDate             *time.Time
	AthletesNotComplete int
}

// Totals partitions the roster into green and not green.
type Totals struct {
	Athletes int
	Green    int
	NotGreen int
}

// Dashboard is the aggregated view of the active roster.
type Dashboard struct {
	Roster   []Entry
	RedFlags []RedFlag
	Totals   Totals
}

// Validate checks the athlete has the fields the roster requires.
// INVARIANT: Athlete fields are not mutated
func (a *Athlete) Validate() error {
	if strings.TrimSpace(a.FirstName) == "" || strings.TrimSpace(a.LastName) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(a.SeasonID) == "" {
		return ErrEmptySeason
	}
	return nil
}

// DisplayName returns "Last, First".
func (a Athlete) DisplayName() string {
	return a.LastName + ", " + a.FirstName
}

// IsGreen reports whether the entry's play status is green.
func (e Entry) IsGreen() bool {
	return e.PlayStatus == PlayStatusGreen
}

// DisplayName returns "Last, First".
func (e Entry) DisplayName() string {
	return e.LastName + ", " + e.FirstName
}

// BuildDashboard reshapes pre-filtered, pre-sorted roster and red flag rows and counts totals.
// Ordering and filtering are the caller's contract and are not re-applied here.
// PRE: roster is the active roster for one season; redFlags are for the same season
// POST: Totals.Green + Totals.NotGreen == Totals.Athletes == len(roster)
func BuildDashboard(roster []Entry, redFlags []RedFlag) Dashboard {
	green := 0
	for _, e := range roster {
		if e.IsGreen() {
			green++
		}
	}
	return Dashboard{
		Roster:   roster,
		RedFlags: redFlags,
		Totals: Totals{
			Athletes: len(roster),
			Green:    green,
			NotGreen: len(roster) - green,
		},
	}
}
