package requirement

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Status is the completion state of one requirement for one athlete.
type Status string

// Status constants
const (
	StatusMissing  Status = "missing"
	StatusPending  Status = "pending"
	StatusComplete Status = "complete"
)

// ValidStatuses contains all valid status values.
var ValidStatuses = []Status{StatusMissing, StatusPending, StatusComplete}

// Checklist filters. They only affect what is displayed, never the counts.
const (
	FilterAll      = "all"
	FilterMissing  = "missing"
	FilterPending  = "pending"
	FilterComplete = "complete"
	FilterCritical = "critical"
)

// ValidFilters contains all valid checklist filter values.
var ValidFilters = []string{FilterAll, FilterMissing, FilterPending, FilterComplete, FilterCritical}

// MaxNotesLength bounds the free-text notes on a status row.
const MaxNotesLength = 2000

// Domain errors
var (
	ErrInvalidStatus    = errors.New("status must be one of: missing, pending, complete")
	ErrEmptyAthleteID   = errors.New("athlete id cannot be empty")
	ErrEmptyRequirement = errors.New("requirement id cannot be empty")
	ErrEmptyActor       = errors.New("completing a requirement requires the acting user")
	ErrNotesTooLong     = errors.New("notes cannot exceed 2000 characters")
)

// Requirement is defined per org and season and is read-only to this system.
type Requirement struct {
	ID       string
	OrgID    string
	SeasonID string
	Category string
	Name     string
	Type     string
	DueDate  *time.Time
	Critical bool
}

// Values holds the evidence captured for a requirement. Status edits never change them.
type Values struct {
	Number      *float64
	Date        *time.Time
	Text        *string
	EvidenceURL *string
}

// StatusRecord is the persisted status of one requirement for one athlete.
// Unique per (SeasonID, AthleteID, RequirementID).
type StatusRecord struct {
	OrgID             string
	SeasonID          string
	AthleteID         string
	RequirementID     string
	Status            Status
	Values            Values
	CompletedByUserID *string
	CompletedAt       *time.Time
	Notes             *string
	UpdatedAt         *time.Time
}

// ChecklistItem is a requirement joined with the athlete's status for it.
type ChecklistItem struct {
	Requirement
	Status            Status
	Values            Values
	CompletedByUserID *string
	CompletedAt       *time.Time
	Notes             *string
	UpdatedAt         *time.Time
}

// StatusCounts partitions a checklist by status.
type StatusCounts struct {
	Complete int
	Pending  int
	Missing  int
}

// Summary carries the derived counts for one athlete's checklist.
type Summary struct {
	Total            int
	CriticalTotal    int
	CriticalComplete int
	Counts           StatusCounts
}

// ParseStatus converts raw input into a Status.
// PRE: none
// POST: Returns a valid Status or ErrInvalidStatus
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, v := range ValidStatuses {
		if v == s {
			return s, nil
		}
	}
	return "", ErrInvalidStatus
}

// BuildChecklist left-joins requirements with one athlete's status rows.
// Every requirement appears exactly once, in the given order. A requirement without a
// status row is reported as missing with no values. Rows for unknown requirements are ignored.
// PRE: requirements belong to one org+season; statuses belong to one athlete in that season
// POST: len(result) == len(requirements)
// INVARIANT: Inputs are not mutated
func BuildChecklist(requirements []Requirement, statuses []StatusRecord) []ChecklistItem {
	byRequirement := make(map[string]StatusRecord, len(statuses))
	for _, s := range statuses {
		byRequirement[s.RequirementID] = s
	}

	items := make([]ChecklistItem, 0, len(requirements))
	for _, r := range requirements {
		item := ChecklistItem{Requirement: r, Status: StatusMissing}
		if s, ok := byRequirement[r.ID]; ok {
			item.Status = s.Status
			item.Values = s.Values
			item.CompletedByUserID = s.CompletedByUserID
			item.CompletedAt = s.CompletedAt
			item.Notes = s.Notes
			item.UpdatedAt = s.UpdatedAt
		}
		items = append(items, item)
	}
	return items
}

// Summarize counts critical completion and the status partition of a checklist.
// POST: Counts.Complete + Counts.Pending + Counts.Missing == Total
func Summarize(items []ChecklistItem) Summary {
	sum := Summary{Total: len(items)}
	for _, item := range items {
		switch item.Status {
		case StatusComplete:
			sum.Counts.Complete++
		case StatusPending:
			sum.Counts.Pending++
		default:
			sum.Counts.Missing++
		}
		if item.Critical {
			sum.CriticalTotal++
			if item.Status == StatusComplete {
				sum.CriticalComplete++
			}
		}
	}
	return sum
}

// FilterItems returns the items visible under the given checklist filter.
// Unknown filters behave like FilterAll.
// INVARIANT: Relative order of items is preserved
func FilterItems(items []ChecklistItem, filter string) []ChecklistItem {
	if filter == "" || filter == FilterAll || !ValidFilter(filter) {
		return items
	}
	out := make([]ChecklistItem, 0, len(items))
	for _, item := range items {
		switch filter {
		case FilterCritical:
			if item.Critical {
				out = append(out, item)
			}
		default:
			if string(item.Status) == filter {
				out = append(out, item)
			}
		}
	}
	return out
}

// ValidFilter reports whether f is a known checklist filter.
func ValidFilter(f string) bool {
	for _, v := range ValidFilters {
		if v == f {
			return true
		}
	}
	return false
}

// NewStatusRecord builds the row written by a status save.
// Values are carried over from the caller so an unrelated edit never clears evidence.
// PRE: status is valid; athleteID and requirementID are non-empty
// POST: Completion fields are stamped for complete and cleared otherwise
func NewStatusRecord(orgID, seasonID, athleteID, requirementID string, status Status, notes string, preserved Values, actorID string, now time.Time) (StatusRecord, error) {
	rec := StatusRecord{
		OrgID:         orgID,
		SeasonID:      seasonID,
		AthleteID:     athleteID,
		RequirementID: requirementID,
		Status:        status,
		Values:        preserved,
	}
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		rec.Notes = &trimmed
	}
	if err := rec.Validate(); err != nil {
		return StatusRecord{}, err
	}
	if err := rec.Stamp(actorID, now); err != nil {
		return StatusRecord{}, err
	}
	updated := now
	rec.UpdatedAt = &updated
	return rec, nil
}

// Validate checks the row can be written.
// INVARIANT: StatusRecord fields are not mutated
func (r *StatusRecord) Validate() error {
	if strings.TrimSpace(r.AthleteID) == "" {
		return ErrEmptyAthleteID
	}
	if strings.TrimSpace(r.RequirementID) == "" {
		return ErrEmptyRequirement
	}
	if _, err := ParseStatus(string(r.Status)); err != nil {
		return err
	}
	if r.Notes != nil && utf8.RuneCountInString(*r.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	return nil
}

// Stamp records who completed the requirement and when. Any other status forgets both.
// PRE: Status is valid
// POST: CompletedAt/CompletedByUserID set iff Status == complete
func (r *StatusRecord) Stamp(actorID string, now time.Time) error {
	if r.Status != StatusComplete {
		r.CompletedAt = nil
		r.CompletedByUserID = nil
		return nil
	}
	if strings.TrimSpace(actorID) == "" {
		return ErrEmptyActor
	}
	at := now
	by := actorID
	r.CompletedAt = &at
	r.CompletedByUserID = &by
	return nil
}

// IsComplete reports whether the item counts toward completion.
func (i ChecklistItem) IsComplete() bool {
	return i.Status == StatusComplete
}
