package scope

import "errors"

// Deployment constants. The tracker serves exactly one organization and one active season.
const (
	DefaultOrgID    = "6f0f2d8e-51a7-4c39-9d61-3c0e8d4b2a10"
	DefaultSeasonID = "60562a52-8666-4eb3-b68c-cf6e3b40dbfb"
)

// ErrIncomplete is returned when either identifier is missing.
var ErrIncomplete = errors.New("scope requires both an org id and a season id")

// Scope pins every query and mutation to one organization and one season.
type Scope struct {
	OrgID    string
	SeasonID string
}

// Default returns the deployment scope.
func Default() Scope {
	return Scope{OrgID: DefaultOrgID, SeasonID: DefaultSeasonID}
}

// Validate checks both identifiers are present.
// PRE: none
// POST: Returns nil if usable, ErrIncomplete otherwise
func (s Scope) Validate() error {
	if s.OrgID == "" || s.SeasonID == "" {
		return ErrIncomplete
	}
	return nil
}
