package app

import (
	"sync"

	"ysa/internal/domain/requirement"
)

// FilterPrefs keeps each session's checklist filter per athlete. It is never persisted.
type FilterPrefs struct {
	mu    sync.Mutex
	prefs map[string]map[string]string
}

// NewFilterPrefs creates an empty preference table.
func NewFilterPrefs() *FilterPrefs {
	return &FilterPrefs{prefs: make(map[string]map[string]string)}
}

// Get returns the session's filter for an athlete, or "all" when none was chosen.
func (f *FilterPrefs) Get(sessionID, athleteID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v, ok := f.prefs[sessionID][athleteID]; ok {
		return v
	}
	return requirement.FilterAll
}

// Set stores a filter choice. Unknown filters and anonymous sessions are ignored.
// POST: Returns true when the preference changed
func (f *FilterPrefs) Set(sessionID, athleteID, filter string) bool {
	if sessionID == "" || athleteID == "" || !requirement.ValidFilter(filter) {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	bySession, ok := f.prefs[sessionID]
	if !ok {
		bySession = make(map[string]string)
		f.prefs[sessionID] = bySession
	}
	if bySession[athleteID] == filter {
		return false
	}
	bySession[athleteID] = filter
	return true
}

// Forget drops every preference of a session, on sign-out.
func (f *FilterPrefs) Forget(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.prefs, sessionID)
}
