package orchestrators

import (
	"context"
	"sync"

	"ysa/internal/adapters/storage"
	"ysa/internal/domain/account"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/requirement"
	"ysa/internal/domain/roster"
)

// --- in-memory test doubles ---

type memStatusStore struct {
	mu        sync.Mutex
	rows      map[string]requirement.StatusRecord
	upserts   int
	upsertErr error
}

func newMemStatusStore() *memStatusStore {
	return &memStatusStore{rows: make(map[string]requirement.StatusRecord)}
}

func statusKey(season, athlete, req string) string {
	return season + "|" + athlete + "|" + req
}

// UpsertStatus replaces the row for the key.
// PRE: rec is validated
// POST: one row per (season, athlete, requirement)
func (s *memStatusStore) UpsertStatus(_ context.Context, rec requirement.StatusRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.rows[statusKey(rec.SeasonID, rec.AthleteID, rec.RequirementID)] = rec
	return nil
}

// SaveRequirement accepts any requirement.
func (s *memStatusStore) SaveRequirement(_ context.Context, _ requirement.Requirement) error {
	return nil
}

type memAthleteStore struct {
	athletes map[string]roster.Athlete
}

// SaveAthlete stores the athlete by id.
func (s *memAthleteStore) SaveAthlete(_ context.Context, a roster.Athlete) error {
	if s.athletes == nil {
		s.athletes = make(map[string]roster.Athlete)
	}
	s.athletes[a.ID] = a
	return nil
}

type memMemberStore struct {
	members   map[string]orgmember.Member
	requests  map[string]orgmember.AccessRequest
	upsertErr error
	deleteErr error
}

func newMemMemberStore() *memMemberStore {
	return &memMemberStore{
		members:  make(map[string]orgmember.Member),
		requests: make(map[string]orgmember.AccessRequest),
	}
}

// GetMember returns the member or storage.ErrNotFound.
func (s *memMemberStore) GetMember(_ context.Context, _ string, userID string) (orgmember.Member, error) {
	m, ok := s.members[userID]
	if !ok {
		return orgmember.Member{}, storage.ErrNotFound
	}
	return m, nil
}

// ListMembers returns every member.
func (s *memMemberStore) ListMembers(_ context.Context, _ string) ([]orgmember.Member, error) {
	var out []orgmember.Member
	for _, m := range s.members {
		out = append(out, m)
	}
	return out, nil
}

// UpsertMember stores the member unless a failure is configured.
func (s *memMemberStore) UpsertMember(_ context.Context, m orgmember.Member) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.members[m.UserID] = m
	return nil
}

// UpdateRole changes the role of an existing member.
func (s *memMemberStore) UpdateRole(_ context.Context, _ string, userID, role string) error {
	if m, ok := s.members[userID]; ok {
		m.Role = role
		s.members[userID] = m
	}
	return nil
}

// DeleteMember removes the member.
func (s *memMemberStore) DeleteMember(_ context.Context, _ string, userID string) error {
	delete(s.members, userID)
	return nil
}

// GetRequest returns the request or storage.ErrNotFound.
func (s *memMemberStore) GetRequest(_ context.Context, _ string, id string) (orgmember.AccessRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return orgmember.AccessRequest{}, storage.ErrNotFound
	}
	return r, nil
}

// GetRequestByUser returns the user's request or storage.ErrNotFound.
func (s *memMemberStore) GetRequestByUser(_ context.Context, _ string, userID string) (orgmember.AccessRequest, error) {
	for _, r := range s.requests {
		if r.UserID == userID {
			return r, nil
		}
	}
	return orgmember.AccessRequest{}, storage.ErrNotFound
}

// CreateRequest stores the request.
func (s *memMemberStore) CreateRequest(_ context.Context, r orgmember.AccessRequest) error {
	s.requests[r.ID] = r
	return nil
}

// DeleteRequest removes the request unless a failure is configured.
func (s *memMemberStore) DeleteRequest(_ context.Context, _ string, id string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.requests, id)
	return nil
}

type memAccountStore struct {
	accounts map[string]account.Account // keyed by email
	saves    int
}

func newMemAccountStore() *memAccountStore {
	return &memAccountStore{accounts: make(map[string]account.Account)}
}

// GetByEmail returns the account or storage.ErrNotFound.
func (s *memAccountStore) GetByEmail(_ context.Context, email string) (account.Account, error) {
	a, ok := s.accounts[email]
	if !ok {
		return account.Account{}, storage.ErrNotFound
	}
	return a, nil
}

// Save stores the account by email.
func (s *memAccountStore) Save(_ context.Context, a account.Account) error {
	s.saves++
	s.accounts[a.Email] = a
	return nil
}
