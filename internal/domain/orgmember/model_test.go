package orgmember_test

import (
	"testing"
	"time"

	"ysa/internal/domain/orgmember"
)

// TestCanAdminister verifies only admin and president gain admin access.
func TestCanAdminister(t *testing.T) {
	want := map[string]bool{
		orgmember.RoleStaff:                false,
		orgmember.RoleCoach:                false,
		orgmember.RoleUniformManager:       false,
		orgmember.RoleVolunteerCoordinator: false,
		orgmember.RoleTreasurer:            false,
		orgmember.RoleAdmin:                true,
		orgmember.RolePresident:            true,
		"":                                 false,
		"superuser":                        false,
	}
	for role, expected := range want {
		if got := orgmember.CanAdminister(role); got != expected {
			t.Errorf("CanAdminister(%q)=%v want %v", role, got, expected)
		}
	}
}

// TestMember_Validate tests validation of Member.
func TestMember_Validate(t *testing.T) {
	tests := []struct {
		name    string
		member  orgmember.Member
		wantErr error
	}{
		{name: "valid coach", member: orgmember.Member{OrgID: "o", UserID: "u", Role: orgmember.RoleCoach}},
		{name: "valid president", member: orgmember.Member{OrgID: "o", UserID: "u", Role: orgmember.RolePresident}},
		{name: "missing org", member: orgmember.Member{UserID: "u", Role: orgmember.RoleCoach}, wantErr: orgmember.ErrEmptyOrgID},
		{name: "missing user", member: orgmember.Member{OrgID: "o", Role: orgmember.RoleCoach}, wantErr: orgmember.ErrEmptyUserID},
		{name: "invalid role", member: orgmember.Member{OrgID: "o", UserID: "u", Role: "owner"}, wantErr: orgmember.ErrInvalidRole},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.member.Validate(); err != tt.wantErr {
				t.Errorf("err=%v want %v", err, tt.wantErr)
			}
		})
	}
}

// TestAccessRequest_MemberFor verifies approval carries the request identity.
func TestAccessRequest_MemberFor(t *testing.T) {
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	req := orgmember.AccessRequest{ID: "req-1", OrgID: "org", UserID: "user", Email: "parent@example.org"}

	m, err := req.MemberFor(orgmember.RoleTreasurer, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.OrgID != "org" || m.UserID != "user" || m.Email != "parent@example.org" || m.Role != orgmember.RoleTreasurer {
		t.Errorf("member=%+v", m)
	}
	if !m.CreatedAt.Equal(now) {
		t.Errorf("CreatedAt=%v want %v", m.CreatedAt, now)
	}

	if _, err := req.MemberFor("owner", now); err != orgmember.ErrInvalidRole {
		t.Errorf("err=%v want ErrInvalidRole", err)
	}
}

// TestRoleLabel verifies underscores become spaces.
func TestRoleLabel(t *testing.T) {
	if got := orgmember.RoleLabel(orgmember.RoleVolunteerCoordinator); got != "volunteer coordinator" {
		t.Errorf("got %q", got)
	}
}
