// Package app decides what one browser sees: it combines the viewer, their membership and the
// navigation token into a single page description that the view layer renders in full.
package app

import (
	"ysa/internal/application/projections"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/requirement"
	"ysa/internal/domain/roster"
	"ysa/internal/domain/route"
)

// Kind names the view a page renders.
type Kind string

const (
	KindLogin         Kind = "login"
	KindAccessRequest Kind = "access_request"
	KindDashboard     Kind = "dashboard"
	KindAdmin         Kind = "admin"
	KindChecklist     Kind = "checklist"
	KindForbidden     Kind = "forbidden"
	KindError         Kind = "error"
)

// Viewer is the signed-in identity behind a request or live session.
// The zero value is a signed-out visitor.
type Viewer struct {
	AccountID string
	Email     string
	SessionID string
}

// SignedIn reports whether the viewer has a session.
func (v Viewer) SignedIn() bool {
	return v.AccountID != ""
}

// ChecklistView is the data slot of a checklist page.
// Items is the filtered list; Summary and Total always describe the full checklist.
type ChecklistView struct {
	Athlete roster.Athlete
	Items   []requirement.ChecklistItem
	Summary requirement.Summary
	Total   int
	Filter  string
}

// Page is a complete, declarative description of one view.
// Exactly one data slot is meaningful, selected by Kind.
type Page struct {
	Kind    Kind
	Route   route.Route
	Viewer  Viewer
	Member  orgmember.Member
	IsAdmin bool

	Dashboard      roster.Dashboard
	Admin          projections.AdminOverviewResult
	Checklist      ChecklistView
	PendingRequest *orgmember.AccessRequest

	// Message is the verbatim text shown by forbidden and error pages.
	Message string
}

// Title returns the document title for the page.
func (p Page) Title() string {
	switch p.Kind {
	case KindLogin:
		return "Sign in"
	case KindAccessRequest:
		return "Request access"
	case KindAdmin:
		return "Admin"
	case KindChecklist:
		if name := p.Checklist.Athlete.DisplayName(); name != "" {
			return name
		}
		return "Checklist"
	case KindForbidden:
		return "Not allowed"
	case KindError:
		return "Error"
	}
	return "Dashboard"
}
