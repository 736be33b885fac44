package route

import "strings"

// Name identifies the view a navigation token selects.
type Name string

// Route names reachable by navigation. Login and access-request views are chosen from
// auth and membership state, never from the token.
const (
	Dashboard Name = "dashboard"
	Admin     Name = "admin"
	Athlete   Name = "athlete"
)

const athletePrefix = "athlete/"

// Route is a parsed navigation token.
type Route struct {
	Name      Name
	AthleteID string
}

// Parse maps a navigation token to a route. It never fails: unknown tokens fall back to
// the dashboard. A leading '#' or '/' is ignored so fragments and paths parse alike.
// POST: Name is one of Dashboard, Admin, Athlete; AthleteID is non-empty iff Name == Athlete
func Parse(token string) Route {
	t := strings.TrimSpace(token)
	t = strings.TrimPrefix(t, "#")
	t = strings.Trim(t, "/")

	switch {
	case t == "" || t == string(Dashboard):
		return Route{Name: Dashboard}
	case t == string(Admin):
		return Route{Name: Admin}
	case strings.HasPrefix(t, athletePrefix):
		id := strings.TrimPrefix(t, athletePrefix)
		if id == "" || strings.Contains(id, "/") {
			return Route{Name: Dashboard}
		}
		return Route{Name: Athlete, AthleteID: id}
	}
	return Route{Name: Dashboard}
}

// Token returns the canonical navigation token for the route.
func (r Route) Token() string {
	if r.Name == Athlete {
		return athletePrefix + r.AthleteID
	}
	return string(r.Name)
}

// Path returns the server path that renders the route directly.
func (r Route) Path() string {
	return "/" + r.Token()
}

// ForAthlete returns the checklist route for an athlete.
func ForAthlete(id string) Route {
	return Route{Name: Athlete, AthleteID: id}
}
