package web

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"ysa/internal/adapters/http/middleware"
	"ysa/internal/adapters/storage"
	"ysa/internal/application/app"
	"ysa/internal/application/orchestrators"
	"ysa/internal/domain/account"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/requirement"
	"ysa/internal/domain/route"
)

// perfWindow is how far back the admin perf panel looks.
const perfWindow = time.Hour

func generateID() string {
	return uuid.New().String()
}

// viewerFromSession maps an authenticated session to the viewer the app layer sees.
func viewerFromSession(sess middleware.Session) app.Viewer {
	return app.Viewer{AccountID: sess.AccountID, Email: sess.Email, SessionID: sess.ID}
}

// viewerFrom returns the request's viewer; the zero viewer when signed out.
func viewerFrom(r *http.Request) app.Viewer {
	sess, ok := middleware.GetSessionFromContext(r.Context())
	if !ok {
		return app.Viewer{}
	}
	return viewerFromSession(sess)
}

// dataFor attaches request-bound extras to a page. Admin pages carry the perf snapshot.
func (srv *Server) dataFor(page app.Page, csrfToken string) viewData {
	data := viewData{Page: page, CSRFToken: csrfToken}
	if page.Kind == app.KindAdmin && srv.deps.Collector != nil {
		snap := srv.deps.Collector.Snapshot(srv.deps.Now().Add(-perfWindow), 5)
		data.Perf = &snap
	}
	return data
}

// statusForPage maps a page kind to its HTTP status.
func statusForPage(k app.Kind) int {
	switch k {
	case app.KindForbidden:
		return http.StatusForbidden
	case app.KindError:
		return http.StatusInternalServerError
	}
	return http.StatusOK
}

// writePage renders a full document and records the render time.
func (srv *Server) writePage(w http.ResponseWriter, status int, data viewData) {
	start := time.Now()
	err := srv.views.Document(w, status, data)
	srv.recordRender(string(data.Kind), time.Since(start), err)
	if err != nil {
		http.Error(w, "Something went wrong rendering this page.", http.StatusInternalServerError)
	}
}

// fail shows a mutation error. Auth failures redirect; everything else renders the
// forbidden or error view with the failure text verbatim.
func (srv *Server) fail(w http.ResponseWriter, r *http.Request, back route.Route, err error) {
	switch {
	case errors.Is(err, app.ErrNotSignedIn):
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	case errors.Is(err, app.ErrNotMember):
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	v := viewerFrom(r)
	page := app.Page{Kind: app.KindError, Route: back, Viewer: v, Message: err.Error()}
	status := statusForError(err)
	if errors.Is(err, app.ErrForbidden) {
		page.Kind = app.KindForbidden
	}
	if membership, merr := srv.controller.Authorize(r.Context(), v, false); merr == nil {
		page.Member = membership.Member
		page.IsAdmin = membership.CanAdminister()
	}
	slog.Warn("request_failed", "path", r.URL.Path, "status", status, "error", err)
	srv.writePage(w, status, srv.dataFor(page, csrf.Token(r)))
}

// statusForError maps domain and storage errors to HTTP statuses.
func statusForError(err error) int {
	switch {
	case errors.Is(err, app.ErrForbidden),
		errors.Is(err, orchestrators.ErrSelfDemotion),
		errors.Is(err, orchestrators.ErrSelfRemoval):
		return http.StatusForbidden
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, requirement.ErrInvalidStatus),
		errors.Is(err, requirement.ErrEmptyAthleteID),
		errors.Is(err, requirement.ErrEmptyRequirement),
		errors.Is(err, requirement.ErrEmptyActor),
		errors.Is(err, requirement.ErrNotesTooLong),
		errors.Is(err, orgmember.ErrInvalidRole),
		errors.Is(err, orgmember.ErrEmptyUserID),
		errors.Is(err, orgmember.ErrEmptyRequest):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// handleHealth handles GET /healthz
func (srv *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if srv.deps.Health != nil {
		if err := srv.deps.Health(r.Context()); err != nil {
			slog.Error("health_check_failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

// handlePage handles GET /, /dashboard, /admin and /athlete/{id}.
// A filter query parameter on a checklist updates the session's filter before rendering.
func (srv *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r)
	token := r.URL.Path
	if rt := route.Parse(token); rt.Name == route.Athlete && v.SignedIn() {
		if filter := r.URL.Query().Get("filter"); filter != "" {
			srv.controller.Filters().Set(v.SessionID, rt.AthleteID, filter)
		}
	}

	page := srv.controller.Build(r.Context(), v, token)
	if page.Kind == app.KindLogin {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	srv.writePage(w, statusForPage(page.Kind), srv.dataFor(page, csrf.Token(r)))
}

// handleLoginForm handles GET /login
func (srv *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	srv.writePage(w, http.StatusOK, viewData{Page: app.Page{Kind: app.KindLogin}, CSRFToken: csrf.Token(r)})
}

// handleSignupForm handles GET /signup
func (srv *Server) handleSignupForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetSessionFromContext(r.Context()); ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	srv.writePage(w, http.StatusOK, viewData{Page: app.Page{Kind: app.KindLogin}, CSRFToken: csrf.Token(r), Mode: "signup"})
}

// loginError re-renders the sign-in form with the failure shown inline.
func (srv *Server) loginError(w http.ResponseWriter, r *http.Request, mode string, err error) {
	srv.writePage(w, http.StatusOK, viewData{
		Page:      app.Page{Kind: app.KindLogin, Message: err.Error()},
		CSRFToken: csrf.Token(r),
		Mode:      mode,
		Email:     r.FormValue("email"),
	})
}

// signIn starts a session and sends the browser to its first page.
func (srv *Server) signIn(w http.ResponseWriter, r *http.Request, accountID, email string) {
	token, sess, err := srv.sessions.Create(accountID, email)
	if err != nil {
		slog.Error("auth_event", "event", "session_create_failed", "account_id", accountID, "error", err)
		http.Error(w, "Session error", http.StatusInternalServerError)
		return
	}
	srv.sessions.SetCookie(w, token, sess)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleLogin handles POST /login
func (srv *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	result, err := orchestrators.ExecuteLogin(r.Context(), orchestrators.LoginInput{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}, orchestrators.LoginDeps{
		AccountStore: srv.deps.Stores.Accounts,
		Now:          srv.deps.Now,
	})
	if err != nil {
		slog.Info("auth_event", "event", "login_failed", "error", err)
		srv.loginError(w, r, "", err)
		return
	}
	srv.signIn(w, r, result.AccountID, result.Email)
}

// handleSignup handles POST /signup
func (srv *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	id, err := orchestrators.ExecuteCreateAccount(r.Context(), orchestrators.CreateAccountInput{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}, orchestrators.CreateAccountDeps{
		AccountStore: srv.deps.Stores.Accounts,
		Now:          srv.deps.Now,
	})
	if err != nil {
		srv.loginError(w, r, "signup", err)
		return
	}
	srv.signIn(w, r, id, account.NormalizeEmail(r.FormValue("email")))
}

// handleLogout handles POST /logout
// Every live view of the session receives the sign-out and falls back to the login view.
func (srv *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if token, err := middleware.SessionToken(r); err == nil {
		if sess, ok := srv.sessions.Get(token); ok {
			srv.controller.Filters().Forget(sess.ID)
		}
		srv.sessions.Delete(token)
	}
	srv.sessions.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// handleRequestAccess handles POST /access-request
func (srv *Server) handleRequestAccess(w http.ResponseWriter, r *http.Request) {
	v := viewerFrom(r)
	_, err := orchestrators.ExecuteRequestAccess(r.Context(), orchestrators.RequestAccessInput{
		Scope:  srv.cfg.Scope,
		UserID: v.AccountID,
		Email:  v.Email,
	}, orchestrators.RequestAccessDeps{
		MemberStore:  srv.deps.Stores.Members,
		RequestStore: srv.deps.Stores.Members,
		Mailer:       srv.deps.Mailer,
		BaseURL:      srv.cfg.BaseURL,
		Now:          srv.deps.Now,
		GenerateID:   generateID,
	})
	if err != nil && !errors.Is(err, orchestrators.ErrAlreadyMember) {
		srv.fail(w, r, route.Route{Name: route.Dashboard}, err)
		return
	}
	srv.hub.Publish(Change{Kind: ChangeRequest})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleSaveStatus handles POST /athlete/{id}/requirements/{rid}
// Evidence values are re-read and written back unchanged; only status and notes are edited.
func (srv *Server) handleSaveStatus(w http.ResponseWriter, r *http.Request) {
	athleteID := r.PathValue("id")
	requirementID := r.PathValue("rid")
	back := route.ForAthlete(athleteID)

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	v := viewerFrom(r)
	if _, err := srv.controller.Authorize(r.Context(), v, false); err != nil {
		srv.fail(w, r, back, err)
		return
	}
	preserved, err := srv.controller.PreservedValues(r.Context(), athleteID, requirementID)
	if err != nil {
		srv.fail(w, r, back, err)
		return
	}

	_, err = orchestrators.ExecuteSaveRequirementStatus(r.Context(), orchestrators.SaveRequirementStatusInput{
		Scope:         srv.cfg.Scope,
		AthleteID:     athleteID,
		RequirementID: requirementID,
		Status:        r.FormValue("status"),
		Notes:         r.FormValue("notes"),
		Preserved:     preserved,
		ActorID:       v.AccountID,
	}, orchestrators.SaveRequirementStatusDeps{
		StatusStore: srv.deps.Stores.Requirements,
		Now:         srv.deps.Now,
	})
	if err != nil {
		srv.fail(w, r, back, err)
		return
	}

	srv.hub.Publish(Change{Kind: ChangeStatus, AthleteID: athleteID})
	http.Redirect(w, r, back.Path(), http.StatusSeeOther)
}

// requireAdmin authorizes an admin mutation, rendering the failure when it is refused.
func (srv *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (app.Viewer, bool) {
	v := viewerFrom(r)
	if _, err := srv.controller.Authorize(r.Context(), v, true); err != nil {
		srv.fail(w, r, route.Route{Name: route.Admin}, err)
		return v, false
	}
	return v, true
}

// adminDone publishes a membership change and returns to the admin view.
func (srv *Server) adminDone(w http.ResponseWriter, r *http.Request) {
	srv.hub.Publish(Change{Kind: ChangeMembership})
	http.Redirect(w, r, route.Route{Name: route.Admin}.Path(), http.StatusSeeOther)
}

// handleApprove handles POST /admin/requests/{id}/approve
func (srv *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	v, ok := srv.requireAdmin(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}

	_, err := orchestrators.ExecuteApproveAccessRequest(r.Context(), orchestrators.ApproveAccessRequestInput{
		Scope:     srv.cfg.Scope,
		RequestID: r.PathValue("id"),
		Role:      r.FormValue("role"),
		ActorID:   v.AccountID,
	}, orchestrators.ApproveAccessRequestDeps{
		MemberStore:  srv.deps.Stores.Members,
		RequestStore: srv.deps.Stores.Members,
		Mailer:       srv.deps.Mailer,
		BaseURL:      srv.cfg.BaseURL,
		Now:          srv.deps.Now,
	})
	if errors.Is(err, orchestrators.ErrApprovalIncomplete) {
		// The member was added, so open views must still refresh.
		srv.hub.Publish(Change{Kind: ChangeMembership})
	}
	if err != nil {
		srv.fail(w, r, route.Route{Name: route.Admin}, err)
		return
	}
	srv.adminDone(w, r)
}

// handleDeny handles POST /admin/requests/{id}/deny
func (srv *Server) handleDeny(w http.ResponseWriter, r *http.Request) {
	v, ok := srv.requireAdmin(w, r)
	if !ok {
		return
	}
	err := orchestrators.ExecuteDenyAccessRequest(r.Context(), orchestrators.DenyAccessRequestInput{
		Scope:     srv.cfg.Scope,
		RequestID: r.PathValue("id"),
		ActorID:   v.AccountID,
	}, orchestrators.DenyAccessRequestDeps{
		RequestStore: srv.deps.Stores.Members,
	})
	if err != nil {
		srv.fail(w, r, route.Route{Name: route.Admin}, err)
		return
	}
	srv.adminDone(w, r)
}

// handleChangeRole handles POST /admin/members/{user}/role
func (srv *Server) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	v, ok := srv.requireAdmin(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	err := orchestrators.ExecuteChangeMemberRole(r.Context(), orchestrators.ChangeMemberRoleInput{
		Scope:   srv.cfg.Scope,
		ActorID: v.AccountID,
		UserID:  r.PathValue("user"),
		Role:    r.FormValue("role"),
	}, orchestrators.ManageMembersDeps{MemberStore: srv.deps.Stores.Members})
	if err != nil {
		srv.fail(w, r, route.Route{Name: route.Admin}, err)
		return
	}
	srv.adminDone(w, r)
}

// handleRemoveMember handles POST /admin/members/{user}/remove
func (srv *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	v, ok := srv.requireAdmin(w, r)
	if !ok {
		return
	}
	err := orchestrators.ExecuteRemoveMember(r.Context(), orchestrators.RemoveMemberInput{
		Scope:   srv.cfg.Scope,
		ActorID: v.AccountID,
		UserID:  r.PathValue("user"),
	}, orchestrators.ManageMembersDeps{MemberStore: srv.deps.Stores.Members})
	if err != nil {
		srv.fail(w, r, route.Route{Name: route.Admin}, err)
		return
	}
	srv.adminDone(w, r)
}
