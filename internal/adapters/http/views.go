package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strconv"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"ysa/internal/adapters/http/perf"
	"ysa/internal/application/app"
	"ysa/internal/domain/orgmember"
	"ysa/internal/domain/requirement"
	"ysa/internal/domain/route"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// mdRenderer is a goldmark instance configured for safe HTML output.
// Raw HTML in markdown input is escaped (WithUnsafe is NOT set).
var mdRenderer = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

// renderMarkdown converts checklist notes to HTML, falling back to escaped text.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := mdRenderer.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// roleOption is one entry of a role picker.
type roleOption struct {
	Value string
	Label string
}

// viewData is what every template receives: the page description plus request-bound extras.
type viewData struct {
	app.Page
	CSRFToken string
	Perf      *perf.Snapshot
	Mode      string // "signup" switches the login view to account creation
	Email     string // echoed back into the login form after a failure
	Live      bool
}

// CSRFField renders the hidden form input carrying the CSRF token.
func (d viewData) CSRFField() template.HTML {
	return template.HTML(`<input type="hidden" name="gorilla.csrf.Token" value="` + template.HTMLEscapeString(d.CSRFToken) + `">`)
}

// Roles lists every assignable role.
func (d viewData) Roles() []roleOption {
	out := make([]roleOption, 0, len(orgmember.ValidRoles))
	for _, r := range orgmember.ValidRoles {
		out = append(out, roleOption{Value: r, Label: orgmember.RoleLabel(r)})
	}
	return out
}

// Filters lists the checklist filters in display order.
func (d viewData) Filters() []string {
	return requirement.ValidFilters
}

// Statuses lists the statuses a checklist row can be saved with.
func (d viewData) Statuses() []requirement.Status {
	return requirement.ValidStatuses
}

var funcMap = template.FuncMap{
	"markdown":  renderMarkdown,
	"roleLabel": orgmember.RoleLabel,
	"athletePath": func(id string) string {
		return route.ForAthlete(id).Path()
	},
	"athleteToken": func(id string) string {
		return route.ForAthlete(id).Token()
	},
	"day": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Format("Jan 2, 2006")
	},
	"when": func(t time.Time) string {
		if t.IsZero() {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 3:04 PM")
	},
	"whenPtr": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.Local().Format("Jan 2, 2006 3:04 PM")
	},
	"str": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"num": func(f *float64) string {
		if f == nil {
			return ""
		}
		return strconv.FormatFloat(*f, 'f', -1, 64)
	},
	"ms": func(f float64) string {
		return fmt.Sprintf("%.1f ms", f)
	},
	"statusLabel": func(s requirement.Status) string {
		switch s {
		case requirement.StatusComplete:
			return "Complete"
		case requirement.StatusPending:
			return "Pending"
		}
		return "Missing"
	},
}

// Views renders pages from the embedded templates.
type Views struct {
	tpl *template.Template
}

// NewViews parses the embedded templates.
// POST: Returns an error if any template fails to parse
func NewViews() (*Views, error) {
	tpl, err := template.New("views").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Views{tpl: tpl}, nil
}

// Fragment renders the replaceable app region of a page, used by the live channel.
// POST: Returns the complete fragment or an error; never a partial one
func (v *Views) Fragment(data viewData) ([]byte, error) {
	var buf bytes.Buffer
	if err := v.tpl.ExecuteTemplate(&buf, "app", data); err != nil {
		return nil, fmt.Errorf("render %s: %w", data.Kind, err)
	}
	return buf.Bytes(), nil
}

// Document renders a full HTML document for a page and writes it with the given status.
// Nothing is written unless the whole document rendered.
func (v *Views) Document(w http.ResponseWriter, status int, data viewData) error {
	var buf bytes.Buffer
	if err := v.tpl.ExecuteTemplate(&buf, "document", data); err != nil {
		return fmt.Errorf("render %s: %w", data.Kind, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := w.Write(buf.Bytes())
	return err
}

// staticHandler serves the embedded assets under /static/.
func staticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
}
