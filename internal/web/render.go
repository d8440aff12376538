package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/wolfman30/medtrack/internal/accounts"
	"github.com/wolfman30/medtrack/internal/session"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageFiles = []string{
	"index.html",
	"signup.html",
	"login.html",
	"contact.html",
	"doctor_dashboard.html",
	"doctor_view_patients.html",
	"profile.html",
	"patient_dashboard.html",
	"book_appointment.html",
	"error.html",
}

// pageData is what every template receives.
type pageData struct {
	Title    string
	Identity *accounts.Identity
	Flashes  []string
	Data     any
}

func parseTemplates() (map[string]*template.Template, error) {
	pages := make(map[string]*template.Template, len(pageFiles))
	for _, name := range pageFiles {
		tmpl, err := template.ParseFS(templateFS, "templates/base.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("web: parse %s: %w", name, err)
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// render executes the page into a buffer, consumes pending flashes, saves the
// session and only then writes the response.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	tmpl, ok := h.pages[page]
	if !ok {
		h.serverError(w, r, fmt.Errorf("web: unknown page %q", page))
		return
	}

	sess := session.FromContext(r.Context())
	pd := pageData{Title: title, Data: data}
	if id, ok := sess.Identity(); ok {
		pd.Identity = &id
	}
	pd.Flashes = sess.PopFlashes()

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", pd); err != nil {
		h.serverError(w, r, fmt.Errorf("web: render %s: %w", page, err))
		return
	}
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		h.logger.Error("failed to save session", "error", err, "path", r.URL.Path)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect saves the session and sends a 302.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, url string) {
	sess := session.FromContext(r.Context())
	if err := h.sessions.Save(r.Context(), w, sess); err != nil {
		h.serverError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// serverError logs the upstream failure and renders the generic error page.
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed", "error", err, "method", r.Method, "path", r.URL.Path)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	tmpl, ok := h.pages["error.html"]
	if !ok {
		return
	}
	_ = tmpl.ExecuteTemplate(w, "base", pageData{Title: "Error"})
}
