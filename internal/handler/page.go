package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ssc-dashboards/portal/internal/access"
	"github.com/ssc-dashboards/portal/internal/backend"
	"github.com/ssc-dashboards/portal/internal/middleware"
	"github.com/ssc-dashboards/portal/internal/nav"
	"github.com/ssc-dashboards/portal/internal/session"
)

// Nudger wakes the status sockets of a user.
type Nudger interface {
	Nudge(userID string) int
}

// PageHandler renders the home, waiting, dashboard and section pages.
type PageHandler struct {
	backend     *backend.Client
	cookies     *session.Cookies
	catalog     *nav.Catalog
	nudger      Nudger
	interval    time.Duration
	registerURL string
	templates   map[string]*template.Template
	logger      *slog.Logger
}

type PageConfig struct {
	Catalog     *nav.Catalog
	Nudger      Nudger
	Interval    time.Duration
	RegisterURL string
}

func NewPageHandler(bc *backend.Client, cookies *session.Cookies, cfg PageConfig, tmpl map[string]*template.Template, logger *slog.Logger) *PageHandler {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	return &PageHandler{
		backend:     bc,
		cookies:     cookies,
		catalog:     cfg.Catalog,
		nudger:      cfg.Nudger,
		interval:    cfg.Interval,
		registerURL: cfg.RegisterURL,
		templates:   tmpl,
		logger:      logger,
	}
}

func (h *PageHandler) rd() renderer {
	return renderer{templates: h.templates, logger: h.logger}
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	s, _ := currentSession(r)
	data := pageData(r, "Home")
	data["Route"] = access.Resolve(&s).String()
	data["RegisterURL"] = h.registerURL
	h.rd().render(w, http.StatusOK, "home.html", data)
}

// Waiting renders the pending approval page.
func (h *PageHandler) Waiting(w http.ResponseWriter, r *http.Request) {
	data := pageData(r, "Awaiting approval")
	data["Interval"] = int(h.interval / time.Second)
	takeFlash(w, r, data)
	h.rd().render(w, http.StatusOK, "waiting.html", data)
}

func (h *PageHandler) AdminDashboard(w http.ResponseWriter, r *http.Request) {
	s, _ := currentSession(r)
	data := areaData(r, "Admin Dashboard", h.catalog, nav.AreaAdmin, "dashboard")
	takeFlash(w, r, data)

	env, err := h.backend.Get(r.Context(), s.AccessToken, "/api/admin/dashboard")
	if err != nil {
		if h.expired(w, r, err) {
			return
		}
		h.logger.Error("load admin dashboard", "error", err)
		data["Error"] = loadError(err, "Failed to load dashboard stats")
		h.rd().render(w, http.StatusOK, "dashboard.html", data)
		return
	}

	var stats backend.DashboardStats
	if err := env.Decode(&stats); err != nil {
		h.logger.Error("decode admin dashboard", "error", err)
		data["Error"] = "Failed to load dashboard stats"
	} else {
		data["Stats"] = stats
	}
	h.rd().render(w, http.StatusOK, "dashboard.html", data)
}

func (h *PageHandler) UserDashboard(w http.ResponseWriter, r *http.Request) {
	s, _ := currentSession(r)
	data := areaData(r, "Dashboard", h.catalog, nav.AreaUser, "dashboard")
	takeFlash(w, r, data)

	env, err := h.backend.Get(r.Context(), s.AccessToken, "/api/user/dashboard")
	if err != nil {
		if h.expired(w, r, err) {
			return
		}
		h.logger.Error("load user dashboard", "user_id", s.UserID, "error", err)
		data["Error"] = loadError(err, "Failed to load dashboard")
		h.rd().render(w, http.StatusOK, "dashboard.html", data)
		return
	}

	var payload any
	if err := env.Decode(&payload); err != nil {
		h.logger.Error("decode user dashboard", "user_id", s.UserID, "error", err)
		data["Error"] = "Failed to load dashboard"
	} else {
		data["Data"] = payload
	}
	h.rd().render(w, http.StatusOK, "dashboard.html", data)
}

// Section renders GET /{area}/{section} from the section's backend endpoint.
func (h *PageHandler) Section(area nav.Area) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sec, ok := h.catalog.Section(area, r.PathValue("section"))
		if !ok {
			h.rd().renderError(w, r, http.StatusNotFound, "Page not found")
			return
		}
		s, _ := currentSession(r)

		data := areaData(r, sec.Title, h.catalog, area, sec.Slug)
		data["Section"] = sec
		data["Rows"] = []map[string]any(nil)
		data["Record"] = map[string]any(nil)
		takeFlash(w, r, data)

		query := sec.Query(r.URL.Query().Get)
		data["Filters"] = h.filters(r, s.AccessToken, sec, query)

		env, err := h.backend.Get(r.Context(), s.AccessToken, sec.ListPath(query))
		if err != nil {
			if h.expired(w, r, err) {
				return
			}
			h.logger.Error("load section", "section", sec.Slug, "user_id", s.UserID, "error", err)
			data["Error"] = loadError(err, "Failed to load "+sec.Title)
			h.rd().render(w, http.StatusOK, "section.html", data)
			return
		}

		var payload any
		if err := env.Decode(&payload); err != nil {
			h.logger.Error("decode section", "section", sec.Slug, "error", err)
			data["Error"] = "Failed to load " + sec.Title
		} else if sec.Layout == nav.LayoutRecord {
			data["Record"] = record(payload)
		} else {
			data["Rows"] = rows(payload)
		}
		h.rd().render(w, http.StatusOK, "section.html", data)
	}
}

// SectionAction handles POST /{area}/{section}/{id}/{action}: one row
// action from the catalog, sent to the backend.
func (h *PageHandler) SectionAction(area nav.Area) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sec, ok := h.catalog.Section(area, r.PathValue("section"))
		if !ok {
			h.rd().renderError(w, r, http.StatusNotFound, "Page not found")
			return
		}
		act, ok := sec.Action(r.PathValue("action"))
		id := r.PathValue("id")
		if !ok || id == "" {
			h.rd().renderError(w, r, http.StatusNotFound, "Unknown action")
			return
		}

		target := act.Target(sec.Endpoint, url.PathEscape(id))
		sent, answered := h.submit(w, r, sec, act, target)
		if answered {
			return
		}

		// Approving or rejecting an account should reach the user's waiting
		// page without waiting for the next tick.
		if sent && sec.Slug == "users" && h.nudger != nil {
			if n := h.nudger.Nudge(id); n > 0 {
				h.logger.Debug("nudged status sockets", "user_id", id, "sockets", n)
			}
		}
		middleware.Redirect(w, r, "/"+string(area)+"/"+sec.Slug)
	}
}

// SectionForm handles POST /{area}/{section}/{form}.
func (h *PageHandler) SectionForm(area nav.Area) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sec, ok := h.catalog.Section(area, r.PathValue("section"))
		if !ok {
			h.rd().renderError(w, r, http.StatusNotFound, "Page not found")
			return
		}
		form, ok := sec.Form(r.PathValue("form"))
		if !ok {
			h.rd().renderError(w, r, http.StatusNotFound, "Unknown form")
			return
		}

		sent, answered := h.submit(w, r, sec, form, form.Target(sec.Endpoint, ""))
		if answered {
			return
		}

		if sent && area == nav.AreaUser && sec.Slug == "profile" {
			h.refreshCookie(w, r)
		}
		middleware.Redirect(w, r, "/"+string(area)+"/"+sec.Slug)
	}
}

// submit sends act to target and leaves a flash message describing the
// outcome. sent reports whether the backend accepted it; answered is true
// when submit already wrote the response.
func (h *PageHandler) submit(w http.ResponseWriter, r *http.Request, sec nav.Section, act nav.Action, target string) (sent, answered bool) {
	s, _ := currentSession(r)

	if err := r.ParseForm(); err != nil {
		setFlash(w, r, "error", "Invalid form data")
		return false, false
	}
	body, err := act.Body(r.PostForm.Get)
	if err != nil {
		setFlash(w, r, "error", err.Error())
		return false, false
	}

	var payload any
	if body != nil {
		payload = body
	}
	env, err := h.backend.Send(r.Context(), act.Method, s.AccessToken, target, payload)
	if err != nil {
		if h.expired(w, r, err) {
			return false, true
		}
		h.logger.Error("section action", "section", sec.Slug, "action", act.Name, "target", target, "error", err)
		setFlash(w, r, "error", loadError(err, act.Label+" failed"))
		return false, false
	}

	msg := env.Message
	if msg == "" {
		msg = act.Label + " done"
	}
	h.logger.Info("section action", "section", sec.Slug, "action", act.Name, "target", target, "user_id", s.UserID)
	setFlash(w, r, "notice", msg)
	return true, false
}

// filters renders the section's filter fields with the current query.
// Select options with a source are fetched from the backend; a failed fetch
// leaves the filter as a free text input.
func (h *PageHandler) filters(r *http.Request, token string, sec nav.Section, query url.Values) []fieldInput {
	if len(sec.Filters) == 0 {
		return nil
	}
	out := make([]fieldInput, 0, len(sec.Filters))
	for _, f := range sec.Filters {
		in := fieldInput{Field: f, Value: query.Get(f.Name), Options: f.Options, Blank: "All"}
		if f.Source != "" {
			env, err := h.backend.Get(r.Context(), token, f.Source)
			var payload any
			if err == nil {
				err = env.Decode(&payload)
			}
			if err != nil {
				h.logger.Warn("load filter options", "section", sec.Slug, "filter", f.Name, "error", err)
			} else {
				in.Options = optionList(payload)
			}
		}
		out = append(out, in)
	}
	return out
}

// refreshCookie re-reads the profile so the header shows the new values.
func (h *PageHandler) refreshCookie(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(r)
	if !ok {
		return
	}
	next, err := h.backend.Refresh(r.Context(), s)
	if err != nil {
		h.logger.Warn("refresh after profile update", "user_id", s.UserID, "error", err)
		return
	}
	if _, err := h.cookies.Replace(w, r, next); err != nil {
		h.logger.Warn("reissue session", "user_id", s.UserID, "error", err)
	}
}

// expired clears the cookie and sends the user to log in again when the
// backend no longer accepts the session's token.
func (h *PageHandler) expired(w http.ResponseWriter, r *http.Request, err error) bool {
	if !errors.Is(err, backend.ErrUnauthorized) {
		return false
	}
	h.cookies.Clear(w, r)
	middleware.Redirect(w, r, access.RouteLogin.String()+"?expired=1")
	return true
}

// loadError is the message shown in the page for a failed backend call.
func loadError(err error, fallback string) string {
	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status >= 500 {
			return msgUnavailable
		}
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	return msgUnavailable
}

func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.rd().renderError(w, r, http.StatusNotFound, "Page not found")
}
