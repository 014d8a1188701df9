package handler

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ssc-dashboards/portal/internal/access"
	"github.com/ssc-dashboards/portal/internal/auth"
	"github.com/ssc-dashboards/portal/internal/backend"
	"github.com/ssc-dashboards/portal/internal/middleware"
	"github.com/ssc-dashboards/portal/internal/session"
)

const (
	msgUnavailable = "The server is unavailable right now. Please try again later."
	msgRejected    = "Your account has been rejected. Please contact an administrator."
	msgUnknown     = "Your account status could not be determined. Please contact an administrator."
	msgExpired     = "Your session has expired. Please log in again."
)

type AuthHandler struct {
	backend   *backend.Client
	cookies   *session.Cookies
	templates map[string]*template.Template
	logger    *slog.Logger
}

func NewAuthHandler(bc *backend.Client, cookies *session.Cookies, tmpl map[string]*template.Template, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		backend:   bc,
		cookies:   cookies,
		templates: tmpl,
		logger:    logger,
	}
}

func (h *AuthHandler) rd() renderer {
	return renderer{templates: h.templates, logger: h.logger}
}

func loginData(r *http.Request, mode string) map[string]any {
	if mode != "admin" {
		mode = "user"
	}
	data := pageData(r, "Login")
	data["Mode"] = mode
	data["Email"] = ""
	data["Username"] = ""
	return data
}

// LoginPage renders the login form. Signed-in sessions that belong
// elsewhere are sent on; rejected and unrecognised ones see why they
// can't go further.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	s := auth.Session(r.Context())
	if route := access.Resolve(s); route != access.RouteLogin {
		middleware.Redirect(w, r, route.String())
		return
	}

	data := loginData(r, r.URL.Query().Get("mode"))
	switch {
	case access.IsRejected(s):
		data["Error"] = msgRejected
	case s != nil:
		data["Error"] = msgUnknown
	case r.URL.Query().Get("expired") != "":
		data["Notice"] = msgExpired
	}
	h.rd().render(w, http.StatusOK, "login.html", data)
}

// Login checks the credentials with the backend and issues the session
// cookie. mode=admin uses the admin login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		data := loginData(r, "user")
		data["Error"] = "Invalid form data"
		h.rd().render(w, http.StatusBadRequest, "login.html", data)
		return
	}

	mode := r.FormValue("mode")
	data := loginData(r, mode)
	password := r.FormValue("password")

	var (
		s   access.Session
		err error
	)
	if data["Mode"] == "admin" {
		username := strings.TrimSpace(r.FormValue("username"))
		data["Username"] = username
		if username == "" || password == "" {
			data["Error"] = "Username and password are required"
			h.rd().render(w, http.StatusBadRequest, "login.html", data)
			return
		}
		s, err = h.backend.AdminLogin(r.Context(), username, password)
	} else {
		email := strings.TrimSpace(r.FormValue("email"))
		data["Email"] = email
		if email == "" || password == "" {
			data["Error"] = "Email and password are required"
			h.rd().render(w, http.StatusBadRequest, "login.html", data)
			return
		}
		s, err = h.backend.Login(r.Context(), email, password)
	}

	if err != nil {
		if errors.Is(err, backend.ErrInvalidCredentials) {
			h.logger.Info("login refused", "mode", data["Mode"])
			data["Error"] = "Invalid credentials"
			h.rd().render(w, http.StatusUnauthorized, "login.html", data)
			return
		}
		h.logger.Error("login", "mode", data["Mode"], "error", err)
		data["Error"] = msgUnavailable
		h.rd().render(w, http.StatusBadGateway, "login.html", data)
		return
	}

	if _, err := h.cookies.Replace(w, r, s); err != nil {
		h.logger.Warn("issue session", "user_id", s.UserID, "error", err)
		data["Error"] = msgUnknown
		h.rd().render(w, http.StatusForbidden, "login.html", data)
		return
	}

	route := access.Resolve(&s)
	h.logger.Info("login", "user_id", s.UserID, "role", s.Role, "status", s.Status, "route", route)
	middleware.Redirect(w, r, route.String())
}

// Logout revokes the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.Clear(w, r)
	middleware.Redirect(w, r, access.RouteLogin.String())
}

type sessionUser struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Image        string `json:"image,omitempty"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Organization string `json:"organization,omitempty"`
}

type sessionDocument struct {
	User    sessionUser `json:"user"`
	Expires string      `json:"expires"`
}

// Session answers GET /api/auth/session with the current session, or {}
// when there is none. The bearer token stays server side.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	ac, ok := auth.FromContext(r.Context())
	if !ok || ac.Session == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	s := ac.Session
	writeJSON(w, http.StatusOK, sessionDocument{
		User: sessionUser{
			ID:           s.UserID,
			Name:         s.Name,
			Email:        s.Email,
			Image:        s.Image,
			Role:         s.Role.String(),
			Status:       s.Status.String(),
			Address:      s.Address,
			Phone:        s.Phone,
			Organization: s.Organization,
		},
		Expires: ac.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// Refresh re-reads the session's status from the backend, re-issues the
// cookie and sends the user where the fresh session belongs.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	s, ok := currentSession(r)
	if !ok {
		middleware.Redirect(w, r, access.RouteLogin.String())
		return
	}

	next, err := h.backend.Refresh(r.Context(), s)
	if err != nil {
		if errors.Is(err, backend.ErrUnauthorized) {
			h.cookies.Clear(w, r)
			middleware.Redirect(w, r, access.RouteLogin.String()+"?expired=1")
			return
		}
		h.logger.Error("refresh session", "user_id", s.UserID, "error", err)
		setFlash(w, r, "error", msgUnavailable)
		middleware.Redirect(w, r, access.Resolve(&s).String())
		return
	}

	if _, err := h.cookies.Replace(w, r, next); err != nil {
		h.logger.Warn("reissue session", "user_id", s.UserID, "error", err)
		h.cookies.Clear(w, r)
		middleware.Redirect(w, r, access.RouteLogin.String())
		return
	}
	if next.Status != s.Status || next.Role != s.Role {
		h.logger.Info("session status changed", "user_id", s.UserID, "from", s.Status, "to", next.Status, "role", next.Role)
	}
	middleware.Redirect(w, r, access.Resolve(&next).String())
}
