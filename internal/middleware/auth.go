package middleware

import (
	"net/http"

	"github.com/ssc-dashboards/portal/internal/access"
	"github.com/ssc-dashboards/portal/internal/auth"
	"github.com/ssc-dashboards/portal/internal/metrics"
	"github.com/ssc-dashboards/portal/internal/session"
)

// SessionReader decodes the session cookie of a request.
type SessionReader interface {
	Read(r *http.Request) *session.Token
}

// LoadSession decodes the session cookie, when there is a usable one, and
// populates AuthContext. Anonymous requests pass through untouched.
func LoadSession(cookies SessionReader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := cookies.Read(r)
			if tok == nil {
				next.ServeHTTP(w, r)
				return
			}
			ac := auth.AuthContext{
				TokenID:   tok.ID,
				ExpiresAt: tok.ExpiresAt,
				Session:   tok.Session,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireRoute sends the request to the route its session resolves to
// unless the path already lies inside that route's area.
// HTMX-aware: returns HX-Redirect header instead of 303 redirect for HTMX requests.
func RequireRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, redirect := access.Redirect(auth.Session(r.Context()), r.URL.Path)
		metrics.ObserveRoute(route.String(), redirect)
		if redirect {
			Redirect(w, r, route.String())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin checks that the authenticated user has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Redirect sends the client to url, using HX-Redirect for HTMX requests.
func Redirect(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}
