package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// DefaultOrigins are allowed to read content files when no list is configured.
var DefaultOrigins = []string{
	"https://ssc-web-pearl.vercel.app",
	"http://localhost:3000",
	"http://localhost:3001",
	"http://localhost:6020",
}

// Origins is the allow-list for the content file route.
type Origins struct {
	allowed []string
	website string
}

// NewOrigins builds the allow-list from allowed plus the website URL.
// An empty allowed falls back to DefaultOrigins.
func NewOrigins(allowed []string, website string) Origins {
	if len(allowed) == 0 {
		allowed = DefaultOrigins
	}
	list := make([]string, 0, len(allowed)+1)
	for _, o := range allowed {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o != "" && !slices.Contains(list, o) {
			list = append(list, o)
		}
	}
	website = strings.TrimRight(strings.TrimSpace(website), "/")
	if website != "" && !slices.Contains(list, website) {
		list = append(list, website)
	}
	return Origins{allowed: list, website: website}
}

// Pick returns the origin to answer with: the request origin if allowed,
// else the website URL if allowed, else the first allowed origin.
func (o Origins) Pick(requestOrigin string) string {
	if requestOrigin != "" && slices.Contains(o.allowed, requestOrigin) {
		return requestOrigin
	}
	if o.website != "" && slices.Contains(o.allowed, o.website) {
		return o.website
	}
	if len(o.allowed) > 0 {
		return o.allowed[0]
	}
	return ""
}

// ContentCORS sets the content route's CORS headers on every answer,
// errors included. OPTIONS answers 200 with headers only.
func ContentCORS(origins Origins) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origins.Pick(r.Header.Get("Origin")))
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "X-Requested-With, Content-Type, Accept, Authorization, Range")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CORS lets the public website call the JSON API with credentials.
// Other origins get no CORS headers.
func CORS(website string) func(http.Handler) http.Handler {
	website = strings.TrimRight(website, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && origin == website {
				h := w.Header()
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Credentials", "true")
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
				h.Set("Access-Control-Max-Age", "600")
				h.Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
