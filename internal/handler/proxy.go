package handler

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/ssc-dashboards/portal/internal/auth"
	"github.com/ssc-dashboards/portal/internal/backend"
)

const maxProxyBody = 10 << 20

// ProxyHandler relays /api/admin, /api/user and /api/conferences requests
// to the backend with the caller's bearer token.
type ProxyHandler struct {
	backend *backend.Client
	logger  *slog.Logger
}

func NewProxyHandler(bc *backend.Client, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{backend: bc, logger: logger}
}

func (h *ProxyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token, fromCookie := bearer(r)
	if token == "" {
		writeEnvelope(w, http.StatusUnauthorized, "Unauthorized", nil)
		return
	}
	// A bearer header is checked by the backend itself; a cookie session
	// has to be an admin to reach admin endpoints through us.
	if fromCookie && strings.HasPrefix(r.URL.Path, "/api/admin/") && !auth.IsAdmin(r.Context()) {
		writeEnvelope(w, http.StatusForbidden, "Admin access required", nil)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxProxyBody)
	resp, err := h.backend.Forward(r.Context(), r.Method, r.URL.EscapedPath(), r.URL.RawQuery, token, body, r.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Error("proxy", "method", r.Method, "path", r.URL.Path, "error", err)
		msg := "Backend unavailable"
		if errors.Is(err, backend.ErrResponseTooLarge) {
			msg = "Server error: Response too large"
		}
		writeEnvelope(w, http.StatusBadGateway, msg, nil)
		return
	}
	if !jsonType(resp.ContentType) {
		h.logger.Warn("proxy non-JSON answer", "path", r.URL.Path, "status", resp.Status, "content_type", resp.ContentType)
		writeEnvelope(w, http.StatusBadGateway, "Server error: Invalid response format", nil)
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.Status)
	w.Write(resp.Body)
}

// bearer returns the token from the Authorization header, falling back to
// the session cookie. fromCookie reports which one was used.
func bearer(r *http.Request) (token string, fromCookie bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			if tok = strings.TrimSpace(tok); tok != "" {
				return tok, false
			}
		}
	}
	if s := auth.Session(r.Context()); s != nil && s.AccessToken != "" {
		return s.AccessToken, true
	}
	return "", false
}

func jsonType(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
