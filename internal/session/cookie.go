package session

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ssc-dashboards/portal/internal/access"
)

const CookieName = "portal_session"

// Revocations remembers token ids that were logged out early.
type Revocations interface {
	Revoke(id, userID string, expiresAt time.Time) error
	IsRevoked(id string) (bool, error)
}

// Cookies reads and writes the session cookie.
type Cookies struct {
	manager     *Manager
	revocations Revocations
	logger      *slog.Logger
}

func NewCookies(manager *Manager, revocations Revocations, logger *slog.Logger) *Cookies {
	return &Cookies{
		manager:     manager,
		revocations: revocations,
		logger:      logger,
	}
}

// Read returns the request's session token, or nil when the cookie is
// missing, invalid, expired or revoked.
func (c *Cookies) Read(r *http.Request) *Token {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil
	}

	tok, err := c.manager.Parse(cookie.Value)
	if err != nil {
		c.logger.Debug("discarding session cookie", "error", err)
		return nil
	}

	if c.revocations != nil {
		revoked, err := c.revocations.IsRevoked(tok.ID)
		if err != nil {
			c.logger.Error("check revocation", "error", err)
			return nil
		}
		if revoked {
			return nil
		}
	}
	return tok
}

// Write issues a token for s and sets it as the session cookie.
func (c *Cookies) Write(w http.ResponseWriter, r *http.Request, s access.Session) (*Token, error) {
	raw, tok, err := c.manager.Issue(s)
	if err != nil {
		return nil, err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    raw,
		Path:     "/",
		MaxAge:   int(c.manager.MaxAge() / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   r.TLS != nil,
	})
	return tok, nil
}

// Replace writes a cookie for s and revokes the token the request carried.
func (c *Cookies) Replace(w http.ResponseWriter, r *http.Request, s access.Session) (*Token, error) {
	old := c.Read(r)
	tok, err := c.Write(w, r, s)
	if err != nil {
		return nil, err
	}
	c.revoke(old)
	return tok, nil
}

// Clear revokes the current token, if any, and expires the cookie.
func (c *Cookies) Clear(w http.ResponseWriter, r *http.Request) {
	c.revoke(c.Read(r))

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Expires:  time.Unix(0, 0),
	})
}

func (c *Cookies) revoke(tok *Token) {
	if tok == nil || c.revocations == nil {
		return
	}
	if err := c.revocations.Revoke(tok.ID, tok.Session.UserID, tok.ExpiresAt); err != nil {
		c.logger.Error("revoke session", "error", err, "user_id", tok.Session.UserID)
	}
}
