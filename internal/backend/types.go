package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ssc-dashboards/portal/internal/access"
)

var (
	// ErrInvalidCredentials is returned when a login is refused.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthorized is returned when the backend rejects the bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNonJSON is returned when the backend answers with something other
	// than a JSON document.
	ErrNonJSON = errors.New("non-JSON response from backend")
	// ErrResponseTooLarge is returned by Forward when the answer exceeds
	// the relay limit.
	ErrResponseTooLarge = errors.New("backend response too large")
)

// APIError is a non-2xx or success=false answer from the backend.
type APIError struct {
	Status  int
	Message string
	Err     error
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("backend status %d: %s", e.Status, msg)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// Envelope is the backend's response wrapper. Login and profile endpoints
// also put user and token at the top level.
type Envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	User    *User           `json:"user,omitempty"`
	Token   string          `json:"token,omitempty"`
}

// Decode unmarshals Data into v. A missing or null Data leaves v untouched.
func (e *Envelope) Decode(v any) error {
	if len(e.Data) == 0 || string(e.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}

// User is an account record as the backend returns it.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	Status       string `json:"status"`
	Image        string `json:"image,omitempty"`
	Address      string `json:"address,omitempty"`
	Phone        string `json:"phone,omitempty"`
	Organization string `json:"organization,omitempty"`
}

// UnmarshalJSON accepts numeric ids and Mongo-style "_id".
func (u *User) UnmarshalJSON(b []byte) error {
	type plain User
	var raw struct {
		plain
		ID    json.RawMessage `json:"id"`
		Mongo json.RawMessage `json:"_id"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*u = User(raw.plain)
	u.ID = rawID(raw.ID)
	if u.ID == "" {
		u.ID = rawID(raw.Mongo)
	}
	return nil
}

func rawID(b json.RawMessage) string {
	if len(b) == 0 || string(b) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		return n.String()
	}
	return strings.Trim(string(b), `"`)
}

// Session converts the user record and its bearer token into a session.
func (u User) Session(token string) access.Session {
	return access.Session{
		UserID:       u.ID,
		Role:         access.ParseRole(u.Role),
		Status:       access.ParseStatus(u.Status),
		Name:         u.Name,
		Email:        u.Email,
		Image:        u.Image,
		Address:      u.Address,
		Phone:        u.Phone,
		Organization: u.Organization,
		AccessToken:  token,
	}
}

// DashboardStats is the admin dashboard summary.
type DashboardStats struct {
	TotalUsers            int     `json:"totalUsers"`
	PendingApprovals      int     `json:"pendingApprovals"`
	TotalDonations        int     `json:"totalDonations"`
	DonationAmount        float64 `json:"donationAmount"`
	PendingVolunteers     int     `json:"pendingVolunteers"`
	PendingCollaborations int     `json:"pendingCollaborations"`
	PendingInterviews     int     `json:"pendingInterviews"`
	PendingMemberships    int     `json:"pendingMemberships"`
}

// adminUserPrefix marks sessions created by the admin login, which has no
// backend user record to refresh from.
const adminUserPrefix = "admin:"

func adminSession(username, token string) access.Session {
	return access.Session{
		UserID:      adminUserPrefix + username,
		Role:        access.RoleAdmin,
		Status:      access.StatusApproved,
		Name:        username,
		AccessToken: token,
	}
}

// IsAdminLogin reports whether s came from the admin login.
func IsAdminLogin(s access.Session) bool {
	return s.Role == access.RoleAdmin && strings.HasPrefix(s.UserID, adminUserPrefix)
}
