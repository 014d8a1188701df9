package session

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ssc-dashboards/portal/internal/access"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(testSecret, opts...)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	return m
}

func testSession() access.Session {
	return access.Session{
		UserID:       "user-42",
		Role:         access.RoleVolunteer,
		Status:       access.StatusApproved,
		Name:         "Asha",
		Email:        "asha@example.com",
		Organization: "SSC",
		AccessToken:  "backend-bearer-token",
	}
}

func TestIssueAndParse(t *testing.T) {
	m := newTestManager(t)

	raw, issued, err := m.Issue(testSession())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issued.ID == "" {
		t.Error("expected token id")
	}

	tok, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tok.ID != issued.ID {
		t.Errorf("ID = %q, want %q", tok.ID, issued.ID)
	}
	s := tok.Session
	if s.UserID != "user-42" {
		t.Errorf("UserID = %q, want %q", s.UserID, "user-42")
	}
	if s.Role != access.RoleVolunteer {
		t.Errorf("Role = %v, want VOLUNTEER", s.Role)
	}
	if s.Status != access.StatusApproved {
		t.Errorf("Status = %v, want APPROVED", s.Status)
	}
	if s.Email != "asha@example.com" {
		t.Errorf("Email = %q, want %q", s.Email, "asha@example.com")
	}
	if s.AccessToken != "backend-bearer-token" {
		t.Errorf("AccessToken = %q, want %q", s.AccessToken, "backend-bearer-token")
	}
	if !tok.ExpiresAt.Equal(issued.ExpiresAt) {
		t.Errorf("ExpiresAt = %v, want %v", tok.ExpiresAt, issued.ExpiresAt)
	}
}

func TestAccessTokenNotInCookie(t *testing.T) {
	m := newTestManager(t)

	raw, _, err := m.Issue(testSession())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if strings.Contains(raw, "backend-bearer-token") {
		t.Error("bearer token visible in cookie value")
	}
}

func TestIssueRequiresStatus(t *testing.T) {
	m := newTestManager(t)

	s := testSession()
	s.Status = access.StatusMissing
	if _, _, err := m.Issue(s); err == nil {
		t.Error("expected error for session without status")
	}
}

func TestParseExpired(t *testing.T) {
	now := time.Now()
	m := newTestManager(t, WithMaxAge(time.Hour), WithClock(func() time.Time { return now }))

	raw, _, err := m.Issue(testSession())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, err := m.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseWrongSecret(t *testing.T) {
	m := newTestManager(t)
	other, err := NewManager("another-secret-of-enough-length")
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	raw, _, err := m.Issue(testSession())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := other.Parse(raw); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestParseGarbage(t *testing.T) {
	m := newTestManager(t)

	for _, raw := range []string{"", "   ", "not-a-jwt", "a.b.c"} {
		if _, err := m.Parse(raw); !errors.Is(err, ErrInvalidToken) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidToken", raw, err)
		}
	}
}

func TestNewManagerShortSecret(t *testing.T) {
	if _, err := NewManager("short"); err == nil {
		t.Error("expected error for short secret")
	}
}

func TestUnknownRoleSurvivesRoundTrip(t *testing.T) {
	m := newTestManager(t)

	s := testSession()
	s.Role = access.RoleUnknown
	raw, _, err := m.Issue(s)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	tok, err := m.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if got := access.Resolve(tok.Session); got != access.RouteUserDashboard {
		t.Errorf("Resolve = %q, want %q", got, access.RouteUserDashboard)
	}
}
