// Package access decides where a request belongs given the caller's session.
//
// Everything here is pure: no I/O, no global state. Callers decode the
// session from the request and pass it in explicitly.
package access

import (
	"strings"
	"time"
)

// Role is the functional category of an approved account.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleGeneral
	RoleDonor
	RoleVolunteer
	RoleCollaborator
)

var roleNames = map[Role]string{
	RoleAdmin:        "ADMIN",
	RoleGeneral:      "GENERAL",
	RoleDonor:        "DONOR",
	RoleVolunteer:    "VOLUNTEER",
	RoleCollaborator: "COLLABORATOR",
}

// ParseRole maps the backend's role string to a Role. Anything it does not
// recognise becomes RoleUnknown.
func ParseRole(s string) Role {
	s = strings.ToUpper(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == s {
			return r
		}
	}
	return RoleUnknown
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "UNKNOWN"
}

// Status is the approval stage of a registered account.
type Status int

const (
	// StatusMissing means the backend record carried no status at all.
	StatusMissing Status = iota
	StatusUnknown
	StatusPending
	StatusApproved
	StatusRejected
)

var statusNames = map[Status]string{
	StatusPending:  "PENDING",
	StatusApproved: "APPROVED",
	StatusRejected: "REJECTED",
}

// ParseStatus maps the backend's status string to a Status. The empty string
// is StatusMissing; any other unrecognised value is StatusUnknown.
func ParseStatus(s string) Status {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return StatusMissing
	}
	for st, name := range statusNames {
		if name == s {
			return st
		}
	}
	return StatusUnknown
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	if s == StatusMissing {
		return ""
	}
	return "UNKNOWN"
}

// Session is the authenticated identity of the current user. Role and Status
// are fixed when the session is created; a refresh yields a new value.
type Session struct {
	UserID       string
	Role         Role
	Status       Status
	Name         string
	Email        string
	Image        string
	Address      string
	Phone        string
	Organization string
	// AccessToken is the opaque bearer credential for backend calls.
	AccessToken string
	ExpiresAt   time.Time
}

// authenticated reports whether s counts as a signed-in session.
// A session without a status is treated as no session.
func (s *Session) authenticated() bool {
	return s != nil && s.Status != StatusMissing
}

// Route is one of the canonical destinations a session can resolve to.
type Route string

const (
	RouteLogin          Route = "/auth/login"
	RouteWaiting        Route = "/waiting"
	RouteAdminDashboard Route = "/admin/dashboard"
	RouteUserDashboard  Route = "/user/dashboard"
)

func (r Route) String() string { return string(r) }

// Resolve returns the single route the session belongs on.
func Resolve(s *Session) Route {
	if !s.authenticated() {
		return RouteLogin
	}
	switch s.Status {
	case StatusPending:
		return RouteWaiting
	case StatusRejected:
		return RouteLogin
	case StatusApproved:
		switch s.Role {
		case RoleAdmin:
			return RouteAdminDashboard
		case RoleGeneral, RoleDonor, RoleVolunteer, RoleCollaborator:
			return RouteUserDashboard
		case RoleUnknown:
			// Approved accounts with a role we don't know still get a dashboard.
			return RouteUserDashboard
		default:
			return RouteUserDashboard
		}
	default:
		return RouteLogin
	}
}

// area is the path prefix a route grants access to.
func (r Route) area() string {
	switch r {
	case RouteAdminDashboard:
		return "/admin/"
	case RouteUserDashboard:
		return "/user/"
	case RouteLogin:
		return "/auth/"
	default:
		return string(r)
	}
}

// Covers reports whether path lies inside the area of r, so a session
// resolving to r can stay on path without a redirect.
func (r Route) Covers(path string) bool {
	a := r.area()
	if strings.HasSuffix(a, "/") {
		return path == strings.TrimSuffix(a, "/") || strings.HasPrefix(path, a)
	}
	return path == a || strings.HasPrefix(path, a+"/")
}

// Redirect returns the route a request for path must be sent to, and false
// when the request may proceed where it is.
func Redirect(s *Session, path string) (Route, bool) {
	route := Resolve(s)
	if route.Covers(path) {
		return route, false
	}
	return route, true
}

// HasRole reports whether s is present and carries role.
func HasRole(s *Session, role Role) bool {
	return s.authenticated() && s.Role == role
}

// HasAnyRole reports whether s is present and its role is one of roles.
func HasAnyRole(s *Session, roles ...Role) bool {
	if !s.authenticated() {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

func IsApproved(s *Session) bool { return s.authenticated() && s.Status == StatusApproved }

func IsPending(s *Session) bool { return s.authenticated() && s.Status == StatusPending }

func IsRejected(s *Session) bool { return s.authenticated() && s.Status == StatusRejected }
