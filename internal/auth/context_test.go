package auth

import (
	"context"
	"testing"
	"time"

	"github.com/ssc-dashboards/portal/internal/access"
)

func TestWithAuthAndFromContext(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	ac := AuthContext{
		TokenID:   "tok-1",
		ExpiresAt: exp,
		Session:   &access.Session{UserID: "u1", Role: access.RoleDonor, Status: access.StatusApproved},
	}

	ctx := WithAuth(context.Background(), ac)
	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected AuthContext in context")
	}
	if got.TokenID != "tok-1" {
		t.Errorf("TokenID = %q, want %q", got.TokenID, "tok-1")
	}
	if !got.ExpiresAt.Equal(exp) {
		t.Errorf("ExpiresAt = %v, want %v", got.ExpiresAt, exp)
	}
	if UserID(ctx) != "u1" {
		t.Errorf("UserID = %q, want %q", UserID(ctx), "u1")
	}
}

func TestFromContextMissing(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected false for missing AuthContext")
	}
	if Session(context.Background()) != nil {
		t.Error("expected nil session for missing context")
	}
	if UserID(context.Background()) != "" {
		t.Error("expected empty user id for missing context")
	}
}

func TestIsAdmin(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{
		Session: &access.Session{Role: access.RoleAdmin, Status: access.StatusApproved},
	})
	if !IsAdmin(ctx) {
		t.Error("expected IsAdmin = true for admin role")
	}
}

func TestIsAdminFalse(t *testing.T) {
	ctx := WithAuth(context.Background(), AuthContext{
		Session: &access.Session{Role: access.RoleGeneral, Status: access.StatusApproved},
	})
	if IsAdmin(ctx) {
		t.Error("expected IsAdmin = false for general role")
	}
}

func TestIsAdminMissing(t *testing.T) {
	if IsAdmin(context.Background()) {
		t.Error("expected IsAdmin = false for missing context")
	}
}

func TestRequestID(t *testing.T) {
	if RequestID(context.Background()) != "" {
		t.Error("expected empty request id")
	}
	ctx := WithRequestID(context.Background(), "01HXYZ")
	if got := RequestID(ctx); got != "01HXYZ" {
		t.Errorf("RequestID = %q, want %q", got, "01HXYZ")
	}
}
