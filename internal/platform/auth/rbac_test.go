package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func contextWithRoles(roles ...string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), UserRolesKey, roles))
	return e.NewContext(req, httptest.NewRecorder())
}

func TestRequireRole_Allowed(t *testing.T) {
	c := contextWithRoles(RoleReceptionist)
	if err := RequireRole(RoleReceptionist, RoleDoctor)(okHandler)(c); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestRequireRole_Denied(t *testing.T) {
	c := contextWithRoles(RoleUser)
	err := RequireRole(RoleDoctor, RoleHeadDoctor)(okHandler)(c)
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_NoRoles(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	err := RequireRole(RoleDoctor)(okHandler)(c)
	expectStatus(t, err, http.StatusForbidden)
}

func TestRequireRole_AdminBypass(t *testing.T) {
	c := contextWithRoles(RoleAdmin)
	if err := RequireRole(RoleHeadDoctor)(okHandler)(c); err != nil {
		t.Error("admin should bypass role checks")
	}
}

func TestHasRole(t *testing.T) {
	tests := []struct {
		have []string
		want []string
		ok   bool
	}{
		{[]string{RoleDoctor}, []string{RoleDoctor, RoleHeadDoctor}, true},
		{[]string{RoleUser, RoleHeadDoctor}, []string{RoleHeadDoctor}, true},
		{[]string{RoleReceptionist}, []string{RoleHeadDoctor}, false},
		{nil, []string{RoleUser}, false},
		{[]string{RoleAdmin}, nil, true},
	}
	for _, tt := range tests {
		if got := HasRole(tt.have, tt.want...); got != tt.ok {
			t.Errorf("HasRole(%v, %v) = %v, want %v", tt.have, tt.want, got, tt.ok)
		}
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []string{RoleDoctor, RoleHeadDoctor, RoleReceptionist, RoleUser, RoleAdmin} {
		if !IsValidRole(r) {
			t.Errorf("expected %q to be valid", r)
		}
	}
	for _, r := range []string{"", "physician", "nurse", "ADMIN"} {
		if IsValidRole(r) {
			t.Errorf("expected %q to be invalid", r)
		}
	}
}

func TestUserIDFromContext(t *testing.T) {
	ctx := WithUser(context.Background(), "user-123", RoleDoctor)
	if uid := UserIDFromContext(ctx); uid != "user-123" {
		t.Errorf("expected user-123, got %s", uid)
	}
	if roles := RolesFromContext(ctx); len(roles) != 1 || roles[0] != RoleDoctor {
		t.Errorf("expected [doctor], got %v", roles)
	}
	if empty := UserIDFromContext(context.Background()); empty != "" {
		t.Errorf("expected empty string, got %s", empty)
	}
}
