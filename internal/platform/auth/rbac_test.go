package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func doWithRoles(t *testing.T, roles []string, guard echo.MiddlewareFunc) int {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	ctx := context.WithValue(req.Context(), UserRolesKey, roles)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := guard(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		he, ok := err.(*echo.HTTPError)
		if !ok {
			t.Fatalf("unexpected error type: %v", err)
		}
		return he.Code
	}
	return rec.Code
}

func TestRequireRole_Allowed(t *testing.T) {
	if code := doWithRoles(t, []string{RoleMRStaff}, RequireRole(RoleMRStaff)); code != http.StatusOK {
		t.Errorf("expected 200, got %d", code)
	}
}

func TestRequireRole_AdminAlwaysPasses(t *testing.T) {
	if code := doWithRoles(t, []string{RoleAdmin}, RequireRole(RoleMRStaff)); code != http.StatusOK {
		t.Errorf("expected 200 for admin, got %d", code)
	}
}

func TestRequireRole_Forbidden(t *testing.T) {
	if code := doWithRoles(t, []string{RoleClinicAssist}, RequireRole(RoleMRStaff)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestRequireRole_NoRoles(t *testing.T) {
	if code := doWithRoles(t, nil, RequireRole(RoleClinicAssist)); code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", code)
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID string
	h := DevAuthMiddleware()(func(c echo.Context) error {
		gotID = UserIDFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "dev-user" {
		t.Errorf("expected dev-user, got %q", gotID)
	}
}

func TestDevAuthMiddleware_HeaderOverride(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Dev-User", "ca-7")
	req.Header.Set("X-Dev-Roles", "ca")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID string
	var gotRoles []string
	h := DevAuthMiddleware()(func(c echo.Context) error {
		gotID = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != "ca-7" {
		t.Errorf("expected ca-7, got %q", gotID)
	}
	if len(gotRoles) != 1 || gotRoles[0] != RoleClinicAssist {
		t.Errorf("expected [ca], got %v", gotRoles)
	}
}
