package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/casetrack/casetrack/internal/platform/auth"
)

func TestAccessLog_RecordsEntry(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil)
	ctx := context.WithValue(req.Context(), auth.UserIDKey, "mr-1")
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("request_id", "rid-1")

	var got AccessEntry
	recorder := AccessRecorderFunc(func(entry AccessEntry) error {
		got = entry
		return nil
	})

	logger := zerolog.New(os.Stderr)
	h := AccessLog(logger, recorder)(func(c echo.Context) error {
		return c.NoContent(http.StatusCreated)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.UserID != "mr-1" {
		t.Errorf("expected user mr-1, got %q", got.UserID)
	}
	if got.Resource != "requests" {
		t.Errorf("expected resource requests, got %q", got.Resource)
	}
	if got.Action != "create" {
		t.Errorf("expected action create, got %q", got.Action)
	}
	if got.StatusCode != http.StatusCreated {
		t.Errorf("expected status 201, got %d", got.StatusCode)
	}
}

func TestAccessLog_SkipsNonAPIPaths(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	called := false
	recorder := AccessRecorderFunc(func(entry AccessEntry) error {
		called = true
		return nil
	})

	logger := zerolog.New(os.Stderr)
	h := AccessLog(logger, recorder)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Error("expected recorder to be skipped for non-API path")
	}
}

func TestResourceFromPath(t *testing.T) {
	cases := map[string]string{
		"/api/v1/requests":              "requests",
		"/api/v1/requests/abc/events":   "requests",
		"/api/v1/batches":               "batches",
		"/api/v1/handover-requests/xyz": "handover-requests",
	}
	for path, want := range cases {
		if got := resourceFromPath(path); got != want {
			t.Errorf("resourceFromPath(%q) = %q, want %q", path, got, want)
		}
	}
}
