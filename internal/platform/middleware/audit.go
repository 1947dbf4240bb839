package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/casetrack/casetrack/internal/platform/auth"
)

// AccessEntry captures who touched which case-note resource, when and how.
// This is the HTTP access trail; the domain-level event log lives in
// internal/domain/event and is the source of truth for state transitions.
type AccessEntry struct {
	UserID     string
	UserRoles  []string
	Resource   string
	Action     string // read, create, update, search
	IPAddress  string
	Path       string
	Method     string
	Timestamp  time.Time
	RequestID  string
	StatusCode int
}

// AccessRecorder persists access entries. Tests provide a mock; production
// falls back to structured logging when none is given.
type AccessRecorder interface {
	RecordAccess(entry AccessEntry) error
}

// AccessRecorderFunc adapts a function to AccessRecorder.
type AccessRecorderFunc func(entry AccessEntry) error

func (f AccessRecorderFunc) RecordAccess(entry AccessEntry) error { return f(entry) }

// AccessLog records every /api/v1 request with the acting user, targeted
// resource and outcome status.
func AccessLog(logger zerolog.Logger, recorders ...AccessRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path
			if !strings.HasPrefix(path, "/api/v1") {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			rid, _ := c.Get("request_id").(string)
			entry := AccessEntry{
				UserID:     auth.UserIDFromContext(ctx),
				UserRoles:  auth.RolesFromContext(ctx),
				Resource:   resourceFromPath(path),
				Action:     actionFromMethod(req.Method),
				IPAddress:  c.RealIP(),
				Path:       path,
				Method:     req.Method,
				Timestamp:  time.Now().UTC(),
				RequestID:  rid,
				StatusCode: c.Response().Status,
			}

			recorded := false
			for _, r := range recorders {
				if rerr := r.RecordAccess(entry); rerr == nil {
					recorded = true
				} else {
					logger.Error().Err(rerr).
						Str("request_id", entry.RequestID).
						Msg("access recorder failed")
				}
			}
			if !recorded {
				logger.Info().
					Str("request_id", entry.RequestID).
					Str("user_id", entry.UserID).
					Str("resource", entry.Resource).
					Str("action", entry.Action).
					Int("status", entry.StatusCode).
					Msg("access")
			}

			return err
		}
	}
}

func resourceFromPath(path string) string {
	rest := strings.TrimPrefix(path, "/api/v1/")
	if i := strings.IndexByte(rest, '/'); i > 0 {
		return rest[:i]
	}
	return rest
}

func actionFromMethod(method string) string {
	switch method {
	case "GET":
		return "read"
	case "POST":
		return "create"
	case "PUT", "PATCH":
		return "update"
	case "DELETE":
		return "delete"
	default:
		return strings.ToLower(method)
	}
}
