package event

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/casetrack/casetrack/internal/platform/auth"
	"github.com/casetrack/casetrack/pkg/pagination"
)

type Handler struct {
	recorder *Recorder
}

func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	role := auth.RequireRole(auth.RoleClinicAssist, auth.RoleMRStaff)
	api.GET("/requests/:id/events", h.Timeline, role)
	api.GET("/event-types", h.ListTypes, role)
}

// Timeline returns the audit trail of one request, oldest first.
func (h *Handler) Timeline(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.recorder.Timeline(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

// ListTypes returns the registered event type names.
func (h *Handler) ListTypes(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"types": h.recorder.Registry().Types(),
	})
}
