package handover

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/casetrack/casetrack/internal/platform/apperr"
	"github.com/casetrack/casetrack/internal/platform/auth"
	"github.com/casetrack/casetrack/pkg/pagination"
)

type Handler struct {
	svc      *Service
	validate *validator.Validate
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, validate: validator.New()}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	caGroup := api.Group("", auth.RequireRole(auth.RoleClinicAssist))
	caGroup.POST("/handovers", h.Initiate)
	caGroup.POST("/handovers/:id/confirm-receipt", h.ConfirmReceipt)
	caGroup.POST("/handover-requests", h.CreateRequest)
	caGroup.POST("/handover-requests/:id/respond", h.Respond)

	mrGroup := api.Group("", auth.RequireRole(auth.RoleMRStaff))
	mrGroup.POST("/handovers/:id/acknowledge", h.Acknowledge)
	mrGroup.POST("/handovers/:id/amend", h.Amend)

	// Physical transfer can be verified by MR staff or the requester's CA.
	verifyGroup := api.Group("", auth.RequireRole(auth.RoleClinicAssist, auth.RoleMRStaff))
	verifyGroup.POST("/handover-requests/:id/verify", h.Verify)

	readGroup := api.Group("", auth.RequireRole(auth.RoleClinicAssist, auth.RoleMRStaff))
	readGroup.GET("/handovers/:id", h.GetHandover)
	readGroup.GET("/requests/:id/handovers", h.ListByRequest)
	readGroup.GET("/handover-requests", h.ListRequests)
	readGroup.GET("/handover-requests/:id", h.GetRequest)
}

type initiateDTO struct {
	RequestID    uuid.UUID  `json:"request_id" validate:"required"`
	ToUserID     string     `json:"to_user_id" validate:"required"`
	DepartmentID uuid.UUID  `json:"department_id" validate:"required"`
	LocationID   *uuid.UUID `json:"location_id"`
	DoctorID     *uuid.UUID `json:"doctor_id"`
	Notes        *string    `json:"notes"`
}

type notesDTO struct {
	Notes *string `json:"notes"`
}

type amendDTO struct {
	DepartmentID *uuid.UUID `json:"department_id"`
	LocationID   *uuid.UUID `json:"location_id"`
	DoctorID     *uuid.UUID `json:"doctor_id"`
}

type createRequestDTO struct {
	CaseNoteID   uuid.UUID  `json:"case_note_id" validate:"required"`
	Reason       string     `json:"reason" validate:"required"`
	Priority     string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	DepartmentID uuid.UUID  `json:"department_id" validate:"required"`
	LocationID   *uuid.UUID `json:"location_id"`
	DoctorID     *uuid.UUID `json:"doctor_id"`
}

type respondDTO struct {
	Action string  `json:"action" validate:"required,oneof=approve reject"`
	Notes  *string `json:"notes"`
}

func (h *Handler) Initiate(c echo.Context) error {
	var dto initiateDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ho, err := h.svc.Initiate(c.Request().Context(), InitiateParams{
		RequestID:    dto.RequestID,
		FromUserID:   auth.UserIDFromContext(c.Request().Context()),
		ToUserID:     dto.ToUserID,
		DepartmentID: dto.DepartmentID,
		LocationID:   dto.LocationID,
		DoctorID:     dto.DoctorID,
		Notes:        dto.Notes,
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, ho)
}

func (h *Handler) Acknowledge(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto notesDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ho, err := h.svc.Acknowledge(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, ho)
}

func (h *Handler) ConfirmReceipt(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto notesDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ho, err := h.svc.ConfirmReceipt(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, ho)
}

func (h *Handler) Amend(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto amendDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	ho, err := h.svc.AmendDetails(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), AmendParams{
		DepartmentID: dto.DepartmentID,
		LocationID:   dto.LocationID,
		DoctorID:     dto.DoctorID,
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, ho)
}

func (h *Handler) CreateRequest(c echo.Context) error {
	var dto createRequestDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hr, err := h.svc.Request(c.Request().Context(), RequestParams{
		CaseNoteID:   dto.CaseNoteID,
		RequesterID:  auth.UserIDFromContext(c.Request().Context()),
		Reason:       dto.Reason,
		Priority:     dto.Priority,
		DepartmentID: dto.DepartmentID,
		LocationID:   dto.LocationID,
		DoctorID:     dto.DoctorID,
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, hr)
}

func (h *Handler) Respond(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto respondDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hr, err := h.svc.Respond(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Action == "approve", dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, hr)
}

func (h *Handler) Verify(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto notesDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	hr, err := h.svc.Verify(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, hr)
}

func (h *Handler) GetHandover(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ho, err := h.svc.GetHandover(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, ho)
}

func (h *Handler) ListByRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	items, err := h.svc.ListHandovers(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": items})
}

func (h *Handler) GetRequest(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	hr, err := h.svc.GetHandoverRequest(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, hr)
}

func (h *Handler) ListRequests(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := RequestFilter{Status: c.QueryParam("status")}
	if v := c.QueryParam("case_note_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid case_note_id")
		}
		f.CaseNoteID = &id
	}
	if v := c.QueryParam("requested_by"); v != "" {
		f.RequestedBy = &v
	}
	if v := c.QueryParam("holder"); v != "" {
		f.HolderID = &v
	}
	items, total, err := h.svc.ListHandoverRequests(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
