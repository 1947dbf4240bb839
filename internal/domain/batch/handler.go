package batch

import (
	"net/http"
	"time"

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
	caGroup.POST("/batches", h.Create)
	caGroup.POST("/batches/:id/verify-receipt", h.VerifyReceipt)

	readGroup := api.Group("", auth.RequireRole(auth.RoleClinicAssist, auth.RoleMRStaff))
	readGroup.GET("/batches", h.List)
	readGroup.GET("/batches/:id", h.Get)
}

type createBatchDTO struct {
	PatientIDs   []uuid.UUID `json:"patient_ids" validate:"required,min=1"`
	DepartmentID uuid.UUID   `json:"department_id" validate:"required"`
	LocationID   uuid.UUID   `json:"location_id" validate:"required"`
	Priority     string      `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Purpose      *string     `json:"purpose"`
	NeededBy     *time.Time  `json:"needed_by"`
}

type verifyReceiptDTO struct {
	RequestIDs []uuid.UUID `json:"request_ids" validate:"required,min=1"`
	Notes      *string     `json:"notes"`
}

func (h *Handler) Create(c echo.Context) error {
	var dto createBatchDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.Create(c.Request().Context(), CreateParams{
		RequesterID:  auth.UserIDFromContext(c.Request().Context()),
		PatientIDs:   dto.PatientIDs,
		DepartmentID: dto.DepartmentID,
		LocationID:   dto.LocationID,
		Priority:     dto.Priority,
		Purpose:      dto.Purpose,
		NeededBy:     dto.NeededBy,
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	withMembers := c.QueryParam("members") != "false"
	v, err := h.svc.Get(c.Request().Context(), id, withMembers)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, v)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Status: c.QueryParam("status")}
	if v := c.QueryParam("requested_by"); v != "" {
		f.RequestedBy = &v
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) VerifyReceipt(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto verifyReceiptDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	v, err := h.svc.VerifyReceipt(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.RequestIDs, dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, v)
}
