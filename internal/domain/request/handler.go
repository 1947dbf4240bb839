package request

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
	// Clinic assistants open and work requests; MR staff approve and verify.
	caGroup := api.Group("", auth.RequireRole(auth.RoleClinicAssist))
	caGroup.POST("/requests", h.Create)
	caGroup.POST("/requests/:id/receive", h.MarkReceived)
	caGroup.POST("/requests/:id/start", h.MarkInProgress)
	caGroup.POST("/requests/:id/complete", h.Complete)
	caGroup.POST("/requests/:id/return", h.MarkReturned)
	caGroup.POST("/requests/:id/send-out", h.MarkSentOut)
	caGroup.POST("/requests/:id/filing", h.SubmitFiling)

	mrGroup := api.Group("", auth.RequireRole(auth.RoleMRStaff))
	mrGroup.POST("/requests/:id/approve", h.Approve)
	mrGroup.POST("/requests/:id/reject", h.Reject)
	mrGroup.POST("/requests/:id/reject-not-received", h.RejectNotReceived)
	mrGroup.POST("/requests/:id/verify-return", h.VerifyReturn)
	mrGroup.POST("/requests/:id/filing/resolve", h.ResolveFiling)

	readGroup := api.Group("", auth.RequireRole(auth.RoleClinicAssist, auth.RoleMRStaff))
	readGroup.GET("/requests", h.List)
	readGroup.GET("/requests/:id", h.Get)
	readGroup.GET("/requests/number/:number", h.GetByNumber)
}

type createRequestDTO struct {
	PatientID    uuid.UUID  `json:"patient_id" validate:"required"`
	DepartmentID uuid.UUID  `json:"department_id" validate:"required"`
	LocationID   uuid.UUID  `json:"location_id" validate:"required"`
	DoctorID     *uuid.UUID `json:"doctor_id"`
	Priority     string     `json:"priority" validate:"omitempty,oneof=low normal high urgent"`
	Purpose      *string    `json:"purpose"`
	NeededBy     *time.Time `json:"needed_by"`
	BatchID      *uuid.UUID `json:"batch_id"`
}

type remarksDTO struct {
	Remarks *string `json:"remarks"`
}

type reasonDTO struct {
	Reason string `json:"reason" validate:"required"`
}

type notesDTO struct {
	Notes *string `json:"notes"`
}

type verifyReturnDTO struct {
	Accept bool    `json:"accept"`
	Notes  *string `json:"notes"`
}

type resolveFilingDTO struct {
	Approve bool    `json:"approve"`
	Notes   *string `json:"notes"`
}

type sendOutDTO struct {
	ToPerson     *string    `json:"to_person"`
	ToLocationID *uuid.UUID `json:"to_location_id"`
}

func (h *Handler) Create(c echo.Context) error {
	var dto createRequestDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Create(c.Request().Context(), CreateParams{
		PatientID:    dto.PatientID,
		DepartmentID: dto.DepartmentID,
		LocationID:   dto.LocationID,
		DoctorID:     dto.DoctorID,
		Priority:     dto.Priority,
		Purpose:      dto.Purpose,
		NeededBy:     dto.NeededBy,
		BatchID:      dto.BatchID,
		RequesterID:  auth.UserIDFromContext(c.Request().Context()),
	})
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusCreated, r)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) GetByNumber(c echo.Context) error {
	r, err := h.svc.GetByNumber(c.Request().Context(), c.Param("number"))
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := Filter{Status: c.QueryParam("status")}
	if v := c.QueryParam("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient_id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("department_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid department_id")
		}
		f.DepartmentID = &id
	}
	if v := c.QueryParam("holder"); v != "" {
		f.HolderUserID = v
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Approve(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto remarksDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Approve(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Remarks)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Reject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto reasonDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Reject(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Reason)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) MarkReceived(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto notesDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.MarkReceived(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) MarkInProgress(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.MarkInProgress(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) Complete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto notesDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.Complete(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) MarkReturned(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto notesDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.MarkReturned(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) VerifyReturn(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto verifyReturnDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.VerifyReturn(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Accept, dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) RejectNotReceived(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto reasonDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.validate.Struct(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.RejectNotReceived(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Reason)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) SubmitFiling(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	r, err := h.svc.SubmitFiling(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()))
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) ResolveFiling(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto resolveFilingDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.ResolveFiling(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.Approve, dto.Notes)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}

func (h *Handler) MarkSentOut(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var dto sendOutDTO
	if err := c.Bind(&dto); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	r, err := h.svc.MarkSentOut(c.Request().Context(), id, auth.UserIDFromContext(c.Request().Context()), dto.ToPerson, dto.ToLocationID)
	if err != nil {
		return echo.NewHTTPError(apperr.HTTPStatus(err), err.Error())
	}
	return c.JSON(http.StatusOK, r)
}
