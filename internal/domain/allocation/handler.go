package allocation

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/inpatient/internal/domain/ward"
	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/auth"
	"github.com/ehr/inpatient/internal/platform/respond"
)

// Handler exposes the administrative bed status endpoints. Claims and
// transfers are driven by the admission endpoints, not from here.
type Handler struct {
	engine *Engine
}

func NewHandler(engine *Engine) *Handler {
	return &Handler{engine: engine}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/beds", auth.RequireRole(auth.RoleBedManager, auth.RoleNurse))
	g.PATCH("/:id/status", h.ChangeStatus)
	g.POST("/:id/release", h.Release)
}

type statusRequest struct {
	Status ward.BedStatus `json:"status" validate:"required,oneof=AVAILABLE RESERVED MAINTENANCE CLEANING"`
}

type releaseRequest struct {
	Status ward.BedStatus `json:"status" validate:"omitempty,oneof=AVAILABLE CLEANING"`
}

func bedID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func (h *Handler) ChangeStatus(c echo.Context) error {
	id, err := bedID(c)
	if err != nil {
		return err
	}
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	bed, err := h.engine.ChangeStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return err
	}
	return respond.OK(c, "Bed status updated", bed)
}

// Release resets a bed whose admission already ended. Defaults to AVAILABLE.
func (h *Handler) Release(c echo.Context) error {
	id, err := bedID(c)
	if err != nil {
		return err
	}
	var req releaseRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	next := req.Status
	if next == "" {
		next = ward.BedAvailable
	}
	if err := h.engine.Release(c.Request().Context(), id, next); err != nil {
		return err
	}
	return respond.OK(c, "Bed released", map[string]interface{}{"id": id, "status": next})
}
