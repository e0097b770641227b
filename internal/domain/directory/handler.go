package directory

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/auth"
	"github.com/ehr/inpatient/internal/platform/respond"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleRegistrar, auth.RoleBedManager))
	read.GET("/users", h.ListUsers)
	read.GET("/users/:id", h.GetUser)
	read.GET("/departments", h.ListDepartments)
	read.GET("/departments/:id", h.GetDepartment)

	// The directory is owned elsewhere; local writes exist for sandboxes.
	write := api.Group("", auth.RequireRole(auth.RoleAdmin))
	write.POST("/users", h.CreateUser)
	write.POST("/departments", h.CreateDepartment)
}

type createUserRequest struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"omitempty,email"`
	Role  Role   `json:"role" validate:"required,oneof=PATIENT DOCTOR NURSE ADMIN"`
}

type createDepartmentRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=200"`
}

func (h *Handler) ListUsers(c echo.Context) error {
	role := Role(strings.ToUpper(c.QueryParam("role")))
	users, err := h.svc.ListUsers(c.Request().Context(), role)
	if err != nil {
		return err
	}
	return respond.OK(c, "Users retrieved", users)
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	u, err := h.svc.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "User retrieved", u)
}

func (h *Handler) CreateUser(c echo.Context) error {
	var req createUserRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	u := &User{Name: req.Name, Email: req.Email, Role: req.Role}
	if err := h.svc.CreateUser(c.Request().Context(), u); err != nil {
		return err
	}
	return respond.Created(c, "User created", u)
}

func (h *Handler) ListDepartments(c echo.Context) error {
	depts, err := h.svc.ListDepartments(c.Request().Context())
	if err != nil {
		return err
	}
	return respond.OK(c, "Departments retrieved", depts)
}

func (h *Handler) GetDepartment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return apperr.Validation("invalid id")
	}
	d, err := h.svc.GetDepartment(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Department retrieved", d)
}

func (h *Handler) CreateDepartment(c echo.Context) error {
	var req createDepartmentRequest
	if err := c.Bind(&req); err != nil {
		return apperr.Validation("invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	d := &Department{Code: req.Code, Name: req.Name}
	if err := h.svc.CreateDepartment(c.Request().Context(), d); err != nil {
		return err
	}
	return respond.Created(c, "Department created", d)
}
