package ward

import (
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/auth"
	"github.com/ehr/inpatient/internal/platform/respond"
	"github.com/ehr/inpatient/pkg/pagination"
)

type Handler struct {
	svc       *Service
	occupancy *OccupancyReporter
}

func NewHandler(svc *Service, occupancy *OccupancyReporter) *Handler {
	return &Handler{svc: svc, occupancy: occupancy}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleRegistrar, auth.RoleBedManager))
	read.GET("/wards", h.ListWards)
	read.GET("/wards/:id", h.GetWard)
	read.GET("/wards/:id/rooms", h.ListRooms)
	read.GET("/wards/:id/occupancy", h.WardOccupancy)
	read.GET("/occupancy", h.HospitalOccupancy)
	read.GET("/rooms/:id", h.GetRoom)
	read.GET("/rooms/:id/beds", h.ListRoomBeds)
	read.GET("/beds", h.ListBeds)
	read.GET("/beds/:id", h.GetBed)

	write := api.Group("", auth.RequireRole(auth.RoleBedManager))
	write.POST("/wards", h.CreateWard)
	write.PUT("/wards/:id", h.UpdateWard)
	write.DELETE("/wards/:id", h.DeleteWard)
	write.POST("/rooms", h.CreateRoom)
	write.PUT("/rooms/:id", h.UpdateRoom)
	write.DELETE("/rooms/:id", h.DeleteRoom)
	write.POST("/beds", h.CreateBed)
	write.PUT("/beds/:id", h.UpdateBed)
	write.DELETE("/beds/:id", h.DeleteBed)
}

type wardRequest struct {
	Name         string    `json:"name" validate:"required,max=200"`
	WardNumber   string    `json:"ward_number" validate:"required,max=32"`
	DepartmentID uuid.UUID `json:"department_id" validate:"required"`
	Capacity     int       `json:"capacity" validate:"gte=0"`
	Active       *bool     `json:"active"`
}

type roomRequest struct {
	RoomNumber string    `json:"room_number" validate:"required,max=32"`
	WardID     uuid.UUID `json:"ward_id" validate:"required"`
	RoomType   RoomType  `json:"room_type" validate:"omitempty,oneof=GENERAL SEMI_PRIVATE PRIVATE DELUXE ICU NICU PICU ISOLATION"`
	Capacity   int       `json:"capacity" validate:"gte=0"`
	DailyRate  float64   `json:"daily_rate" validate:"gte=0"`
	Active     *bool     `json:"active"`
}

type bedRequest struct {
	BedNumber string    `json:"bed_number" validate:"required,max=32"`
	RoomID    uuid.UUID `json:"room_id"`
	Status    BedStatus `json:"status" validate:"omitempty,oneof=AVAILABLE RESERVED MAINTENANCE CLEANING"`
	Notes     *string   `json:"notes" validate:"omitempty,max=1000"`
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return apperr.Validation("invalid request body")
	}
	return c.Validate(req)
}

func pathID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid id")
	}
	return id, nil
}

func activeOrDefault(v *bool) bool {
	return v == nil || *v
}

// -- Wards --

func (h *Handler) CreateWard(c echo.Context) error {
	var req wardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	w := &Ward{
		Name:         req.Name,
		WardNumber:   req.WardNumber,
		DepartmentID: req.DepartmentID,
		Capacity:     req.Capacity,
		Active:       activeOrDefault(req.Active),
	}
	if err := h.svc.CreateWard(c.Request().Context(), w); err != nil {
		return err
	}
	return respond.Created(c, "Ward created successfully", w)
}

func (h *Handler) GetWard(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	w, err := h.svc.GetWard(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Ward retrieved", w)
}

func (h *Handler) ListWards(c echo.Context) error {
	wards, err := h.svc.ListWards(c.Request().Context(), c.QueryParam("active") == "true")
	if err != nil {
		return err
	}
	return respond.OK(c, "Wards retrieved", wards)
}

func (h *Handler) UpdateWard(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req wardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	w := &Ward{
		ID:           id,
		Name:         req.Name,
		WardNumber:   req.WardNumber,
		DepartmentID: req.DepartmentID,
		Capacity:     req.Capacity,
		Active:       activeOrDefault(req.Active),
	}
	if err := h.svc.UpdateWard(c.Request().Context(), w); err != nil {
		return err
	}
	return respond.OK(c, "Ward updated successfully", w)
}

func (h *Handler) DeleteWard(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteWard(c.Request().Context(), id); err != nil {
		return err
	}
	return respond.OK(c, "Ward deleted successfully", nil)
}

func (h *Handler) WardOccupancy(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	occ, err := h.occupancy.WardOccupancy(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Ward occupancy retrieved", occ)
}

func (h *Handler) HospitalOccupancy(c echo.Context) error {
	occ, err := h.occupancy.HospitalOccupancy(c.Request().Context())
	if err != nil {
		return err
	}
	return respond.OK(c, "Hospital occupancy retrieved", occ)
}

// -- Rooms --

func (h *Handler) CreateRoom(c echo.Context) error {
	var req roomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	rm := &Room{
		RoomNumber: req.RoomNumber,
		WardID:     req.WardID,
		RoomType:   req.RoomType,
		Capacity:   req.Capacity,
		DailyRate:  req.DailyRate,
		Active:     activeOrDefault(req.Active),
	}
	if err := h.svc.CreateRoom(c.Request().Context(), rm); err != nil {
		return err
	}
	return respond.Created(c, "Room created successfully", rm)
}

func (h *Handler) GetRoom(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	rm, err := h.svc.GetRoom(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Room retrieved", rm)
}

func (h *Handler) ListRooms(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	rooms, err := h.svc.ListRooms(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Rooms retrieved", rooms)
}

func (h *Handler) UpdateRoom(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req roomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	rm := &Room{
		ID:         id,
		RoomNumber: req.RoomNumber,
		WardID:     req.WardID,
		RoomType:   req.RoomType,
		Capacity:   req.Capacity,
		DailyRate:  req.DailyRate,
		Active:     activeOrDefault(req.Active),
	}
	if err := h.svc.UpdateRoom(c.Request().Context(), rm); err != nil {
		return err
	}
	return respond.OK(c, "Room updated successfully", rm)
}

func (h *Handler) DeleteRoom(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteRoom(c.Request().Context(), id); err != nil {
		return err
	}
	return respond.OK(c, "Room deleted successfully", nil)
}

// -- Beds --

func (h *Handler) CreateBed(c echo.Context) error {
	var req bedRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.RoomID == uuid.Nil {
		return apperr.Validation("room_id is required")
	}
	b := &Bed{BedNumber: req.BedNumber, RoomID: req.RoomID, Status: req.Status, Notes: req.Notes}
	if err := h.svc.CreateBed(c.Request().Context(), b); err != nil {
		return err
	}
	return respond.Created(c, "Bed created successfully", b)
}

func (h *Handler) GetBed(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBed(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Bed retrieved", b)
}

func (h *Handler) ListBeds(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := BedFilter{Status: BedStatus(strings.ToUpper(c.QueryParam("status")))}
	for param, dst := range map[string]*uuid.UUID{"ward_id": &f.WardID, "room_id": &f.RoomID} {
		if v := c.QueryParam(param); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				return apperr.Validation("invalid %s", param)
			}
			*dst = id
		}
	}
	beds, total, err := h.svc.ListBeds(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Beds retrieved", pagination.NewResponse(beds, total, pg).WithNext(c.Request().URL.Path))
}

func (h *Handler) ListRoomBeds(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	beds, err := h.svc.ListBedsByRoom(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Beds retrieved", beds)
}

func (h *Handler) UpdateBed(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req bedRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if req.Status != "" {
		return apperr.Validation("bed status is changed through PATCH /beds/:id/status")
	}
	b := &Bed{ID: id, BedNumber: req.BedNumber, RoomID: req.RoomID, Notes: req.Notes}
	if err := h.svc.UpdateBed(c.Request().Context(), b); err != nil {
		return err
	}
	return respond.OK(c, "Bed updated successfully", b)
}

func (h *Handler) DeleteBed(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteBed(c.Request().Context(), id); err != nil {
		return err
	}
	return respond.OK(c, "Bed deleted successfully", nil)
}
