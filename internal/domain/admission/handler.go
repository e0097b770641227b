package admission

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/auth"
	"github.com/ehr/inpatient/internal/platform/respond"
	"github.com/ehr/inpatient/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	read := api.Group("", auth.RequireRole(auth.RolePhysician, auth.RoleNurse, auth.RoleRegistrar, auth.RoleBedManager))
	read.GET("/admissions", h.List)
	read.GET("/admissions/current", h.ListCurrent)
	read.GET("/admissions/:id", h.Get)
	read.GET("/admissions/:id/discharge-summary", h.GetSummary)
	read.GET("/admissions/:id/transfers", h.ListTransfers)
	read.GET("/admissions/:id/status-history", h.StatusHistory)
	read.GET("/patients/:id/admissions", h.ListByPatient)
	read.GET("/doctors/:id/patients", h.ListByDoctor)

	api.POST("/admissions", h.Admit, auth.RequireRole(auth.RoleRegistrar, auth.RolePhysician))
	api.POST("/admissions/:id/transfer", h.Transfer, auth.RequireRole(auth.RoleBedManager, auth.RolePhysician, auth.RoleNurse))
	api.POST("/admissions/:id/discharge-summary", h.CreateSummary, auth.RequireRole(auth.RolePhysician))
	api.POST("/admissions/:id/discharge", h.Discharge, auth.RequireRole(auth.RolePhysician))
	api.POST("/admissions/:id/abscond", h.Abscond, auth.RequireRole(auth.RolePhysician, auth.RoleNurse))
	api.POST("/admissions/:id/deceased", h.Deceased, auth.RequireRole(auth.RolePhysician))
}

type admitRequest struct {
	PatientID           uuid.UUID `json:"patient_id" validate:"required"`
	DoctorID            uuid.UUID `json:"doctor_id" validate:"required"`
	BedID               uuid.UUID `json:"bed_id" validate:"required"`
	Reason              string    `json:"reason" validate:"required,max=2000"`
	Diagnosis           string    `json:"diagnosis" validate:"max=2000"`
	Allergies           string    `json:"allergies" validate:"max=2000"`
	SpecialInstructions string    `json:"special_instructions" validate:"max=2000"`
	IsEmergency         bool      `json:"is_emergency"`
}

type transferRequest struct {
	NewBedID uuid.UUID `json:"new_bed_id" validate:"required"`
	Reason   string    `json:"reason" validate:"required,max=2000"`
}

type summaryRequest struct {
	DoctorID               uuid.UUID  `json:"doctor_id" validate:"required"`
	DischargeDate          *time.Time `json:"discharge_date"`
	FinalDiagnosis         string     `json:"final_diagnosis" validate:"required,max=4000"`
	TreatmentSummary       string     `json:"treatment_summary" validate:"max=8000"`
	FollowUpInstructions   string     `json:"follow_up_instructions" validate:"max=4000"`
	MedicationsAtDischarge string     `json:"medications_at_discharge" validate:"max=4000"`
}

type noteRequest struct {
	Note string `json:"note" validate:"max=2000"`
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

func actor(c echo.Context) string {
	return auth.UserIDFromContext(c.Request().Context())
}

func (h *Handler) Admit(c echo.Context) error {
	var req admitRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Admit(c.Request().Context(), AdmitRequest{
		PatientID:           req.PatientID,
		DoctorID:            req.DoctorID,
		BedID:               req.BedID,
		Reason:              req.Reason,
		Diagnosis:           req.Diagnosis,
		Allergies:           req.Allergies,
		SpecialInstructions: req.SpecialInstructions,
		IsEmergency:         req.IsEmergency,
		AdmittedBy:          actor(c),
	})
	if err != nil {
		return err
	}
	return respond.Created(c, "Patient admitted successfully", v)
}

func (h *Handler) Transfer(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req transferRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	v, err := h.svc.Transfer(c.Request().Context(), id, TransferRequest{
		NewBedID:      req.NewBedID,
		Reason:        req.Reason,
		TransferredBy: actor(c),
	})
	if err != nil {
		return err
	}
	return respond.OK(c, "Patient transferred successfully", v)
}

func (h *Handler) Discharge(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Discharge(c.Request().Context(), id, actor(c))
	if err != nil {
		return err
	}
	return respond.OK(c, "Patient discharged successfully", v)
}

func (h *Handler) Abscond(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req noteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	v, err := h.svc.MarkAbsconded(c.Request().Context(), id, actor(c), req.Note)
	if err != nil {
		return err
	}
	return respond.OK(c, "Admission marked as absconded", v)
}

func (h *Handler) Deceased(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req noteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	v, err := h.svc.MarkDeceased(c.Request().Context(), id, actor(c), req.Note)
	if err != nil {
		return err
	}
	return respond.OK(c, "Admission marked as deceased", v)
}

func (h *Handler) CreateSummary(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req summaryRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	sum := &DischargeSummary{
		AdmissionID:            id,
		DoctorID:               req.DoctorID,
		FinalDiagnosis:         req.FinalDiagnosis,
		TreatmentSummary:       req.TreatmentSummary,
		FollowUpInstructions:   req.FollowUpInstructions,
		MedicationsAtDischarge: req.MedicationsAtDischarge,
	}
	if req.DischargeDate != nil {
		sum.DischargeDate = req.DischargeDate.UTC()
	}
	if err := h.svc.CreateDischargeSummary(c.Request().Context(), sum); err != nil {
		return err
	}
	return respond.Created(c, "Discharge summary created successfully", sum)
}

func (h *Handler) GetSummary(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	sum, err := h.svc.GetSummary(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Discharge summary retrieved", sum)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	v, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Admission retrieved", v)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	status := Status(strings.ToUpper(c.QueryParam("status")))
	items, total, err := h.svc.List(c.Request().Context(), status, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Admissions retrieved", pagination.NewResponse(items, total, pg).WithNext(c.Request().URL.Path))
}

func (h *Handler) ListCurrent(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListCurrent(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Current admissions retrieved", pagination.NewResponse(items, total, pg).WithNext(c.Request().URL.Path))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Patient admissions retrieved", pagination.NewResponse(items, total, pg).WithNext(c.Request().URL.Path))
}

func (h *Handler) ListByDoctor(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByDoctor(c.Request().Context(), id, pg.Limit, pg.Offset)
	if err != nil {
		return err
	}
	return respond.OK(c, "Doctor patients retrieved", pagination.NewResponse(items, total, pg).WithNext(c.Request().URL.Path))
}

func (h *Handler) ListTransfers(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.ListTransfers(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Transfers retrieved", items)
}

func (h *Handler) StatusHistory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	items, err := h.svc.StatusHistory(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return respond.OK(c, "Status history retrieved", items)
}
