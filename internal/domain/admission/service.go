package admission

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/inpatient/internal/domain/allocation"
	"github.com/ehr/inpatient/internal/domain/directory"
	"github.com/ehr/inpatient/internal/domain/ward"
	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/metrics"
	"github.com/ehr/inpatient/internal/platform/notification"
)

// ErrSummaryRequired is wrapped by the PreconditionFailed returned when a
// discharge is attempted before the discharge summary exists.
var ErrSummaryRequired = errors.New("discharge summary required")

// Directory resolves patients and doctors.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*directory.User, error)
	RequireRole(ctx context.Context, id uuid.UUID, role directory.Role) (*directory.User, error)
}

// BedLocator places a bed in its room and ward for read views.
type BedLocator interface {
	LocateBed(ctx context.Context, bedID uuid.UUID) (*ward.BedLocation, error)
}

// Notifier sends best-effort patient emails.
type Notifier interface {
	Notify(ctx context.Context, templateID, recipient string, data map[string]string)
}

// Lifecycle events delivered to the EventSink after a change commits.
const (
	EventAdmitted    = "admission.admitted"
	EventTransferred = "admission.transferred"
	EventEnded       = "admission.ended"
)

// EventSink receives committed lifecycle changes.
type EventSink interface {
	AdmissionChanged(ctx context.Context, event string, v *View)
}

// Service drives admissions through admit, transfer and discharge. Every
// change of bed occupancy goes through the allocation engine.
type Service struct {
	repo     Repository
	engine   *allocation.Engine
	seq      *SequenceGenerator
	dir      Directory
	beds     BedLocator
	notifier Notifier
	events   EventSink
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, engine *allocation.Engine, dir Directory, beds BedLocator) *Service {
	return &Service{
		repo:   repo,
		engine: engine,
		seq:    NewSequenceGenerator(repo),
		dir:    dir,
		beds:   beds,
		logger: zerolog.Nop(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

func (s *Service) SetEventSink(e EventSink) { s.events = e }

func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

func (s *Service) SetLogger(l zerolog.Logger) {
	s.logger = l.With().Str("component", "admission").Logger()
}

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// Admit claims the bed, numbers the admission and stores it as one unit.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (v *View, err error) {
	defer func(start time.Time) { s.observe(ctx, "admit", start, err) }(time.Now())

	if req.BedID == uuid.Nil {
		return nil, apperr.Validation("bed_id is required")
	}
	if strings.TrimSpace(req.Reason) == "" {
		return nil, apperr.Validation("reason is required")
	}
	patient, err := s.dir.RequireRole(ctx, req.PatientID, directory.RolePatient)
	if err != nil {
		return nil, err
	}
	doctor, err := s.dir.RequireRole(ctx, req.DoctorID, directory.RoleDoctor)
	if err != nil {
		return nil, err
	}

	a := &Admission{
		PatientID:           patient.ID,
		DoctorID:            doctor.ID,
		BedID:               req.BedID,
		Reason:              strings.TrimSpace(req.Reason),
		Diagnosis:           req.Diagnosis,
		Allergies:           req.Allergies,
		SpecialInstructions: req.SpecialInstructions,
		IsEmergency:         req.IsEmergency,
		Status:              StatusAdmitted,
	}
	err = s.engine.DoForPatient(ctx, patient.ID, []uuid.UUID{req.BedID}, func(ctx context.Context) error {
		current, _, err := s.repo.List(ctx, Filter{Status: StatusAdmitted, PatientID: patient.ID}, 1, 0)
		if err != nil {
			return err
		}
		if len(current) > 0 {
			return apperr.Conflict("Patient already has an active admission")
		}
		if _, err := s.engine.Claim(ctx, req.BedID); err != nil {
			return err
		}
		a.AdmissionDate = s.now()
		if a.AdmissionNumber, err = s.seq.Next(ctx, a.AdmissionDate.Year()); err != nil {
			return err
		}
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		return s.repo.AddStatusChange(ctx, &StatusChange{
			AdmissionID: a.ID,
			ToStatus:    StatusAdmitted,
			ChangedBy:   req.AdmittedBy,
			Note:        "admitted",
			ChangedAt:   a.AdmissionDate,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("admission_id", a.ID.String()).
		Str("admission_number", a.AdmissionNumber).
		Str("bed_id", a.BedID.String()).
		Msg("patient admitted")

	v = s.view(ctx, a)
	s.publish(ctx, EventAdmitted, v)
	s.notify(ctx, notification.TemplateAdmissionConfirmation, patient, map[string]string{
		"admission_number": a.AdmissionNumber,
		"patient_name":     patient.Name,
		"doctor_name":      doctor.Name,
		"admission_date":   a.AdmissionDate.Format("2006-01-02 15:04"),
		"ward_name":        v.WardName,
		"room_number":      v.RoomNumber,
		"bed_number":       v.BedNumber,
	})
	return v, nil
}

// Transfer moves an ADMITTED admission to another bed. The new bed claim,
// the old bed release and the admission's bed pointer change together or not
// at all.
func (s *Service) Transfer(ctx context.Context, id uuid.UUID, req TransferRequest) (v *View, err error) {
	defer func(start time.Time) { s.observe(ctx, "transfer", start, err) }(time.Now())

	if req.NewBedID == uuid.Nil {
		return nil, apperr.Validation("new_bed_id is required")
	}
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusAdmitted {
		return nil, apperr.Precondition("Only ADMITTED admissions can be transferred, admission is %s", a.Status)
	}
	if a.BedID == req.NewBedID {
		return nil, apperr.Validation("Patient is already in this bed")
	}
	fromBed := a.BedID

	err = s.engine.Do(ctx, []uuid.UUID{fromBed, req.NewBedID}, func(ctx context.Context) error {
		locked, err := s.lockAdmitted(ctx, id, fromBed)
		if err != nil {
			return err
		}
		if err := s.engine.Transfer(ctx, fromBed, req.NewBedID, locked.ID); err != nil {
			return err
		}
		if err := s.repo.UpdateBed(ctx, locked.ID, req.NewBedID); err != nil {
			return err
		}
		now := s.now()
		if err := s.repo.CreateTransfer(ctx, &BedTransfer{
			AdmissionID:   locked.ID,
			FromBedID:     fromBed,
			ToBedID:       req.NewBedID,
			Reason:        req.Reason,
			TransferredBy: req.TransferredBy,
			TransferredAt: now,
		}); err != nil {
			return err
		}
		if err := s.repo.AddStatusChange(ctx, &StatusChange{
			AdmissionID: locked.ID,
			FromStatus:  StatusAdmitted,
			ToStatus:    StatusTransferred,
			ChangedBy:   req.TransferredBy,
			Note:        req.Reason,
			ChangedAt:   now,
		}); err != nil {
			return err
		}
		return s.repo.AddStatusChange(ctx, &StatusChange{
			AdmissionID: locked.ID,
			FromStatus:  StatusTransferred,
			ToStatus:    StatusAdmitted,
			ChangedBy:   req.TransferredBy,
			Note:        "admitted to new bed",
			ChangedAt:   now,
		})
	})
	if err != nil {
		return nil, err
	}

	a.BedID = req.NewBedID
	s.logger.Info().
		Str("admission_id", a.ID.String()).
		Str("from_bed_id", fromBed.String()).
		Str("to_bed_id", req.NewBedID.String()).
		Msg("patient transferred")

	v = s.view(ctx, a)
	s.publish(ctx, EventTransferred, v)
	if patient, err := s.dir.GetUser(ctx, a.PatientID); err == nil {
		s.notify(ctx, notification.TemplateTransferNotice, patient, map[string]string{
			"admission_number": a.AdmissionNumber,
			"patient_name":     patient.Name,
			"ward_name":        v.WardName,
			"room_number":      v.RoomNumber,
			"bed_number":       v.BedNumber,
			"reason":           req.Reason,
		})
	}
	return v, nil
}

// Discharge ends an ADMITTED stay. The discharge summary must already exist;
// the bed goes to CLEANING.
func (s *Service) Discharge(ctx context.Context, id uuid.UUID, by string) (v *View, err error) {
	defer func(start time.Time) { s.observe(ctx, "discharge", start, err) }(time.Now())

	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusAdmitted {
		return nil, apperr.Precondition("Only ADMITTED admissions can be discharged, admission is %s", a.Status)
	}
	summary, err := s.requireSummary(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.end(ctx, a, StatusDischarged, by, "discharged"); err != nil {
		return nil, err
	}

	v = s.view(ctx, a)
	s.publish(ctx, EventEnded, v)
	if patient, err := s.dir.GetUser(ctx, a.PatientID); err == nil {
		s.notify(ctx, notification.TemplateDischargeNotice, patient, map[string]string{
			"admission_number": a.AdmissionNumber,
			"patient_name":     patient.Name,
			"discharge_date":   a.DischargeDate.Format("2006-01-02 15:04"),
			"follow_up":        summary.FollowUpInstructions,
		})
	}
	return v, nil
}

// MarkAbsconded records that the patient left without being discharged.
func (s *Service) MarkAbsconded(ctx context.Context, id uuid.UUID, by, note string) (*View, error) {
	return s.terminate(ctx, id, StatusAbsconded, by, note)
}

// MarkDeceased records the death of the patient during the stay.
func (s *Service) MarkDeceased(ctx context.Context, id uuid.UUID, by, note string) (*View, error) {
	return s.terminate(ctx, id, StatusDeceased, by, note)
}

func (s *Service) terminate(ctx context.Context, id uuid.UUID, status Status, by, note string) (v *View, err error) {
	defer func(start time.Time) { s.observe(ctx, strings.ToLower(string(status)), start, err) }(time.Now())

	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusAdmitted {
		return nil, apperr.Precondition("Only ADMITTED admissions can be marked %s, admission is %s", status, a.Status)
	}
	if note == "" {
		note = strings.ToLower(string(status))
	}
	if err := s.end(ctx, a, status, by, note); err != nil {
		return nil, err
	}
	v = s.view(ctx, a)
	s.publish(ctx, EventEnded, v)
	return v, nil
}

// end moves a to a terminal status and sends its bed to CLEANING. a is
// updated in place on success.
func (s *Service) end(ctx context.Context, a *Admission, status Status, by, note string) error {
	bedID := a.BedID
	var endedAt time.Time
	err := s.engine.Do(ctx, []uuid.UUID{bedID}, func(ctx context.Context) error {
		locked, err := s.lockAdmitted(ctx, a.ID, bedID)
		if err != nil {
			return err
		}
		if status == StatusDischarged {
			if _, err := s.requireSummary(ctx, locked.ID); err != nil {
				return err
			}
		}
		endedAt = s.now()
		if err := s.repo.UpdateStatus(ctx, locked.ID, status, &endedAt); err != nil {
			return err
		}
		if err := s.repo.AddStatusChange(ctx, &StatusChange{
			AdmissionID: locked.ID,
			FromStatus:  StatusAdmitted,
			ToStatus:    status,
			ChangedBy:   by,
			Note:        note,
			ChangedAt:   endedAt,
		}); err != nil {
			return err
		}
		return s.engine.Release(ctx, bedID, ward.BedCleaning)
	})
	if err != nil {
		return err
	}
	a.Status = status
	a.DischargeDate = &endedAt
	s.logger.Info().
		Str("admission_id", a.ID.String()).
		Str("bed_id", bedID.String()).
		Str("status", string(status)).
		Msg("admission ended")
	return nil
}

// lockAdmitted re-reads the admission inside the unit and checks it is still
// ADMITTED on bedID; a concurrent transfer or discharge may have won the race
// between the caller's first read and the lock.
func (s *Service) lockAdmitted(ctx context.Context, id, bedID uuid.UUID) (*Admission, error) {
	a, err := s.repo.GetForUpdate(ctx, id)
	if err != nil {
		return nil, notFound(err, "Admission not found")
	}
	if a.Status != StatusAdmitted {
		return nil, apperr.Precondition("Admission is no longer ADMITTED (now %s)", a.Status)
	}
	if a.BedID != bedID {
		return nil, apperr.Conflict("Admission was moved to another bed, please retry")
	}
	return a, nil
}

func (s *Service) requireSummary(ctx context.Context, admissionID uuid.UUID) (*DischargeSummary, error) {
	summary, err := s.repo.GetSummary(ctx, admissionID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.Wrap(apperr.KindPrecondition, ErrSummaryRequired,
				"Discharge summary must be created before discharge")
		}
		return nil, err
	}
	return summary, nil
}

// CreateDischargeSummary attaches the summary a discharge requires. Only one
// summary may exist per admission.
func (s *Service) CreateDischargeSummary(ctx context.Context, sum *DischargeSummary) error {
	if strings.TrimSpace(sum.FinalDiagnosis) == "" {
		return apperr.Validation("final_diagnosis is required")
	}
	a, err := s.get(ctx, sum.AdmissionID)
	if err != nil {
		return err
	}
	if a.Status != StatusAdmitted {
		return apperr.Precondition("Discharge summary can only be created for ADMITTED admissions")
	}
	if _, err := s.dir.RequireRole(ctx, sum.DoctorID, directory.RoleDoctor); err != nil {
		return err
	}
	if _, err := s.repo.GetSummary(ctx, a.ID); err == nil {
		return apperr.Conflict("Discharge summary already exists for this admission")
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return err
	}
	if sum.DischargeDate.IsZero() {
		sum.DischargeDate = s.now()
	}
	return s.repo.CreateSummary(ctx, sum)
}

func (s *Service) GetSummary(ctx context.Context, admissionID uuid.UUID) (*DischargeSummary, error) {
	if _, err := s.get(ctx, admissionID); err != nil {
		return nil, err
	}
	sum, err := s.repo.GetSummary(ctx, admissionID)
	if err != nil {
		return nil, notFound(err, "Discharge summary not found")
	}
	return sum, nil
}

// Get returns one admission with its location and whether it has a summary.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*View, error) {
	a, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	v := s.view(ctx, a)
	_, err = s.repo.GetSummary(ctx, id)
	has := err == nil
	v.HasDischargeSummary = &has
	return v, nil
}

func (s *Service) List(ctx context.Context, status Status, limit, offset int) ([]*View, int, error) {
	if status != "" && !status.Valid() {
		return nil, 0, apperr.Validation("invalid status: %s", status)
	}
	return s.list(ctx, Filter{Status: status}, limit, offset)
}

// ListCurrent returns the admissions that currently hold a bed.
func (s *Service) ListCurrent(ctx context.Context, limit, offset int) ([]*View, int, error) {
	return s.list(ctx, Filter{Status: StatusAdmitted}, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*View, int, error) {
	if _, err := s.dir.RequireRole(ctx, patientID, directory.RolePatient); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, Filter{PatientID: patientID}, limit, offset)
}

// ListByDoctor returns the doctor's current inpatients.
func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*View, int, error) {
	if _, err := s.dir.RequireRole(ctx, doctorID, directory.RoleDoctor); err != nil {
		return nil, 0, err
	}
	return s.list(ctx, Filter{DoctorID: doctorID, Status: StatusAdmitted}, limit, offset)
}

func (s *Service) ListTransfers(ctx context.Context, id uuid.UUID) ([]*BedTransfer, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListTransfers(ctx, id)
}

func (s *Service) StatusHistory(ctx context.Context, id uuid.UUID) ([]*StatusChange, error) {
	if _, err := s.get(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.ListStatusChanges(ctx, id)
}

// CurrentAdmission and OccupiedBeds let the ward package ask who holds a bed
// without importing this package.
func (s *Service) CurrentAdmission(ctx context.Context, bedID uuid.UUID) (uuid.UUID, bool, error) {
	return s.repo.CurrentAdmission(ctx, bedID)
}

func (s *Service) OccupiedBeds(ctx context.Context, bedIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	return s.repo.OccupiedBeds(ctx, bedIDs)
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, notFound(err, "Admission not found")
	}
	return a, nil
}

func (s *Service) list(ctx context.Context, f Filter, limit, offset int) ([]*View, int, error) {
	items, total, err := s.repo.List(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	locs := make(map[uuid.UUID]*ward.BedLocation)
	views := make([]*View, 0, len(items))
	for _, a := range items {
		v := &View{Admission: a}
		loc, ok := locs[a.BedID]
		if !ok {
			loc = s.locate(ctx, a.BedID)
			locs[a.BedID] = loc
		}
		applyLocation(v, loc)
		views = append(views, v)
	}
	return views, total, nil
}

func (s *Service) view(ctx context.Context, a *Admission) *View {
	v := &View{Admission: a}
	applyLocation(v, s.locate(ctx, a.BedID))
	return v
}

// locate is best effort: a bed deleted after discharge leaves the view
// without a location rather than failing the read.
func (s *Service) locate(ctx context.Context, bedID uuid.UUID) *ward.BedLocation {
	loc, err := s.beds.LocateBed(ctx, bedID)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			s.logger.Warn().Err(err).Str("bed_id", bedID.String()).Msg("failed to locate bed")
		}
		return nil
	}
	return loc
}

func applyLocation(v *View, loc *ward.BedLocation) {
	if loc == nil {
		return
	}
	v.BedNumber = loc.BedNumber
	v.RoomNumber = loc.RoomNumber
	v.WardName = loc.WardName
}

func (s *Service) publish(ctx context.Context, event string, v *View) {
	if s.events != nil {
		s.events.AdmissionChanged(ctx, event, v)
	}
}

func (s *Service) notify(ctx context.Context, templateID string, to *directory.User, data map[string]string) {
	if s.notifier == nil || to == nil {
		return
	}
	s.notifier.Notify(ctx, templateID, to.Email, data)
}

func notFound(err error, message string) error {
	if apperr.Is(err, apperr.KindNotFound) {
		return apperr.NotFound("%s", message)
	}
	return err
}
