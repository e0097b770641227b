package ward

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/inpatient/internal/domain/directory"
	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/db"
)

// DepartmentLookup confirms a ward's owning department exists.
type DepartmentLookup interface {
	GetDepartment(ctx context.Context, id uuid.UUID) (*directory.Department, error)
}

type Service struct {
	repo        Repository
	occupants   OccupantLookup
	tx          db.TxRunner
	departments DepartmentLookup
}

func NewService(repo Repository, occupants OccupantLookup, tx db.TxRunner) *Service {
	return &Service{repo: repo, occupants: occupants, tx: tx}
}

// SetDepartmentLookup enables department checks on ward writes.
func (s *Service) SetDepartmentLookup(d DepartmentLookup) {
	s.departments = d
}

// -- Wards --

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	if err := s.validateWard(ctx, w); err != nil {
		return err
	}
	return s.repo.CreateWard(ctx, w)
}

func (s *Service) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return s.repo.GetWard(ctx, id)
}

func (s *Service) ListWards(ctx context.Context, activeOnly bool) ([]*Ward, error) {
	return s.repo.ListWards(ctx, activeOnly)
}

// UpdateWard replaces the ward's attributes. Setting Active to false is how a
// ward is retired while it still owns rooms.
func (s *Service) UpdateWard(ctx context.Context, w *Ward) error {
	if _, err := s.repo.GetWard(ctx, w.ID); err != nil {
		return err
	}
	if err := s.validateWard(ctx, w); err != nil {
		return err
	}
	return s.repo.UpdateWard(ctx, w)
}

// DeleteWard removes a ward that owns no rooms.
func (s *Service) DeleteWard(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetWard(ctx, id); err != nil {
			return err
		}
		n, err := s.repo.CountRooms(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("Ward has %d room(s); delete them or deactivate the ward", n)
		}
		return s.repo.DeleteWard(ctx, id)
	})
}

func (s *Service) validateWard(ctx context.Context, w *Ward) error {
	w.Name = strings.TrimSpace(w.Name)
	w.WardNumber = strings.TrimSpace(w.WardNumber)
	if w.Name == "" {
		return apperr.Validation("name is required")
	}
	if w.WardNumber == "" {
		return apperr.Validation("ward_number is required")
	}
	if w.Capacity < 0 {
		return apperr.Validation("capacity must not be negative")
	}
	if w.DepartmentID == uuid.Nil {
		return apperr.Validation("department_id is required")
	}
	if s.departments != nil {
		if _, err := s.departments.GetDepartment(ctx, w.DepartmentID); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.NotFound("Department not found")
			}
			return err
		}
	}
	return nil
}

// -- Rooms --

func (s *Service) CreateRoom(ctx context.Context, rm *Room) error {
	if err := s.validateRoom(ctx, rm, true); err != nil {
		return err
	}
	return s.repo.CreateRoom(ctx, rm)
}

func (s *Service) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	return s.repo.GetRoom(ctx, id)
}

func (s *Service) ListRooms(ctx context.Context, wardID uuid.UUID) ([]*Room, error) {
	if _, err := s.repo.GetWard(ctx, wardID); err != nil {
		return nil, err
	}
	return s.repo.ListRoomsByWard(ctx, wardID)
}

func (s *Service) UpdateRoom(ctx context.Context, rm *Room) error {
	if _, err := s.repo.GetRoom(ctx, rm.ID); err != nil {
		return err
	}
	if err := s.validateRoom(ctx, rm, false); err != nil {
		return err
	}
	return s.repo.UpdateRoom(ctx, rm)
}

// DeleteRoom removes a room that owns no beds. Beds are never removed
// implicitly.
func (s *Service) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetRoom(ctx, id); err != nil {
			return err
		}
		n, err := s.repo.CountBeds(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict("Room has %d bed(s); delete them first", n)
		}
		return s.repo.DeleteRoom(ctx, id)
	})
}

// validateRoom checks the room's attributes and its ward. New rooms may only
// be added to active wards.
func (s *Service) validateRoom(ctx context.Context, rm *Room, creating bool) error {
	rm.RoomNumber = strings.TrimSpace(rm.RoomNumber)
	if rm.RoomNumber == "" {
		return apperr.Validation("room_number is required")
	}
	if rm.RoomType == "" {
		rm.RoomType = RoomGeneral
	}
	if !rm.RoomType.Valid() {
		return apperr.Validation("invalid room_type: %s", rm.RoomType)
	}
	if rm.Capacity < 0 {
		return apperr.Validation("capacity must not be negative")
	}
	if rm.DailyRate < 0 {
		return apperr.Validation("daily_rate must not be negative")
	}
	w, err := s.repo.GetWard(ctx, rm.WardID)
	if err != nil {
		return err
	}
	if creating && !w.Active {
		return apperr.Precondition("Ward %s is inactive", w.WardNumber)
	}
	return nil
}

// -- Beds --

// CreateBed adds a bed to a room. New beds start AVAILABLE unless another
// non-occupied status is given.
func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	b.BedNumber = strings.TrimSpace(b.BedNumber)
	if b.BedNumber == "" {
		return apperr.Validation("bed_number is required")
	}
	if b.Status == "" {
		b.Status = BedAvailable
	}
	if !b.Status.Valid() {
		return apperr.Validation("invalid status: %s", b.Status)
	}
	if b.Status == BedOccupied {
		return apperr.Validation("a bed cannot be created OCCUPIED")
	}
	rm, err := s.repo.GetRoom(ctx, b.RoomID)
	if err != nil {
		return err
	}
	if !rm.Active {
		return apperr.Precondition("Room %s is inactive", rm.RoomNumber)
	}
	return s.repo.CreateBed(ctx, b)
}

// GetBed returns the bed with its current admission, if any.
func (s *Service) GetBed(ctx context.Context, id uuid.UUID) (*BedDetail, error) {
	b, err := s.repo.GetBed(ctx, id)
	if err != nil {
		return nil, err
	}
	detail := &BedDetail{Bed: *b}
	admissionID, ok, err := s.occupants.CurrentAdmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if ok {
		detail.CurrentAdmissionID = &admissionID
	}
	return detail, nil
}

func (s *Service) ListBeds(ctx context.Context, f BedFilter, limit, offset int) ([]*Bed, int, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, apperr.Validation("invalid status: %s", f.Status)
	}
	return s.repo.ListBeds(ctx, f, limit, offset)
}

func (s *Service) ListBedsByRoom(ctx context.Context, roomID uuid.UUID) ([]*Bed, error) {
	if _, err := s.repo.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	beds, _, err := s.repo.ListBeds(ctx, BedFilter{RoomID: roomID}, 0, 0)
	return beds, err
}

// UpdateBed changes a bed's number, room or notes. Status is owned by the
// allocation engine and is ignored here.
func (s *Service) UpdateBed(ctx context.Context, b *Bed) error {
	b.BedNumber = strings.TrimSpace(b.BedNumber)
	if b.BedNumber == "" {
		return apperr.Validation("bed_number is required")
	}
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetBedForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}
		if b.RoomID == uuid.Nil {
			b.RoomID = current.RoomID
		}
		b.Status = current.Status
		b.CreatedAt = current.CreatedAt
		if b.RoomID != current.RoomID {
			if _, err := s.repo.GetRoom(ctx, b.RoomID); err != nil {
				return err
			}
			occupied, err := s.isOccupied(ctx, current)
			if err != nil {
				return err
			}
			if occupied {
				return apperr.Conflict("Bed is currently occupied")
			}
		}
		return s.repo.UpdateBed(ctx, b)
	})
}

// DeleteBed removes a bed that is not occupied.
func (s *Service) DeleteBed(ctx context.Context, id uuid.UUID) error {
	return s.tx.InTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetBedForUpdate(ctx, id)
		if err != nil {
			return err
		}
		occupied, err := s.isOccupied(ctx, b)
		if err != nil {
			return err
		}
		if occupied {
			return apperr.Conflict("Bed is currently occupied")
		}
		return s.repo.DeleteBed(ctx, id)
	})
}

// LocateBed names the room and ward a bed belongs to.
func (s *Service) LocateBed(ctx context.Context, bedID uuid.UUID) (*BedLocation, error) {
	return s.repo.LocateBed(ctx, bedID)
}

func (s *Service) isOccupied(ctx context.Context, b *Bed) (bool, error) {
	if b.Status == BedOccupied {
		return true, nil
	}
	_, ok, err := s.occupants.CurrentAdmission(ctx, b.ID)
	return ok, err
}
