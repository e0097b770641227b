package admission

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists admissions and their audit trail. It also answers the
// current-occupant lookups the ward and allocation packages depend on.
type Repository interface {
	Create(ctx context.Context, a *Admission) error
	Get(ctx context.Context, id uuid.UUID) (*Admission, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error)
	UpdateBed(ctx context.Context, id, bedID uuid.UUID) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, dischargeDate *time.Time) error
	List(ctx context.Context, f Filter, limit, offset int) ([]*Admission, int, error)

	CreateSummary(ctx context.Context, s *DischargeSummary) error
	GetSummary(ctx context.Context, admissionID uuid.UUID) (*DischargeSummary, error)

	CreateTransfer(ctx context.Context, t *BedTransfer) error
	ListTransfers(ctx context.Context, admissionID uuid.UUID) ([]*BedTransfer, error)

	AddStatusChange(ctx context.Context, c *StatusChange) error
	ListStatusChanges(ctx context.Context, admissionID uuid.UUID) ([]*StatusChange, error)

	NextSequence(ctx context.Context, year int) (int64, error)

	CurrentAdmission(ctx context.Context, bedID uuid.UUID) (uuid.UUID, bool, error)
	OccupiedBeds(ctx context.Context, bedIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}
