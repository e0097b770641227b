package ward

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	CreateWard(ctx context.Context, w *Ward) error
	GetWard(ctx context.Context, id uuid.UUID) (*Ward, error)
	UpdateWard(ctx context.Context, w *Ward) error
	DeleteWard(ctx context.Context, id uuid.UUID) error
	ListWards(ctx context.Context, activeOnly bool) ([]*Ward, error)

	CreateRoom(ctx context.Context, r *Room) error
	GetRoom(ctx context.Context, id uuid.UUID) (*Room, error)
	UpdateRoom(ctx context.Context, r *Room) error
	DeleteRoom(ctx context.Context, id uuid.UUID) error
	ListRoomsByWard(ctx context.Context, wardID uuid.UUID) ([]*Room, error)
	CountRooms(ctx context.Context, wardID uuid.UUID) (int, error)

	CreateBed(ctx context.Context, b *Bed) error
	GetBed(ctx context.Context, id uuid.UUID) (*Bed, error)
	// GetBedForUpdate reads the bed and, inside a transaction, holds its row
	// lock until commit.
	GetBedForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error)
	UpdateBed(ctx context.Context, b *Bed) error
	SetBedStatus(ctx context.Context, id uuid.UUID, status BedStatus) error
	DeleteBed(ctx context.Context, id uuid.UUID) error
	ListBeds(ctx context.Context, filter BedFilter, limit, offset int) ([]*Bed, int, error)
	CountBeds(ctx context.Context, roomID uuid.UUID) (int, error)

	LocateBed(ctx context.Context, bedID uuid.UUID) (*BedLocation, error)
}

// OccupantLookup answers the derived "current admission" query: the admission
// with status ADMITTED that references a bed.
type OccupantLookup interface {
	CurrentAdmission(ctx context.Context, bedID uuid.UUID) (admissionID uuid.UUID, ok bool, err error)
	OccupiedBeds(ctx context.Context, bedIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}
