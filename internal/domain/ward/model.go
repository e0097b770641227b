// Package ward holds the physical hierarchy beds are allocated from:
// Ward owns Rooms, Room owns Beds. A bed's occupant is never stored here; it
// is looked up from admissions through OccupantLookup.
package ward

import (
	"time"

	"github.com/google/uuid"
)

type RoomType string

const (
	RoomGeneral     RoomType = "GENERAL"
	RoomSemiPrivate RoomType = "SEMI_PRIVATE"
	RoomPrivate     RoomType = "PRIVATE"
	RoomDeluxe      RoomType = "DELUXE"
	RoomICU         RoomType = "ICU"
	RoomNICU        RoomType = "NICU"
	RoomPICU        RoomType = "PICU"
	RoomIsolation   RoomType = "ISOLATION"
)

var validRoomTypes = map[RoomType]bool{
	RoomGeneral:     true,
	RoomSemiPrivate: true,
	RoomPrivate:     true,
	RoomDeluxe:      true,
	RoomICU:         true,
	RoomNICU:        true,
	RoomPICU:        true,
	RoomIsolation:   true,
}

func (t RoomType) Valid() bool { return validRoomTypes[t] }

type BedStatus string

const (
	BedAvailable   BedStatus = "AVAILABLE"
	BedOccupied    BedStatus = "OCCUPIED"
	BedReserved    BedStatus = "RESERVED"
	BedMaintenance BedStatus = "MAINTENANCE"
	BedCleaning    BedStatus = "CLEANING"
)

var validBedStatuses = map[BedStatus]bool{
	BedAvailable:   true,
	BedOccupied:    true,
	BedReserved:    true,
	BedMaintenance: true,
	BedCleaning:    true,
}

func (s BedStatus) Valid() bool { return validBedStatuses[s] }

// Ward maps to the ward table. Capacity is informational and is not checked
// against the rooms and beds it owns.
type Ward struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	WardNumber   string    `db:"ward_number" json:"ward_number"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	Capacity     int       `db:"capacity" json:"capacity"`
	Active       bool      `db:"active" json:"active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Room maps to the room table.
type Room struct {
	ID         uuid.UUID `db:"id" json:"id"`
	RoomNumber string    `db:"room_number" json:"room_number"`
	WardID     uuid.UUID `db:"ward_id" json:"ward_id"`
	RoomType   RoomType  `db:"room_type" json:"room_type"`
	Capacity   int       `db:"capacity" json:"capacity"`
	DailyRate  float64   `db:"daily_rate" json:"daily_rate"`
	Active     bool      `db:"active" json:"active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Bed maps to the bed table. Status only changes through the allocation
// engine once the bed exists.
type Bed struct {
	ID        uuid.UUID `db:"id" json:"id"`
	BedNumber string    `db:"bed_number" json:"bed_number"`
	RoomID    uuid.UUID `db:"room_id" json:"room_id"`
	Status    BedStatus `db:"status" json:"status"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BedDetail is a bed together with its derived current admission.
type BedDetail struct {
	Bed
	CurrentAdmissionID *uuid.UUID `json:"current_admission_id,omitempty"`
}

// BedLocation names where a bed is, for admission views.
type BedLocation struct {
	BedID      uuid.UUID `json:"bed_id"`
	BedNumber  string    `json:"bed_number"`
	RoomID     uuid.UUID `json:"room_id"`
	RoomNumber string    `json:"room_number"`
	WardID     uuid.UUID `json:"ward_id"`
	WardName   string    `json:"ward_name"`
}

// BedFilter narrows bed listings. Zero fields match everything.
type BedFilter struct {
	Status BedStatus
	RoomID uuid.UUID
	WardID uuid.UUID
}
