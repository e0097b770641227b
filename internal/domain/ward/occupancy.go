package ward

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// Occupancy is a point-in-time snapshot of one ward. OccupiedBeds plus
// AvailableBeds never exceeds TotalBeds; the rest are reserved, cleaning or
// under maintenance.
type Occupancy struct {
	WardID        uuid.UUID `json:"ward_id"`
	WardName      string    `json:"ward_name"`
	TotalBeds     int       `json:"total_beds"`
	OccupiedBeds  int       `json:"occupied_beds"`
	AvailableBeds int       `json:"available_beds"`
	OccupancyRate float64   `json:"occupancy_rate"`
}

// HospitalOccupancy sums the active wards.
type HospitalOccupancy struct {
	Wards         []*Occupancy `json:"wards"`
	TotalBeds     int          `json:"total_beds"`
	OccupiedBeds  int          `json:"occupied_beds"`
	AvailableBeds int          `json:"available_beds"`
	OccupancyRate float64      `json:"occupancy_rate"`
}

// OccupancyRecorder receives each computed ward rate. It is write-only
// telemetry and is never read back.
type OccupancyRecorder interface {
	SetWardOccupancy(ward string, rate float64)
}

type OccupancyReporter struct {
	repo      Repository
	occupants OccupantLookup
	recorder  OccupancyRecorder
}

func NewOccupancyReporter(repo Repository, occupants OccupantLookup, recorder OccupancyRecorder) *OccupancyReporter {
	return &OccupancyReporter{repo: repo, occupants: occupants, recorder: recorder}
}

// WardOccupancy walks the ward's rooms and beds. A bed counts as occupied when
// its status is OCCUPIED or an admission currently holds it, so drift between
// the two never shows a held bed as free.
func (o *OccupancyReporter) WardOccupancy(ctx context.Context, wardID uuid.UUID) (*Occupancy, error) {
	w, err := o.repo.GetWard(ctx, wardID)
	if err != nil {
		return nil, err
	}
	return o.wardOccupancy(ctx, w)
}

func (o *OccupancyReporter) HospitalOccupancy(ctx context.Context) (*HospitalOccupancy, error) {
	wards, err := o.repo.ListWards(ctx, true)
	if err != nil {
		return nil, err
	}
	out := &HospitalOccupancy{Wards: make([]*Occupancy, 0, len(wards))}
	for _, w := range wards {
		occ, err := o.wardOccupancy(ctx, w)
		if err != nil {
			return nil, err
		}
		out.Wards = append(out.Wards, occ)
		out.TotalBeds += occ.TotalBeds
		out.OccupiedBeds += occ.OccupiedBeds
		out.AvailableBeds += occ.AvailableBeds
	}
	out.OccupancyRate = occupancyRate(out.OccupiedBeds, out.TotalBeds)
	return out, nil
}

func (o *OccupancyReporter) wardOccupancy(ctx context.Context, w *Ward) (*Occupancy, error) {
	rooms, err := o.repo.ListRoomsByWard(ctx, w.ID)
	if err != nil {
		return nil, err
	}

	var beds []*Bed
	for _, rm := range rooms {
		roomBeds, _, err := o.repo.ListBeds(ctx, BedFilter{RoomID: rm.ID}, 0, 0)
		if err != nil {
			return nil, err
		}
		beds = append(beds, roomBeds...)
	}

	ids := make([]uuid.UUID, len(beds))
	for i, b := range beds {
		ids[i] = b.ID
	}
	held := map[uuid.UUID]bool{}
	if len(ids) > 0 {
		if held, err = o.occupants.OccupiedBeds(ctx, ids); err != nil {
			return nil, err
		}
	}

	occ := &Occupancy{WardID: w.ID, WardName: w.Name, TotalBeds: len(beds)}
	for _, b := range beds {
		switch {
		case b.Status == BedOccupied || held[b.ID]:
			occ.OccupiedBeds++
		case b.Status == BedAvailable:
			occ.AvailableBeds++
		}
	}
	occ.OccupancyRate = occupancyRate(occ.OccupiedBeds, occ.TotalBeds)

	if o.recorder != nil {
		o.recorder.SetWardOccupancy(w.WardNumber, occ.OccupancyRate)
	}
	return occ, nil
}

// occupancyRate is occupied/total as a percentage rounded to two decimals,
// and 0 for an empty ward.
func occupancyRate(occupied, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(occupied)/float64(total)*100*100) / 100
}
