package ward

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/db"
	"github.com/ehr/inpatient/pkg/pagination"
)

// repoMemory keeps the hierarchy in maps. Writes made inside a
// db.MemTxRunner unit register undo actions so a failed unit leaves no trace.
type repoMemory struct {
	mu    sync.RWMutex
	wards map[uuid.UUID]*Ward
	rooms map[uuid.UUID]*Room
	beds  map[uuid.UUID]*Bed
}

// NewMemoryRepo returns a Repository kept in process memory.
func NewMemoryRepo() Repository {
	return &repoMemory{
		wards: make(map[uuid.UUID]*Ward),
		rooms: make(map[uuid.UUID]*Room),
		beds:  make(map[uuid.UUID]*Bed),
	}
}

func (r *repoMemory) CreateWard(ctx context.Context, w *Ward) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.wards {
		if existing.WardNumber == w.WardNumber {
			return apperr.Conflict("ward already exists")
		}
	}
	w.ID = uuid.New()
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	cp := *w
	r.wards[w.ID] = &cp
	db.RecordUndo(ctx, func() { r.deleteWard(cp.ID) })
	return nil
}

func (r *repoMemory) GetWard(_ context.Context, id uuid.UUID) (*Ward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wards[id]
	if !ok {
		return nil, apperr.NotFound("ward not found")
	}
	cp := *w
	return &cp, nil
}

func (r *repoMemory) UpdateWard(ctx context.Context, w *Ward) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.wards[w.ID]
	if !ok {
		return apperr.NotFound("ward not found")
	}
	for _, existing := range r.wards {
		if existing.ID != w.ID && existing.WardNumber == w.WardNumber {
			return apperr.Conflict("ward already exists")
		}
	}
	w.CreatedAt = prev.CreatedAt
	w.UpdatedAt = time.Now().UTC()
	cp := *w
	r.wards[w.ID] = &cp
	db.RecordUndo(ctx, func() { r.putWard(prev) })
	return nil
}

func (r *repoMemory) DeleteWard(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.wards[id]
	if !ok {
		return apperr.NotFound("ward not found")
	}
	for _, rm := range r.rooms {
		if rm.WardID == id {
			return apperr.Conflict("ward is referenced by other records")
		}
	}
	delete(r.wards, id)
	db.RecordUndo(ctx, func() { r.putWard(prev) })
	return nil
}

func (r *repoMemory) ListWards(_ context.Context, activeOnly bool) ([]*Ward, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Ward
	for _, w := range r.wards {
		if activeOnly && !w.Active {
			continue
		}
		cp := *w
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WardNumber < out[j].WardNumber })
	return out, nil
}

func (r *repoMemory) CreateRoom(ctx context.Context, rm *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.wards[rm.WardID]; !ok {
		return apperr.Conflict("room is referenced by other records")
	}
	for _, existing := range r.rooms {
		if existing.RoomNumber == rm.RoomNumber {
			return apperr.Conflict("room already exists")
		}
	}
	rm.ID = uuid.New()
	now := time.Now().UTC()
	rm.CreatedAt, rm.UpdatedAt = now, now
	cp := *rm
	r.rooms[rm.ID] = &cp
	db.RecordUndo(ctx, func() { r.deleteRoom(cp.ID) })
	return nil
}

func (r *repoMemory) GetRoom(_ context.Context, id uuid.UUID) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	if !ok {
		return nil, apperr.NotFound("room not found")
	}
	cp := *rm
	return &cp, nil
}

func (r *repoMemory) UpdateRoom(ctx context.Context, rm *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.rooms[rm.ID]
	if !ok {
		return apperr.NotFound("room not found")
	}
	for _, existing := range r.rooms {
		if existing.ID != rm.ID && existing.RoomNumber == rm.RoomNumber {
			return apperr.Conflict("room already exists")
		}
	}
	rm.CreatedAt = prev.CreatedAt
	rm.UpdatedAt = time.Now().UTC()
	cp := *rm
	r.rooms[rm.ID] = &cp
	db.RecordUndo(ctx, func() { r.putRoom(prev) })
	return nil
}

func (r *repoMemory) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.rooms[id]
	if !ok {
		return apperr.NotFound("room not found")
	}
	for _, b := range r.beds {
		if b.RoomID == id {
			return apperr.Conflict("room is referenced by other records")
		}
	}
	delete(r.rooms, id)
	db.RecordUndo(ctx, func() { r.putRoom(prev) })
	return nil
}

func (r *repoMemory) ListRoomsByWard(_ context.Context, wardID uuid.UUID) ([]*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Room
	for _, rm := range r.rooms {
		if rm.WardID == wardID {
			cp := *rm
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}

func (r *repoMemory) CountRooms(_ context.Context, wardID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rm := range r.rooms {
		if rm.WardID == wardID {
			n++
		}
	}
	return n, nil
}

func (r *repoMemory) CreateBed(ctx context.Context, b *Bed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rooms[b.RoomID]; !ok {
		return apperr.Conflict("bed is referenced by other records")
	}
	for _, existing := range r.beds {
		if existing.BedNumber == b.BedNumber {
			return apperr.Conflict("bed already exists")
		}
	}
	b.ID = uuid.New()
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	cp := *b
	r.beds[b.ID] = &cp
	db.RecordUndo(ctx, func() { r.deleteBed(cp.ID) })
	return nil
}

func (r *repoMemory) GetBed(_ context.Context, id uuid.UUID) (*Bed, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.beds[id]
	if !ok {
		return nil, apperr.NotFound("bed not found")
	}
	cp := *b
	return &cp, nil
}

// GetBedForUpdate is GetBed: memory units are already serialized by
// db.MemTxRunner.
func (r *repoMemory) GetBedForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return r.GetBed(ctx, id)
}

func (r *repoMemory) UpdateBed(ctx context.Context, b *Bed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.beds[b.ID]
	if !ok {
		return apperr.NotFound("bed not found")
	}
	for _, existing := range r.beds {
		if existing.ID != b.ID && existing.BedNumber == b.BedNumber {
			return apperr.Conflict("bed already exists")
		}
	}
	next := *prev
	next.BedNumber = b.BedNumber
	next.RoomID = b.RoomID
	next.Notes = b.Notes
	next.UpdatedAt = time.Now().UTC()
	r.beds[b.ID] = &next
	*b = next
	db.RecordUndo(ctx, func() { r.putBed(prev) })
	return nil
}

func (r *repoMemory) SetBedStatus(ctx context.Context, id uuid.UUID, status BedStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.beds[id]
	if !ok {
		return apperr.NotFound("bed not found")
	}
	next := *prev
	next.Status = status
	next.UpdatedAt = time.Now().UTC()
	r.beds[id] = &next
	db.RecordUndo(ctx, func() { r.putBed(prev) })
	return nil
}

func (r *repoMemory) DeleteBed(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.beds[id]
	if !ok {
		return apperr.NotFound("bed not found")
	}
	delete(r.beds, id)
	db.RecordUndo(ctx, func() { r.putBed(prev) })
	return nil
}

func (r *repoMemory) ListBeds(_ context.Context, f BedFilter, limit, offset int) ([]*Bed, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Bed
	for _, b := range r.beds {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		if f.RoomID != uuid.Nil && b.RoomID != f.RoomID {
			continue
		}
		if f.WardID != uuid.Nil {
			rm, ok := r.rooms[b.RoomID]
			if !ok || rm.WardID != f.WardID {
				continue
			}
		}
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BedNumber < out[j].BedNumber })
	return pagination.Slice(out, limit, offset), len(out), nil
}

func (r *repoMemory) CountBeds(_ context.Context, roomID uuid.UUID) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, b := range r.beds {
		if b.RoomID == roomID {
			n++
		}
	}
	return n, nil
}

func (r *repoMemory) LocateBed(_ context.Context, bedID uuid.UUID) (*BedLocation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.beds[bedID]
	if !ok {
		return nil, apperr.NotFound("bed not found")
	}
	loc := &BedLocation{BedID: b.ID, BedNumber: b.BedNumber, RoomID: b.RoomID}
	if rm, ok := r.rooms[b.RoomID]; ok {
		loc.RoomNumber = rm.RoomNumber
		loc.WardID = rm.WardID
		if w, ok := r.wards[rm.WardID]; ok {
			loc.WardName = w.Name
		}
	}
	return loc, nil
}

// Undo helpers take the lock themselves; they run after the writer returned.

func (r *repoMemory) putWard(w *Ward) {
	r.mu.Lock()
	r.wards[w.ID] = w
	r.mu.Unlock()
}

func (r *repoMemory) deleteWard(id uuid.UUID) {
	r.mu.Lock()
	delete(r.wards, id)
	r.mu.Unlock()
}

func (r *repoMemory) putRoom(rm *Room) {
	r.mu.Lock()
	r.rooms[rm.ID] = rm
	r.mu.Unlock()
}

func (r *repoMemory) deleteRoom(id uuid.UUID) {
	r.mu.Lock()
	delete(r.rooms, id)
	r.mu.Unlock()
}

func (r *repoMemory) putBed(b *Bed) {
	r.mu.Lock()
	r.beds[b.ID] = b
	r.mu.Unlock()
}

func (r *repoMemory) deleteBed(id uuid.UUID) {
	r.mu.Lock()
	delete(r.beds, id)
	r.mu.Unlock()
}
