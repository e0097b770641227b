package admission

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

// repoMemory mirrors the PostgreSQL constraints it relies on: unique
// admission numbers, one summary per admission and at most one ADMITTED
// admission per bed and per patient.
type repoMemory struct {
	mu         sync.RWMutex
	admissions map[uuid.UUID]*Admission
	summaries  map[uuid.UUID]*DischargeSummary
	transfers  []*BedTransfer
	history    []*StatusChange
	sequences  map[int]int64
}

func NewMemoryRepo() Repository {
	return &repoMemory{
		admissions: make(map[uuid.UUID]*Admission),
		summaries:  make(map[uuid.UUID]*DischargeSummary),
		sequences:  make(map[int]int64),
	}
}

func (r *repoMemory) Create(ctx context.Context, a *Admission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.admissions {
		if existing.AdmissionNumber == a.AdmissionNumber {
			return apperr.Conflict("admission already exists")
		}
		if a.Status == StatusAdmitted && existing.Status == StatusAdmitted &&
			(existing.BedID == a.BedID || existing.PatientID == a.PatientID) {
			return apperr.Conflict("admission already exists")
		}
	}
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	r.admissions[a.ID] = &cp
	db.RecordUndo(ctx, func() {
		r.mu.Lock()
		delete(r.admissions, cp.ID)
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMemory) Get(_ context.Context, id uuid.UUID) (*Admission, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.admissions[id]
	if !ok {
		return nil, apperr.NotFound("admission not found")
	}
	cp := *a
	return &cp, nil
}

// GetForUpdate is Get: memory units are serialized by db.MemTxRunner.
func (r *repoMemory) GetForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return r.Get(ctx, id)
}

func (r *repoMemory) UpdateBed(ctx context.Context, id, bedID uuid.UUID) error {
	return r.update(ctx, id, func(a *Admission) error {
		if a.Status == StatusAdmitted {
			for _, other := range r.admissions {
				if other.ID != id && other.Status == StatusAdmitted && other.BedID == bedID {
					return apperr.Conflict("admission already exists")
				}
			}
		}
		a.BedID = bedID
		return nil
	})
}

func (r *repoMemory) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, dischargeDate *time.Time) error {
	return r.update(ctx, id, func(a *Admission) error {
		a.Status = status
		if dischargeDate != nil {
			d := *dischargeDate
			a.DischargeDate = &d
		}
		return nil
	})
}

func (r *repoMemory) update(ctx context.Context, id uuid.UUID, fn func(a *Admission) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.admissions[id]
	if !ok {
		return apperr.NotFound("admission not found")
	}
	next := *prev
	if err := fn(&next); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	r.admissions[id] = &next
	db.RecordUndo(ctx, func() {
		r.mu.Lock()
		r.admissions[id] = prev
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMemory) List(_ context.Context, f Filter, limit, offset int) ([]*Admission, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Admission
	for _, a := range r.admissions {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
			continue
		}
		if f.DoctorID != uuid.Nil && a.DoctorID != f.DoctorID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AdmissionDate.Equal(out[j].AdmissionDate) {
			return out[i].AdmissionNumber > out[j].AdmissionNumber
		}
		return out[i].AdmissionDate.After(out[j].AdmissionDate)
	})
	return pagination.Slice(out, limit, offset), len(out), nil
}

func (r *repoMemory) CreateSummary(ctx context.Context, s *DischargeSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.admissions[s.AdmissionID]; !ok {
		return apperr.Conflict("discharge summary is referenced by other records")
	}
	if _, ok := r.summaries[s.AdmissionID]; ok {
		return apperr.Conflict("discharge summary already exists")
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	cp := *s
	r.summaries[s.AdmissionID] = &cp
	db.RecordUndo(ctx, func() {
		r.mu.Lock()
		delete(r.summaries, cp.AdmissionID)
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMemory) GetSummary(_ context.Context, admissionID uuid.UUID) (*DischargeSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.summaries[admissionID]
	if !ok {
		return nil, apperr.NotFound("discharge summary not found")
	}
	cp := *s
	return &cp, nil
}

func (r *repoMemory) CreateTransfer(ctx context.Context, t *BedTransfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = uuid.New()
	if t.TransferredAt.IsZero() {
		t.TransferredAt = time.Now().UTC()
	}
	cp := *t
	r.transfers = append(r.transfers, &cp)
	n := len(r.transfers)
	db.RecordUndo(ctx, func() {
		r.mu.Lock()
		r.transfers = r.transfers[:n-1]
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMemory) ListTransfers(_ context.Context, admissionID uuid.UUID) ([]*BedTransfer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*BedTransfer
	for _, t := range r.transfers {
		if t.AdmissionID == admissionID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *repoMemory) AddStatusChange(ctx context.Context, c *StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.ID = uuid.New()
	if c.ChangedAt.IsZero() {
		c.ChangedAt = time.Now().UTC()
	}
	cp := *c
	r.history = append(r.history, &cp)
	n := len(r.history)
	db.RecordUndo(ctx, func() {
		r.mu.Lock()
		r.history = r.history[:n-1]
		r.mu.Unlock()
	})
	return nil
}

func (r *repoMemory) ListStatusChanges(_ context.Context, admissionID uuid.UUID) ([]*StatusChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*StatusChange
	for _, c := range r.history {
		if c.AdmissionID == admissionID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *repoMemory) NextSequence(ctx context.Context, year int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.sequences[year]
	r.sequences[year] = prev + 1
	db.RecordUndo(ctx, func() {
		r.mu.Lock()
		r.sequences[year] = prev
		r.mu.Unlock()
	})
	return prev + 1, nil
}

func (r *repoMemory) CurrentAdmission(_ context.Context, bedID uuid.UUID) (uuid.UUID, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.admissions {
		if a.BedID == bedID && a.Status == StatusAdmitted {
			return a.ID, true, nil
		}
	}
	return uuid.Nil, false, nil
}

func (r *repoMemory) OccupiedBeds(_ context.Context, bedIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := make(map[uuid.UUID]bool, len(bedIDs))
	for _, id := range bedIDs {
		want[id] = true
	}
	out := make(map[uuid.UUID]bool)
	for _, a := range r.admissions {
		if a.Status == StatusAdmitted && want[a.BedID] {
			out[a.BedID] = true
		}
	}
	return out, nil
}
