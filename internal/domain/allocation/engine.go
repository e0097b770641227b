// Package allocation is the single place bed exclusivity is enforced. Every
// claim, release and transfer runs under per-bed locks and inside one
// transactional unit, so a bed is never handed to two admissions.
package allocation

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/inpatient/internal/domain/ward"
	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/db"
	"github.com/ehr/inpatient/internal/platform/lock"
	"github.com/ehr/inpatient/internal/platform/metrics"
)

var (
	// ErrBedUnavailable is wrapped by the Conflict returned when a bed cannot
	// be claimed.
	ErrBedUnavailable = errors.New("bed is not available")
	// ErrBedHeld is wrapped by the Conflict returned when a bed still has a
	// current admission.
	ErrBedHeld = errors.New("bed has a current admission")
)

const DefaultTimeout = 5 * time.Second

// BedStore is the slice of the ward repository the engine writes through.
type BedStore interface {
	GetBedForUpdate(ctx context.Context, id uuid.UUID) (*ward.Bed, error)
	SetBedStatus(ctx context.Context, id uuid.UUID, status ward.BedStatus) error
}

// BedHandle describes a successful claim.
type BedHandle struct {
	BedID          uuid.UUID
	PreviousStatus ward.BedStatus
	ClaimedAt      time.Time
}

// BedChange is one committed bed status transition.
type BedChange struct {
	BedID uuid.UUID      `json:"bed_id"`
	From  ward.BedStatus `json:"from"`
	To    ward.BedStatus `json:"to"`
}

// EventSink receives bed changes after their unit commits. Rolled back
// changes are never delivered.
type EventSink interface {
	BedStatusChanged(ctx context.Context, change BedChange)
}

type Engine struct {
	beds      BedStore
	occupants ward.OccupantLookup
	locker    lock.Locker
	tx        db.TxRunner
	metrics   *metrics.Metrics
	events    EventSink
	logger    zerolog.Logger
	timeout   time.Duration
}

func NewEngine(beds BedStore, occupants ward.OccupantLookup, locker lock.Locker, tx db.TxRunner) *Engine {
	return &Engine{
		beds:      beds,
		occupants: occupants,
		locker:    locker,
		tx:        tx,
		logger:    zerolog.Nop(),
		timeout:   DefaultTimeout,
	}
}

func (e *Engine) SetMetrics(m *metrics.Metrics) { e.metrics = m }

func (e *Engine) SetEventSink(s EventSink) { e.events = s }

func (e *Engine) SetLogger(l zerolog.Logger) {
	e.logger = l.With().Str("component", "allocation").Logger()
}

// SetTimeout bounds each allocation unit. Non-positive values are ignored.
func (e *Engine) SetTimeout(d time.Duration) {
	if d > 0 {
		e.timeout = d
	}
}

type unitKey struct{}

type unit struct {
	held    map[string]bool
	changes []BedChange
}

// Do runs fn as one allocation unit: the locks for bedIDs are taken in
// ascending order, then fn runs in a transaction. Once the locks are held the
// unit no longer follows the caller's cancellation; it is bounded by the
// engine timeout instead, and a unit that fails or times out rolls back as a
// whole.
//
// Calls made from inside fn join the unit. A nested call must only touch beds
// the outer unit already locked; list every bed in the outermost Do.
func (e *Engine) Do(ctx context.Context, bedIDs []uuid.UUID, fn func(ctx context.Context) error) error {
	return e.do(ctx, bedKeys(bedIDs), fn)
}

// DoForPatient is Do with the patient's key held as well, so two units
// admitting the same patient to different beds run one after the other.
func (e *Engine) DoForPatient(ctx context.Context, patientID uuid.UUID, bedIDs []uuid.UUID, fn func(ctx context.Context) error) error {
	return e.do(ctx, append(bedKeys(bedIDs), lock.PatientKey(patientID)), fn)
}

func bedKeys(ids []uuid.UUID) []string {
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, lock.BedKey(id))
	}
	return keys
}

func (e *Engine) do(ctx context.Context, wanted []string, fn func(ctx context.Context) error) error {
	u, nested := ctx.Value(unitKey{}).(*unit)

	var keys []string
	for _, k := range wanted {
		if nested && u.held[k] {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) > 0 {
		acquireCtx, cancel := context.WithTimeout(ctx, e.timeout)
		release, err := e.locker.Acquire(acquireCtx, keys...)
		cancel()
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn().Err(err).Strs("keys", keys).Msg("bed lock wait exceeded")
				return apperr.Wrap(apperr.KindConflict, err, "Bed is busy, please retry")
			}
			return apperr.Internal(err, "acquire bed lock")
		}
		defer release()
	}

	if nested {
		for _, k := range keys {
			u.held[k] = true
		}
		return fn(ctx)
	}

	u = &unit{held: make(map[string]bool, len(keys))}
	for _, k := range keys {
		u.held[k] = true
	}
	unitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()
	unitCtx = context.WithValue(unitCtx, unitKey{}, u)

	err := e.tx.InTx(unitCtx, fn)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && unitCtx.Err() != nil {
			return apperr.Internal(err, "allocation timed out")
		}
		return err
	}
	if e.events != nil {
		for _, c := range u.changes {
			e.events.BedStatusChanged(ctx, c)
		}
	}
	return nil
}

// setStatus writes the bed status and records the change on the unit.
func (e *Engine) setStatus(ctx context.Context, bed *ward.Bed, next ward.BedStatus) error {
	change := BedChange{BedID: bed.ID, From: bed.Status, To: next}
	if err := e.beds.SetBedStatus(ctx, bed.ID, next); err != nil {
		return err
	}
	if u, ok := ctx.Value(unitKey{}).(*unit); ok {
		u.changes = append(u.changes, change)
	}
	return nil
}

// Claim moves an AVAILABLE bed with no current admission to OCCUPIED. The
// status and the admission lookup are checked independently and either one
// failing rejects the claim.
func (e *Engine) Claim(ctx context.Context, bedID uuid.UUID) (*BedHandle, error) {
	var handle *BedHandle
	err := e.Do(ctx, []uuid.UUID{bedID}, func(ctx context.Context) error {
		h, err := e.claim(ctx, bedID)
		handle = h
		return err
	})
	e.metrics.ObserveClaim(resultOf(err))
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (e *Engine) claim(ctx context.Context, bedID uuid.UUID) (*BedHandle, error) {
	bed, err := e.beds.GetBedForUpdate(ctx, bedID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("Bed not found")
		}
		return nil, err
	}
	if bed.Status != ward.BedAvailable {
		e.logger.Debug().Str("bed_id", bedID.String()).Str("status", string(bed.Status)).Msg("claim rejected: status")
		return nil, apperr.Wrap(apperr.KindConflict, ErrBedUnavailable, "Bed is not available")
	}
	if admissionID, held, err := e.occupants.CurrentAdmission(ctx, bedID); err != nil {
		return nil, err
	} else if held {
		e.logger.Warn().
			Str("bed_id", bedID.String()).
			Str("admission_id", admissionID.String()).
			Msg("claim rejected: bed AVAILABLE but held by an admission")
		return nil, apperr.Wrap(apperr.KindConflict, ErrBedUnavailable, "Bed is not available")
	}
	if err := e.setStatus(ctx, bed, ward.BedOccupied); err != nil {
		return nil, err
	}
	return &BedHandle{BedID: bedID, PreviousStatus: bed.Status, ClaimedAt: time.Now().UTC()}, nil
}

// Release moves a bed to next (CLEANING or AVAILABLE). It fails while an
// admission still holds the bed.
func (e *Engine) Release(ctx context.Context, bedID uuid.UUID, next ward.BedStatus) error {
	err := e.Do(ctx, []uuid.UUID{bedID}, func(ctx context.Context) error {
		return e.release(ctx, bedID, next, uuid.Nil)
	})
	if err == nil {
		e.metrics.ObserveRelease(string(next))
	}
	return err
}

// release ignores the admission except, which is the one moving off the bed.
func (e *Engine) release(ctx context.Context, bedID uuid.UUID, next ward.BedStatus, except uuid.UUID) error {
	if !validRelease(next) {
		return apperr.Validation("a bed can only be released to CLEANING or AVAILABLE, not %s", next)
	}
	bed, err := e.beds.GetBedForUpdate(ctx, bedID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return apperr.NotFound("Bed not found")
		}
		return err
	}
	admissionID, held, err := e.occupants.CurrentAdmission(ctx, bedID)
	if err != nil {
		return err
	}
	if held && admissionID != except {
		return apperr.Wrap(apperr.KindConflict, ErrBedHeld, "Bed still has an active admission")
	}
	if bed.Status != ward.BedOccupied {
		e.logger.Warn().
			Str("bed_id", bedID.String()).
			Str("status", string(bed.Status)).
			Msg("releasing a bed that was not OCCUPIED")
	}
	return e.setStatus(ctx, bed, next)
}

// Transfer claims to and releases from to AVAILABLE as one unit holding both
// bed locks. admissionID is the admission moving between them; it may still
// reference from while the unit runs. If the claim fails nothing changes.
func (e *Engine) Transfer(ctx context.Context, from, to, admissionID uuid.UUID) error {
	if from == to {
		return apperr.Validation("new bed is the current bed")
	}
	err := e.Do(ctx, []uuid.UUID{from, to}, func(ctx context.Context) error {
		if _, err := e.claim(ctx, to); err != nil {
			return err
		}
		return e.release(ctx, from, ward.BedAvailable, admissionID)
	})
	e.metrics.ObserveTransfer(resultOf(err))
	if err == nil {
		e.metrics.ObserveRelease(string(ward.BedAvailable))
	}
	return err
}

// ChangeStatus applies an administrative status change such as putting a bed
// under maintenance or finishing its cleaning.
func (e *Engine) ChangeStatus(ctx context.Context, bedID uuid.UUID, next ward.BedStatus) (*ward.Bed, error) {
	if !next.Valid() {
		return nil, apperr.Validation("invalid status: %s", next)
	}
	var out *ward.Bed
	err := e.Do(ctx, []uuid.UUID{bedID}, func(ctx context.Context) error {
		bed, err := e.beds.GetBedForUpdate(ctx, bedID)
		if err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				return apperr.NotFound("Bed not found")
			}
			return err
		}
		out = bed
		if bed.Status == next {
			return nil
		}
		if bed.Status == ward.BedOccupied || next == ward.BedOccupied {
			return apperr.Conflict("OCCUPIED is only entered by admission and left by discharge or transfer")
		}
		if !CanTransition(bed.Status, next) {
			return apperr.Conflict("Cannot change bed status from %s to %s", bed.Status, next)
		}
		if _, held, err := e.occupants.CurrentAdmission(ctx, bedID); err != nil {
			return err
		} else if held {
			return apperr.Wrap(apperr.KindConflict, ErrBedHeld, "Bed still has an active admission")
		}
		if err := e.setStatus(ctx, bed, next); err != nil {
			return err
		}
		out.Status = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case apperr.Is(err, apperr.KindConflict):
		return metrics.ResultConflict
	default:
		return metrics.ResultError
	}
}
