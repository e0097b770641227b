package admission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/inpatient/internal/platform/apperr"
	"github.com/ehr/inpatient/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const admissionCols = `id, admission_number, patient_id, doctor_id, bed_id, admission_date, discharge_date,
	reason, diagnosis, allergies, special_instructions, is_emergency, status, created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.AdmissionNumber, &a.PatientID, &a.DoctorID, &a.BedID, &a.AdmissionDate,
		&a.DischargeDate, &a.Reason, &a.Diagnosis, &a.Allergies, &a.SpecialInstructions, &a.IsEmergency,
		&a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "admission")
	}
	return &a, nil
}

func (r *repoPG) Create(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admission (id, admission_number, patient_id, doctor_id, bed_id, admission_date, discharge_date,
			reason, diagnosis, allergies, special_instructions, is_emergency, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.AdmissionNumber, a.PatientID, a.DoctorID, a.BedID, a.AdmissionDate, a.DischargeDate,
		a.Reason, a.Diagnosis, a.Allergies, a.SpecialInstructions, a.IsEmergency, a.Status, a.CreatedAt, a.UpdatedAt,
	)
	return db.TranslateError(err, "admission")
}

func (r *repoPG) Get(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return scanAdmission(r.conn(ctx).QueryRow(ctx, `SELECT `+admissionCols+` FROM admission WHERE id = $1`, id))
}

func (r *repoPG) GetForUpdate(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return scanAdmission(r.conn(ctx).QueryRow(ctx,
		`SELECT `+admissionCols+` FROM admission WHERE id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateBed(ctx context.Context, id, bedID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE admission SET bed_id = $2, updated_at = $3 WHERE id = $1`, id, bedID, time.Now().UTC())
	if err != nil {
		return db.TranslateError(err, "admission")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("admission not found")
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, dischargeDate *time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE admission SET status = $2, discharge_date = COALESCE($3, discharge_date), updated_at = $4
		WHERE id = $1`, id, status, dischargeDate, time.Now().UTC())
	if err != nil {
		return db.TranslateError(err, "admission")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("admission not found")
	}
	return nil
}

func (r *repoPG) List(ctx context.Context, f Filter, limit, offset int) ([]*Admission, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.PatientID != uuid.Nil {
		args = append(args, f.PatientID)
		where = append(where, fmt.Sprintf("patient_id = $%d", len(args)))
	}
	if f.DoctorID != uuid.Nil {
		args = append(args, f.DoctorID)
		where = append(where, fmt.Sprintf("doctor_id = $%d", len(args)))
	}
	from := ` FROM admission`
	if len(where) > 0 {
		from += ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "admission")
	}

	q := `SELECT ` + admissionCols + from + ` ORDER BY admission_date DESC, admission_number DESC`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, db.TranslateError(err, "admission")
	}
	defer rows.Close()

	var out []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	return out, total, db.TranslateError(rows.Err(), "admission")
}

func (r *repoPG) CreateSummary(ctx context.Context, s *DischargeSummary) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO discharge_summary (id, admission_id, doctor_id, discharge_date, final_diagnosis,
			treatment_summary, follow_up_instructions, medications_at_discharge, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.AdmissionID, s.DoctorID, s.DischargeDate, s.FinalDiagnosis,
		s.TreatmentSummary, s.FollowUpInstructions, s.MedicationsAtDischarge, s.CreatedAt,
	)
	return db.TranslateError(err, "discharge summary")
}

func (r *repoPG) GetSummary(ctx context.Context, admissionID uuid.UUID) (*DischargeSummary, error) {
	var s DischargeSummary
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT id, admission_id, doctor_id, discharge_date, final_diagnosis, treatment_summary,
			follow_up_instructions, medications_at_discharge, created_at
		FROM discharge_summary WHERE admission_id = $1`, admissionID,
	).Scan(&s.ID, &s.AdmissionID, &s.DoctorID, &s.DischargeDate, &s.FinalDiagnosis, &s.TreatmentSummary,
		&s.FollowUpInstructions, &s.MedicationsAtDischarge, &s.CreatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "discharge summary")
	}
	return &s, nil
}

func (r *repoPG) CreateTransfer(ctx context.Context, t *BedTransfer) error {
	t.ID = uuid.New()
	if t.TransferredAt.IsZero() {
		t.TransferredAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bed_transfer (id, admission_id, from_bed_id, to_bed_id, reason, transferred_by, transferred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		t.ID, t.AdmissionID, t.FromBedID, t.ToBedID, t.Reason, t.TransferredBy, t.TransferredAt,
	)
	return db.TranslateError(err, "bed transfer")
}

func (r *repoPG) ListTransfers(ctx context.Context, admissionID uuid.UUID) ([]*BedTransfer, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, admission_id, from_bed_id, to_bed_id, reason, transferred_by, transferred_at
		FROM bed_transfer WHERE admission_id = $1 ORDER BY transferred_at`, admissionID)
	if err != nil {
		return nil, db.TranslateError(err, "bed transfer")
	}
	defer rows.Close()

	var out []*BedTransfer
	for rows.Next() {
		var t BedTransfer
		if err := rows.Scan(&t.ID, &t.AdmissionID, &t.FromBedID, &t.ToBedID, &t.Reason,
			&t.TransferredBy, &t.TransferredAt); err != nil {
			return nil, db.TranslateError(err, "bed transfer")
		}
		out = append(out, &t)
	}
	return out, db.TranslateError(rows.Err(), "bed transfer")
}

func (r *repoPG) AddStatusChange(ctx context.Context, c *StatusChange) error {
	c.ID = uuid.New()
	if c.ChangedAt.IsZero() {
		c.ChangedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO admission_status_history (id, admission_id, from_status, to_status, changed_by, note, changed_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`,
		c.ID, c.AdmissionID, string(c.FromStatus), c.ToStatus, c.ChangedBy, c.Note, c.ChangedAt,
	)
	return db.TranslateError(err, "status history")
}

func (r *repoPG) ListStatusChanges(ctx context.Context, admissionID uuid.UUID) ([]*StatusChange, error) {
	// seq breaks ties between entries written in the same transaction.
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, admission_id, COALESCE(from_status, ''), to_status, changed_by, note, changed_at
		FROM admission_status_history WHERE admission_id = $1 ORDER BY changed_at, seq`, admissionID)
	if err != nil {
		return nil, db.TranslateError(err, "status history")
	}
	defer rows.Close()

	var out []*StatusChange
	for rows.Next() {
		var c StatusChange
		if err := rows.Scan(&c.ID, &c.AdmissionID, &c.FromStatus, &c.ToStatus, &c.ChangedBy,
			&c.Note, &c.ChangedAt); err != nil {
			return nil, db.TranslateError(err, "status history")
		}
		out = append(out, &c)
	}
	return out, db.TranslateError(rows.Err(), "status history")
}

// NextSequence advances the year's counter with a single upsert so concurrent
// transactions serialize on the counter row.
func (r *repoPG) NextSequence(ctx context.Context, year int) (int64, error) {
	var n int64
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO admission_sequence (year, last_value) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_value = admission_sequence.last_value + 1
		RETURNING last_value`, year,
	).Scan(&n)
	if err != nil {
		return 0, db.TranslateError(err, "admission sequence")
	}
	return n, nil
}

func (r *repoPG) CurrentAdmission(ctx context.Context, bedID uuid.UUID) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id FROM admission WHERE bed_id = $1 AND status = 'ADMITTED'`, bedID).Scan(&id)
	if err != nil {
		if apperr.Is(db.TranslateError(err, "admission"), apperr.KindNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, db.TranslateError(err, "admission")
	}
	return id, true, nil
}

func (r *repoPG) OccupiedBeds(ctx context.Context, bedIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool)
	if len(bedIDs) == 0 {
		return out, nil
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT bed_id FROM admission WHERE status = 'ADMITTED' AND bed_id = ANY($1)`, bedIDs)
	if err != nil {
		return nil, db.TranslateError(err, "admission")
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, db.TranslateError(err, "admission")
		}
		out[id] = true
	}
	return out, db.TranslateError(rows.Err(), "admission")
}
