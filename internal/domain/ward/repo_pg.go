package ward

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

const wardCols = `id, name, ward_number, department_id, capacity, active, created_at, updated_at`

func scanWard(row pgx.Row) (*Ward, error) {
	var w Ward
	err := row.Scan(&w.ID, &w.Name, &w.WardNumber, &w.DepartmentID, &w.Capacity, &w.Active, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "ward")
	}
	return &w, nil
}

func (r *repoPG) CreateWard(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO ward (id, name, ward_number, department_id, capacity, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.Name, w.WardNumber, w.DepartmentID, w.Capacity, w.Active, w.CreatedAt, w.UpdatedAt,
	)
	return db.TranslateError(err, "ward")
}

func (r *repoPG) GetWard(ctx context.Context, id uuid.UUID) (*Ward, error) {
	return scanWard(r.conn(ctx).QueryRow(ctx, `SELECT `+wardCols+` FROM ward WHERE id = $1`, id))
}

func (r *repoPG) UpdateWard(ctx context.Context, w *Ward) error {
	w.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE ward SET name = $2, ward_number = $3, department_id = $4, capacity = $5, active = $6, updated_at = $7
		WHERE id = $1`,
		w.ID, w.Name, w.WardNumber, w.DepartmentID, w.Capacity, w.Active, w.UpdatedAt,
	)
	if err != nil {
		return db.TranslateError(err, "ward")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ward not found")
	}
	return nil
}

func (r *repoPG) DeleteWard(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM ward WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "ward")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("ward not found")
	}
	return nil
}

func (r *repoPG) ListWards(ctx context.Context, activeOnly bool) ([]*Ward, error) {
	q := `SELECT ` + wardCols + ` FROM ward`
	if activeOnly {
		q += ` WHERE active`
	}
	rows, err := r.conn(ctx).Query(ctx, q+` ORDER BY ward_number`)
	if err != nil {
		return nil, db.TranslateError(err, "ward")
	}
	defer rows.Close()

	var wards []*Ward
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, err
		}
		wards = append(wards, w)
	}
	return wards, db.TranslateError(rows.Err(), "ward")
}

const roomCols = `id, room_number, ward_id, room_type, capacity, daily_rate, active, created_at, updated_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var rm Room
	err := row.Scan(&rm.ID, &rm.RoomNumber, &rm.WardID, &rm.RoomType, &rm.Capacity, &rm.DailyRate,
		&rm.Active, &rm.CreatedAt, &rm.UpdatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "room")
	}
	return &rm, nil
}

func (r *repoPG) CreateRoom(ctx context.Context, rm *Room) error {
	rm.ID = uuid.New()
	now := time.Now().UTC()
	rm.CreatedAt, rm.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO room (id, room_number, ward_id, room_type, capacity, daily_rate, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rm.ID, rm.RoomNumber, rm.WardID, rm.RoomType, rm.Capacity, rm.DailyRate, rm.Active, rm.CreatedAt, rm.UpdatedAt,
	)
	return db.TranslateError(err, "room")
}

func (r *repoPG) GetRoom(ctx context.Context, id uuid.UUID) (*Room, error) {
	return scanRoom(r.conn(ctx).QueryRow(ctx, `SELECT `+roomCols+` FROM room WHERE id = $1`, id))
}

func (r *repoPG) UpdateRoom(ctx context.Context, rm *Room) error {
	rm.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE room SET room_number = $2, ward_id = $3, room_type = $4, capacity = $5, daily_rate = $6,
			active = $7, updated_at = $8
		WHERE id = $1`,
		rm.ID, rm.RoomNumber, rm.WardID, rm.RoomType, rm.Capacity, rm.DailyRate, rm.Active, rm.UpdatedAt,
	)
	if err != nil {
		return db.TranslateError(err, "room")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("room not found")
	}
	return nil
}

func (r *repoPG) DeleteRoom(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM room WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "room")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("room not found")
	}
	return nil
}

func (r *repoPG) ListRoomsByWard(ctx context.Context, wardID uuid.UUID) ([]*Room, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+roomCols+` FROM room WHERE ward_id = $1 ORDER BY room_number`, wardID)
	if err != nil {
		return nil, db.TranslateError(err, "room")
	}
	defer rows.Close()

	var rooms []*Room
	for rows.Next() {
		rm, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, rm)
	}
	return rooms, db.TranslateError(rows.Err(), "room")
}

func (r *repoPG) CountRooms(ctx context.Context, wardID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM room WHERE ward_id = $1`, wardID).Scan(&n)
	return n, db.TranslateError(err, "room")
}

const bedCols = `b.id, b.bed_number, b.room_id, b.status, b.notes, b.created_at, b.updated_at`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	if err := row.Scan(&b.ID, &b.BedNumber, &b.RoomID, &b.Status, &b.Notes, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, db.TranslateError(err, "bed")
	}
	return &b, nil
}

func (r *repoPG) CreateBed(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bed (id, bed_number, room_id, status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.BedNumber, b.RoomID, b.Status, b.Notes, b.CreatedAt, b.UpdatedAt,
	)
	return db.TranslateError(err, "bed")
}

func (r *repoPG) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM bed b WHERE b.id = $1`, id))
}

func (r *repoPG) GetBedForUpdate(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return scanBed(r.conn(ctx).QueryRow(ctx, `SELECT `+bedCols+` FROM bed b WHERE b.id = $1 FOR UPDATE`, id))
}

func (r *repoPG) UpdateBed(ctx context.Context, b *Bed) error {
	b.UpdatedAt = time.Now().UTC()
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bed SET bed_number = $2, room_id = $3, notes = $4, updated_at = $5 WHERE id = $1`,
		b.ID, b.BedNumber, b.RoomID, b.Notes, b.UpdatedAt,
	)
	if err != nil {
		return db.TranslateError(err, "bed")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("bed not found")
	}
	return nil
}

func (r *repoPG) SetBedStatus(ctx context.Context, id uuid.UUID, status BedStatus) error {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE bed SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return db.TranslateError(err, "bed")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("bed not found")
	}
	return nil
}

func (r *repoPG) DeleteBed(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM bed WHERE id = $1`, id)
	if err != nil {
		return db.TranslateError(err, "bed")
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("bed not found")
	}
	return nil
}

func (r *repoPG) ListBeds(ctx context.Context, f BedFilter, limit, offset int) ([]*Bed, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("b.status = $%d", len(args)))
	}
	if f.RoomID != uuid.Nil {
		args = append(args, f.RoomID)
		where = append(where, fmt.Sprintf("b.room_id = $%d", len(args)))
	}
	if f.WardID != uuid.Nil {
		args = append(args, f.WardID)
		where = append(where, fmt.Sprintf("rm.ward_id = $%d", len(args)))
	}
	from := ` FROM bed b JOIN room rm ON rm.id = b.room_id`
	if len(where) > 0 {
		from += ` WHERE ` + strings.Join(where, " AND ")
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+from, args...).Scan(&total); err != nil {
		return nil, 0, db.TranslateError(err, "bed")
	}

	q := `SELECT ` + bedCols + from + ` ORDER BY b.bed_number`
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
		args = append(args, limit, offset)
	}
	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, 0, db.TranslateError(err, "bed")
	}
	defer rows.Close()

	var beds []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, 0, err
		}
		beds = append(beds, b)
	}
	return beds, total, db.TranslateError(rows.Err(), "bed")
}

func (r *repoPG) CountBeds(ctx context.Context, roomID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bed WHERE room_id = $1`, roomID).Scan(&n)
	return n, db.TranslateError(err, "bed")
}

func (r *repoPG) LocateBed(ctx context.Context, bedID uuid.UUID) (*BedLocation, error) {
	var loc BedLocation
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT b.id, b.bed_number, rm.id, rm.room_number, w.id, w.name
		FROM bed b
		JOIN room rm ON rm.id = b.room_id
		JOIN ward w ON w.id = rm.ward_id
		WHERE b.id = $1`, bedID,
	).Scan(&loc.BedID, &loc.BedNumber, &loc.RoomID, &loc.RoomNumber, &loc.WardID, &loc.WardName)
	if err != nil {
		return nil, db.TranslateError(err, "bed")
	}
	return &loc, nil
}
