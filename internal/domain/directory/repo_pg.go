package directory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const userCols = `id, name, email, role, created_at`

func (r *repoPG) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	var u User
	err := r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM app_user WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "user")
	}
	return &u, nil
}

func (r *repoPG) ListUsers(ctx context.Context, role Role) ([]*User, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if role == "" {
		rows, err = r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM app_user ORDER BY name`)
	} else {
		rows, err = r.conn(ctx).Query(ctx, `SELECT `+userCols+` FROM app_user WHERE role = $1 ORDER BY name`, role)
	}
	if err != nil {
		return nil, db.TranslateError(err, "user")
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt); err != nil {
			return nil, db.TranslateError(err, "user")
		}
		users = append(users, &u)
	}
	return users, db.TranslateError(rows.Err(), "user")
}

func (r *repoPG) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO app_user (id, name, email, role, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Name, u.Email, u.Role, u.CreatedAt,
	)
	return db.TranslateError(err, "user")
}

func (r *repoPG) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	var d Department
	err := r.conn(ctx).QueryRow(ctx, `SELECT id, code, name, created_at FROM department WHERE id = $1`, id).
		Scan(&d.ID, &d.Code, &d.Name, &d.CreatedAt)
	if err != nil {
		return nil, db.TranslateError(err, "department")
	}
	return &d, nil
}

func (r *repoPG) ListDepartments(ctx context.Context) ([]*Department, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, code, name, created_at FROM department ORDER BY name`)
	if err != nil {
		return nil, db.TranslateError(err, "department")
	}
	defer rows.Close()

	var depts []*Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.Code, &d.Name, &d.CreatedAt); err != nil {
			return nil, db.TranslateError(err, "department")
		}
		depts = append(depts, &d)
	}
	return depts, db.TranslateError(rows.Err(), "department")
}

func (r *repoPG) CreateDepartment(ctx context.Context, d *Department) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	d.CreatedAt = time.Now().UTC()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO department (id, code, name, created_at) VALUES ($1, $2, $3, $4)`,
		d.ID, d.Code, d.Name, d.CreatedAt,
	)
	return db.TranslateError(err, "department")
}
