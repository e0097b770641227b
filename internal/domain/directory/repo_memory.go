package directory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/inpatient/internal/platform/apperr"
)

type repoMemory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*User
	depts map[uuid.UUID]*Department
}

// NewMemoryRepo returns a Repository kept in process memory.
func NewMemoryRepo() Repository {
	return &repoMemory{
		users: make(map[uuid.UUID]*User),
		depts: make(map[uuid.UUID]*Department),
	}
}

func (r *repoMemory) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperr.NotFound("user not found")
	}
	cp := *u
	return &cp, nil
}

func (r *repoMemory) ListUsers(_ context.Context, role Role) ([]*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*User
	for _, u := range r.users {
		if role == "" || u.Role == role {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *repoMemory) CreateUser(_ context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if _, ok := r.users[u.ID]; ok {
		return apperr.Conflict("user already exists")
	}
	for _, existing := range r.users {
		if u.Email != "" && existing.Email == u.Email {
			return apperr.Conflict("user already exists")
		}
	}
	u.CreatedAt = time.Now().UTC()
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *repoMemory) GetDepartment(_ context.Context, id uuid.UUID) (*Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.depts[id]
	if !ok {
		return nil, apperr.NotFound("department not found")
	}
	cp := *d
	return &cp, nil
}

func (r *repoMemory) ListDepartments(_ context.Context) ([]*Department, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Department, 0, len(r.depts))
	for _, d := range r.depts {
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *repoMemory) CreateDepartment(_ context.Context, d *Department) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	for _, existing := range r.depts {
		if existing.ID == d.ID || existing.Code == d.Code {
			return apperr.Conflict("department already exists")
		}
	}
	d.CreatedAt = time.Now().UTC()
	cp := *d
	r.depts[d.ID] = &cp
	return nil
}
