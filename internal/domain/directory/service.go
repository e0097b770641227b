package directory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/ehr/inpatient/internal/platform/apperr"
)

// Service answers existence and role questions for the allocation services.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetUser returns the user with id.
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// GetDepartment returns the department with id.
func (s *Service) GetDepartment(ctx context.Context, id uuid.UUID) (*Department, error) {
	return s.repo.GetDepartment(ctx, id)
}

// RequireRole returns the user with id if it exists and holds role. A user
// holding another role is reported as missing: a nurse is not a doctor.
func (s *Service) RequireRole(ctx context.Context, id uuid.UUID, role Role) (*User, error) {
	label := roleLabel(role)
	if id == uuid.Nil {
		return nil, apperr.Validation("%s_id is required", strings.ToLower(string(role)))
	}
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, apperr.NotFound("%s not found", label)
		}
		return nil, err
	}
	if u.Role != role {
		return nil, apperr.NotFound("%s not found", label)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, role Role) ([]*User, error) {
	if role != "" && !validRoles[role] {
		return nil, apperr.Validation("invalid role: %s", role)
	}
	return s.repo.ListUsers(ctx, role)
}

func (s *Service) ListDepartments(ctx context.Context) ([]*Department, error) {
	return s.repo.ListDepartments(ctx)
}

func (s *Service) CreateUser(ctx context.Context, u *User) error {
	if strings.TrimSpace(u.Name) == "" {
		return apperr.Validation("name is required")
	}
	if !validRoles[u.Role] {
		return apperr.Validation("invalid role: %s", u.Role)
	}
	return s.repo.CreateUser(ctx, u)
}

func (s *Service) CreateDepartment(ctx context.Context, d *Department) error {
	if strings.TrimSpace(d.Name) == "" || strings.TrimSpace(d.Code) == "" {
		return apperr.Validation("code and name are required")
	}
	return s.repo.CreateDepartment(ctx, d)
}

func roleLabel(role Role) string {
	switch role {
	case RolePatient:
		return "Patient"
	case RoleDoctor:
		return "Doctor"
	case RoleNurse:
		return "Nurse"
	}
	return "User"
}
