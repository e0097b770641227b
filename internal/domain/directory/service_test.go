package directory

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/inpatient/internal/platform/apperr"
)

func newTestService(t *testing.T) (*Service, *User, *User) {
	t.Helper()
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()
	patient := &User{Name: "Asha Rao", Email: "asha@example.org", Role: RolePatient}
	doctor := &User{Name: "Dr. Lin", Email: "lin@example.org", Role: RoleDoctor}
	for _, u := range []*User{patient, doctor} {
		if err := svc.CreateUser(ctx, u); err != nil {
			t.Fatalf("create user: %v", err)
		}
	}
	return svc, patient, doctor
}

func TestRequireRole(t *testing.T) {
	svc, patient, doctor := newTestService(t)
	ctx := context.Background()

	u, err := svc.RequireRole(ctx, patient.ID, RolePatient)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.Name != "Asha Rao" {
		t.Errorf("expected patient name, got %q", u.Name)
	}

	if _, err := svc.RequireRole(ctx, doctor.ID, RoleDoctor); err != nil {
		t.Fatalf("unexpected error for doctor: %v", err)
	}
}

func TestRequireRole_WrongRoleIsNotFound(t *testing.T) {
	svc, patient, doctor := newTestService(t)
	ctx := context.Background()

	_, err := svc.RequireRole(ctx, patient.ID, RoleDoctor)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if apperr.PublicMessage(err) != "Doctor not found" {
		t.Errorf("unexpected message %q", apperr.PublicMessage(err))
	}

	_, err = svc.RequireRole(ctx, doctor.ID, RolePatient)
	if apperr.PublicMessage(err) != "Patient not found" {
		t.Errorf("unexpected message %q", apperr.PublicMessage(err))
	}
}

func TestRequireRole_Missing(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.RequireRole(context.Background(), uuid.New(), RolePatient)
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err = svc.RequireRole(context.Background(), uuid.Nil, RolePatient)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for nil id, got %v", err)
	}
}

func TestCreateUser_Validation(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	if err := svc.CreateUser(ctx, &User{Role: RolePatient}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for missing name, got %v", err)
	}
	if err := svc.CreateUser(ctx, &User{Name: "X", Role: "JANITOR"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error for bad role, got %v", err)
	}
}

func TestCreateUser_DuplicateEmail(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.CreateUser(context.Background(), &User{Name: "Other", Email: "asha@example.org", Role: RolePatient})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestListUsers_FiltersByRole(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	doctors, err := svc.ListUsers(ctx, RoleDoctor)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doctors) != 1 || doctors[0].Role != RoleDoctor {
		t.Errorf("expected one doctor, got %v", doctors)
	}

	all, _ := svc.ListUsers(ctx, "")
	if len(all) != 2 {
		t.Errorf("expected 2 users, got %d", len(all))
	}

	if _, err := svc.ListUsers(ctx, "JANITOR"); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestDepartments(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	ctx := context.Background()

	d := &Department{Code: "MED", Name: "Internal Medicine"}
	if err := svc.CreateDepartment(ctx, d); err != nil {
		t.Fatalf("create department: %v", err)
	}
	if err := svc.CreateDepartment(ctx, &Department{Code: "MED", Name: "Dup"}); !apperr.Is(err, apperr.KindConflict) {
		t.Errorf("expected conflict on duplicate code, got %v", err)
	}
	if err := svc.CreateDepartment(ctx, &Department{Name: "No code"}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation error, got %v", err)
	}

	got, err := svc.GetDepartment(ctx, d.ID)
	if err != nil || got.Code != "MED" {
		t.Fatalf("GetDepartment() = %v, %v", got, err)
	}
	if _, err := svc.GetDepartment(ctx, uuid.New()); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}
