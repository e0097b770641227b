package validate

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ehr/inpatient/internal/platform/apperr"
)

type sample struct {
	Name     string    `json:"name" validate:"required,max=10"`
	Type     string    `json:"room_type" validate:"omitempty,oneof=GENERAL ICU"`
	Capacity int       `json:"capacity" validate:"gte=0"`
	WardID   uuid.UUID `json:"ward_id" validate:"required"`
}

func TestValidator_Valid(t *testing.T) {
	v := New()
	err := v.Validate(&sample{Name: "Ward A", Type: "ICU", Capacity: 2, WardID: uuid.New()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidator_ReportsJSONFieldNames(t *testing.T) {
	v := New()
	err := v.Validate(&sample{Type: "SUITE", Capacity: -1})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("expected validation kind, got %s", apperr.KindOf(err))
	}

	msg := apperr.PublicMessage(err)
	for _, want := range []string{
		"name is required",
		"room_type must be one of [GENERAL ICU]",
		"capacity must be greater than or equal to 0",
		"ward_id is required",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestValidator_Max(t *testing.T) {
	v := New()
	err := v.Validate(&sample{Name: "a very long ward name", WardID: uuid.New()})
	if err == nil || !strings.Contains(apperr.PublicMessage(err), "name must be at most 10") {
		t.Errorf("unexpected error: %v", err)
	}
}
