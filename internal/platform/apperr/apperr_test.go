package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"not found", NotFound("bed %s not found", "B1"), KindNotFound},
		{"conflict", Conflict("Bed is not available"), KindConflict},
		{"wrapped conflict", fmt.Errorf("claim: %w", Conflict("taken")), KindConflict},
		{"precondition", Precondition("summary required"), KindPrecondition},
		{"validation", Validation("bed_id is required"), KindValidation},
		{"plain error", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWrap_KeepsSentinel(t *testing.T) {
	sentinel := errors.New("discharge summary required")
	err := Wrap(KindPrecondition, sentinel, "a discharge summary must be filed before discharge")

	if !errors.Is(err, sentinel) {
		t.Error("expected errors.Is to match the sentinel")
	}
	if !Is(err, KindPrecondition) {
		t.Error("expected precondition kind")
	}
	if PublicMessage(err) != "a discharge summary must be filed before discharge" {
		t.Errorf("unexpected public message: %s", PublicMessage(err))
	}
}

func TestPublicMessage_HidesInternal(t *testing.T) {
	err := Internal(errors.New("connection reset by peer"), "update bed")
	if PublicMessage(err) != "internal error" {
		t.Errorf("expected generic message, got %q", PublicMessage(err))
	}
	if PublicMessage(errors.New("raw")) != "internal error" {
		t.Error("expected generic message for unclassified error")
	}
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Kind]int{
		KindNotFound:     http.StatusNotFound,
		KindConflict:     http.StatusConflict,
		KindPrecondition: http.StatusPreconditionFailed,
		KindValidation:   http.StatusBadRequest,
		KindInternal:     http.StatusInternalServerError,
	}
	for kind, want := range cases {
		if got := HTTPStatus(kind); got != want {
			t.Errorf("HTTPStatus(%s) = %d, want %d", kind, got, want)
		}
	}
}
