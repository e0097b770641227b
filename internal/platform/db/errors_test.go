package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ehr/inpatient/internal/platform/apperr"
)

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperr.Kind
	}{
		{"no rows", pgx.ErrNoRows, apperr.KindNotFound},
		{"wrapped no rows", fmt.Errorf("scan bed: %w", pgx.ErrNoRows), apperr.KindNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505"}, apperr.KindConflict},
		{"fk violation", &pgconn.PgError{Code: "23503"}, apperr.KindConflict},
		{"other pg error", &pgconn.PgError{Code: "42P01"}, apperr.KindInternal},
		{"plain error", errors.New("connection reset"), apperr.KindInternal},
		{"already classified", apperr.Precondition("not admitted"), apperr.KindPrecondition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err, "bed")
			if k := apperr.KindOf(got); k != tt.want {
				t.Errorf("expected %s, got %s (%v)", tt.want, k, got)
			}
		})
	}
}

func TestTranslateError_Nil(t *testing.T) {
	if err := TranslateError(nil, "bed"); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestTranslateError_Messages(t *testing.T) {
	if msg := apperr.PublicMessage(TranslateError(pgx.ErrNoRows, "ward")); msg != "ward not found" {
		t.Errorf("unexpected message %q", msg)
	}
	if msg := apperr.PublicMessage(TranslateError(&pgconn.PgError{Code: "23505"}, "room")); msg != "room already exists" {
		t.Errorf("unexpected message %q", msg)
	}
	if msg := apperr.PublicMessage(TranslateError(errors.New("io"), "room")); msg != "internal error" {
		t.Errorf("unexpected message %q", msg)
	}
}
