package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ehr/inpatient/internal/platform/apperr"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// TranslateError classifies a pgx error for entity ("bed", "ward", ...).
func TranslateError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("%s not found", entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Message: entity + " already exists", Err: err}
		case pgForeignKeyViolation:
			return &apperr.Error{Kind: apperr.KindConflict, Message: entity + " is referenced by other records", Err: err}
		}
	}
	return apperr.Internal(err, "%s storage failure", entity)
}
