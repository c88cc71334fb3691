package persistence

import (
	"errors"

	"github.com/dormitory/backend/internal/domain/shared"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes for integrity constraint violations
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// translateError maps driver and GORM errors onto domain errors.
// entity names the row kind in the resulting message. Unknown errors pass through unchanged.
func translateError(err error, entity string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.WrapDomainError(shared.CodeNotFound, entity+" not found", err)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return shared.WrapDomainError(shared.CodeAlreadyExists, entity+" already exists", err)
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return shared.WrapDomainError(shared.CodeInvalidInput, entity+" references a missing record", err)
	}
	if errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return shared.WrapDomainError(shared.CodeInvalidInput, entity+" violates a check constraint", err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return shared.WrapDomainError(shared.CodeAlreadyExists, entity+" already exists", err)
		case pgForeignKeyViolation:
			return shared.WrapDomainError(shared.CodeInvalidInput, entity+" references a missing record", err)
		case pgCheckViolation:
			return shared.WrapDomainError(shared.CodeInvalidInput, entity+" violates constraint "+pgErr.ConstraintName, err)
		}
	}

	return err
}
