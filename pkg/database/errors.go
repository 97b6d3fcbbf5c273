package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/medstock/medstock-backend/pkg/errors"
)

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation on the named constraint. An empty constraint matches any.
func IsUniqueViolation(err error, constraint string) bool {
	pqErr, ok := err.(*pq.Error)
	if !ok || pqErr.Code != "23505" {
		return false
	}
	if constraint == "" {
		return true
	}
	return strings.Contains(pqErr.Constraint, constraint)
}

// mapUniqueConstraint maps unique constraint names to stable business errors.
// Races on the batch-identity constraint during concurrent first-receipt
// upserts fall through to a generic conflict rather than a raw storage error.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "supplier_invoice"):
		return errors.DuplicateInvoice()
	case strings.Contains(constraint, "username"):
		return errors.Conflict("a user with this username already exists")
	default:
		return errors.Conflict("a record with these values already exists")
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "available_boxes_non_negative"):
		return errors.InsufficientStock()

	case strings.Contains(constraint, "payment_mode_valid"):
		return errors.Validation(map[string]string{
			"payment_mode": "must be one of: CASH, CREDIT, BANK, OTHER",
		})

	case strings.Contains(constraint, "receipt_type_valid"):
		return errors.Validation(map[string]string{
			"receipt_type": "must be one of: NORMAL_PURCHASE, RETURN_CREDIT",
		})

	case strings.Contains(constraint, "issued_boxes_positive"):
		return errors.Validation(map[string]string{
			"issued_boxes": "must be at least 1",
		})

	case strings.Contains(constraint, "quantity_boxes_positive"):
		return errors.Validation(map[string]string{
			"quantity_boxes": "must be at least 1",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}
