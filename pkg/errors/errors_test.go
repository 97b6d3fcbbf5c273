package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConstructorsCarryCodeAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		sentinel   error
		code       string
		statusCode int
	}{
		{"not found", NotFound("batch"), ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{"bad request", BadRequest("nope"), ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest},
		{"conflict", Conflict("taken"), ErrConflict, "CONFLICT", http.StatusConflict},
		{"invalid credentials", InvalidCredentials(), ErrInvalidCredentials, "INVALID_CREDENTIALS", http.StatusBadRequest},
		{"duplicate invoice", DuplicateInvoice(), ErrDuplicateInvoice, "DUPLICATE_INVOICE", http.StatusConflict},
		{"insufficient stock", InsufficientStock(), ErrInsufficientStock, "INSUFFICIENT_STOCK", http.StatusBadRequest},
		{"batch expired", BatchExpired(), ErrBatchExpired, "BATCH_EXPIRED", http.StatusBadRequest},
		{"invalid issue date", InvalidIssueDate(), ErrInvalidIssueDate, "INVALID_ISSUE_DATE", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.True(t, Is(tt.err, tt.sentinel))
		})
	}
}

func TestIsMatchesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("create issue: %w", InsufficientStock())

	assert.True(t, Is(err, ErrInsufficientStock))
	assert.False(t, Is(err, ErrBatchExpired))

	var appErr *AppError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, "INSUFFICIENT_STOCK", appErr.Code)
}

func TestNotFoundMessageNamesResource(t *testing.T) {
	err := NotFound("medicine")
	assert.Equal(t, "medicine not found", err.Message)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := Wrap(cause, "INTERNAL_ERROR", "query failed", http.StatusInternalServerError)

	assert.Equal(t, "query failed: connection reset", err.Error())
	assert.Equal(t, cause, err.Unwrap())
}

func TestValidationCarriesFieldDetails(t *testing.T) {
	err := Validation(map[string]string{"issued_boxes": "must be at least 1"})

	assert.Equal(t, "VALIDATION_ERROR", err.Code)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode)
	assert.Equal(t, "must be at least 1", err.Details["issued_boxes"])
}
