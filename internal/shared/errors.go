package shared

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrNotFound indicates an unknown transaction, counterparty, account or variant.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed input that the caller must correct.
	ErrValidation = errors.New("validation failed")
	// ErrDomainConflict indicates a business rule violation.
	ErrDomainConflict = errors.New("domain conflict")
	// ErrIdempotencyConflict indicates a key mismatch or a key reused across transactions.
	ErrIdempotencyConflict = errors.New("idempotency conflict")
	// ErrSerializationConflict is raised when the database aborts a concurrent write. Retryable.
	ErrSerializationConflict = errors.New("serialization conflict")
	// ErrInsufficientStock indicates one or more lines exceed available quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
)

// NotFound wraps ErrNotFound with detail.
func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

// Validation wraps ErrValidation with detail.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Conflict wraps ErrDomainConflict with detail.
func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDomainConflict, fmt.Sprintf(format, args...))
}

// IdempotencyConflict wraps ErrIdempotencyConflict with detail.
func IdempotencyConflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIdempotencyConflict, fmt.Sprintf(format, args...))
}

// StockShortfall describes one line that cannot be fulfilled.
type StockShortfall struct {
	ProductID uuid.UUID `json:"productId"`
	VariantID uuid.UUID `json:"variantId"`
	Available int64     `json:"available"`
	Required  int64     `json:"required"`
}

// InsufficientStockError aggregates every short line of a posting.
type InsufficientStockError struct {
	Lines []StockShortfall
}

func (e *InsufficientStockError) Error() string {
	if len(e.Lines) == 1 {
		l := e.Lines[0]
		return fmt.Sprintf("insufficient stock: variant %s available %d required %d", l.VariantID, l.Available, l.Required)
	}
	return fmt.Sprintf("insufficient stock on %d lines", len(e.Lines))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// IsRetryable reports whether resubmitting the identical request may succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSerializationConflict)
}
