package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrBelowMinimum      = errors.New("below minimum quantity")
	ErrValidation        = errors.New("validation failed")
	ErrExternalService   = errors.New("external service failure")
	ErrRetryLimitReached = errors.New("retry limit reached, please contact support")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNotInReview       = errors.New("order can only be submitted from review")
	ErrBranchLocked      = errors.New("delivery option cannot change during checkout")
)

// ValidationError maps form field names to messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("validation failed: %s", strings.Join(keys, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type StockInsufficientError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *StockInsufficientError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *StockInsufficientError) Is(target error) bool { return target == ErrInsufficientStock }

type MinimumQuantityError struct {
	ProductID   int64
	ProductName string
	Minimum     int
}

func (e *MinimumQuantityError) Error() string {
	return fmt.Sprintf("%s must be ordered in quantities of at least %d", e.ProductName, e.Minimum)
}

func (e *MinimumQuantityError) Is(target error) bool { return target == ErrBelowMinimum }

// ExternalServiceError is a failed call to order creation or payment-link
// creation. Attempt counts failures recorded for the order reference.
type ExternalServiceError struct {
	Op      string
	Attempt int
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s failed (attempt %d): %v", e.Op, e.Attempt, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func (e *ExternalServiceError) Is(target error) bool { return target == ErrExternalService }
