package core

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
	ErrTooManyDecimals = errors.New("ensure that there are no more than 2 decimal places")
	ErrAmountTooLarge  = errors.New("ensure that there are no more than 10 digits in total")

	ErrSalaryNotConfigured = errors.New("salary not configured")
	ErrBudgetExceeded      = errors.New("expense exceeds monthly salary limit")

	ErrUserNotFound       = errors.New("user does not exist")
	ErrNoData             = errors.New("no expense data available")
	ErrNotFound           = errors.New("not found")
	ErrPaymentMethodInUse = errors.New("payment method is referenced by existing expenses")
	ErrConflict           = errors.New("already exists")
	ErrDuplicateEmail     = errors.New("a user with this email already exists")
	ErrDuplicateUsername  = errors.New("a user with that username already exists")
)

// ValidationError collects per-field input problems.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

// FieldError is shorthand for a ValidationError carrying a single field.
func FieldError(field, msg string) *ValidationError {
	v := NewValidationError()
	v.Add(field, msg)
	return v
}

// Add records msg for field. The first message for a field wins.
func (v *ValidationError) Add(field, msg string) {
	if _, ok := v.Fields[field]; ok {
		return
	}
	v.Fields[field] = msg
}

func (v *ValidationError) Has(field string) bool {
	_, ok := v.Fields[field]
	return ok
}

// Err returns nil when no field was recorded.
func (v *ValidationError) Err() error {
	if len(v.Fields) == 0 {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+v.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// AsValidation unwraps err into a ValidationError if it is one.
func AsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
