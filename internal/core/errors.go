package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidType          = errors.New("invalid transaction type")
	ErrInvalidDate          = errors.New("invalid date")
	ErrUnknownCategory      = errors.New("unknown category")
	ErrCategoryTypeMismatch = errors.New("category does not match transaction type")
	ErrMissingID            = errors.New("missing transaction id")
	ErrDuplicateID          = errors.New("transaction id already in ledger")
	ErrDescriptionTooLong   = errors.New("description too long")
)

// ValidationError reports a candidate transaction that cannot enter the
// ledger. Err is one of the sentinel errors above.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err, or anything it wraps, is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
