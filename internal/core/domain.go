package core

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	Expense TransactionType = "expense"
	Income  TransactionType = "income"
)

// DateLayout is the calendar-date wire format used everywhere a Date is
// serialized.
const DateLayout = "2006-01-02"

// MaxDescriptionLength is counted in runes, descriptions are mostly CJK.
const MaxDescriptionLength = 200

type (
	TransactionType string

	// Date is a calendar date. Time-of-day is always midnight UTC.
	Date struct {
		time.Time
	}

	Transaction struct {
		ID          string
		Amount      decimal.Decimal
		Type        TransactionType
		CategoryID  string
		Description string
		Date        Date
		CreatedAt   int64 // unix milliseconds
	}
)

// ParseTransactionType accepts the two wire values, case-insensitively.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(strings.ToLower(strings.TrimSpace(s))) {
	case Expense:
		return Expense, nil
	case Income:
		return Income, nil
	}
	return "", ErrInvalidType
}

func (t TransactionType) Valid() bool {
	return t == Expense || t == Income
}

func (t TransactionType) String() string {
	return string(t)
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current calendar date in the local timezone.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the YYYY-MM-DD form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Equal compares calendar dates, ignoring location and clock.
func (d Date) Equal(o Date) bool {
	return d.String() == o.String()
}

// MarshalJSON overrides the promoted time.Time encoding so dates travel as
// "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return ErrInvalidDate
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Validate checks the record against the category registry. The category
// must exist and its type must match the record's type.
func (t Transaction) Validate(reg *Registry) error {
	if strings.TrimSpace(t.ID) == "" {
		return &ValidationError{Field: "id", Err: ErrMissingID}
	}
	if err := ValidateAmount(t.Amount); err != nil {
		return &ValidationError{Field: "amount", Err: err}
	}
	if !t.Type.Valid() {
		return &ValidationError{Field: "type", Err: ErrInvalidType}
	}
	if err := t.Date.Validate(); err != nil {
		return &ValidationError{Field: "date", Err: err}
	}
	if utf8.RuneCountInString(t.Description) > MaxDescriptionLength {
		return &ValidationError{Field: "description", Err: ErrDescriptionTooLong}
	}
	cat, ok := reg.ByID(t.CategoryID)
	if !ok {
		return &ValidationError{Field: "category", Err: ErrUnknownCategory}
	}
	if cat.Type != t.Type {
		return &ValidationError{Field: "category", Err: ErrCategoryTypeMismatch}
	}
	return nil
}

// Signed returns the amount with the direction applied: income positive,
// expense negative.
func (t Transaction) Signed() decimal.Decimal {
	if t.Type == Expense {
		return t.Amount.Neg()
	}
	return t.Amount
}
