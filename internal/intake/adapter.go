// Package intake turns manual form input and extracted guesses into ledger
// records. Both paths end in a Draft, and only Accept assigns identity.
package intake

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wenxuji/internal/core"
)

// ManualInput is what the entry form submits. Category may be an id or an
// exact display name. An empty Date means today.
type ManualInput struct {
	Amount      string
	Type        string
	Category    string
	Description string
	Date        string
}

// Candidate is an untrusted guess, usually from the AI extractor.
type Candidate struct {
	Amount      float64
	Category    string
	Description string
	Type        string
	Date        string
}

// Draft is a normalized transaction that has not been given an identity yet.
// Adjusted lists the fields that were replaced by defaults during
// normalization.
type Draft struct {
	Amount      decimal.Decimal
	Type        core.TransactionType
	CategoryID  string
	Description string
	Date        core.Date
	Adjusted    []string
}

type Adapter struct {
	reg   *core.Registry
	now   func() time.Time
	newID func() string
}

type Option func(*Adapter)

// WithClock overrides the clock used for default dates and createdAt.
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// WithIDGenerator overrides uuid.NewString.
func WithIDGenerator(f func() string) Option {
	return func(a *Adapter) { a.newID = f }
}

func New(reg *core.Registry, opts ...Option) *Adapter {
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	a := &Adapter{reg: reg, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) Registry() *core.Registry {
	return a.reg
}

// Manual validates form input strictly: every field must be usable as given.
func (a *Adapter) Manual(in ManualInput) (Draft, error) {
	var d Draft

	amount, err := core.ParseAmount(in.Amount)
	if err != nil {
		return d, &core.ValidationError{Field: "amount", Err: err}
	}
	d.Amount = amount

	typ, err := core.ParseTransactionType(in.Type)
	if err != nil {
		return d, &core.ValidationError{Field: "type", Err: err}
	}
	d.Type = typ

	cat, err := a.reg.Resolve(typ, in.Category)
	if err != nil {
		return d, &core.ValidationError{Field: "category", Err: err}
	}
	d.CategoryID = cat.ID

	d.Description = strings.TrimSpace(in.Description)
	if utf8.RuneCountInString(d.Description) > core.MaxDescriptionLength {
		return d, &core.ValidationError{Field: "description", Err: core.ErrDescriptionTooLong}
	}

	if strings.TrimSpace(in.Date) == "" {
		d.Date = core.DateOf(a.now())
	} else {
		date, err := core.ParseDate(in.Date)
		if err != nil {
			return d, &core.ValidationError{Field: "date", Err: err}
		}
		d.Date = date
	}
	return d, nil
}

// FromCandidate normalizes an extracted guess. Only the amount can make it
// fail; a bad type becomes expense, an unknown or mismatched category becomes
// the type's catch-all, a bad or missing date becomes today, and an overlong
// description is cut.
func (a *Adapter) FromCandidate(c Candidate) (Draft, error) {
	var d Draft

	amount, err := core.AmountFromFloat(c.Amount)
	if err != nil {
		return d, &core.ValidationError{Field: "amount", Err: err}
	}
	d.Amount = amount

	typ, err := core.ParseTransactionType(c.Type)
	if err != nil {
		typ = core.Expense
		d.Adjusted = append(d.Adjusted, "type")
	}
	d.Type = typ

	cat, err := a.reg.Resolve(typ, c.Category)
	if err != nil {
		cat = a.reg.Other(typ)
		d.Adjusted = append(d.Adjusted, "category")
	}
	d.CategoryID = cat.ID

	d.Description = strings.TrimSpace(c.Description)
	if utf8.RuneCountInString(d.Description) > core.MaxDescriptionLength {
		d.Description = string([]rune(d.Description)[:core.MaxDescriptionLength])
		d.Adjusted = append(d.Adjusted, "description")
	}

	d.Date = core.DateOf(a.now())
	if s := strings.TrimSpace(c.Date); s != "" {
		if date, err := core.ParseDate(s); err == nil {
			d.Date = date
		} else {
			d.Adjusted = append(d.Adjusted, "date")
		}
	}
	return d, nil
}

// Accept gives a draft its id and creation time. The result still goes
// through the ledger's own validation on append.
func (a *Adapter) Accept(d Draft) core.Transaction {
	return core.Transaction{
		ID:          a.newID(),
		Amount:      d.Amount,
		Type:        d.Type,
		CategoryID:  d.CategoryID,
		Description: d.Description,
		Date:        d.Date,
		CreatedAt:   a.now().UnixMilli(),
	}
}

// PrepareManual is Manual followed by Accept.
func (a *Adapter) PrepareManual(in ManualInput) (core.Transaction, error) {
	d, err := a.Manual(in)
	if err != nil {
		return core.Transaction{}, err
	}
	return a.Accept(d), nil
}
