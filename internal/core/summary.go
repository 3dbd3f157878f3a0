package core

import (
	"github.com/shopspring/decimal"
)

// Totals is the header balance of a ledger snapshot.
type Totals struct {
	Income  decimal.Decimal
	Expense decimal.Decimal
	Balance decimal.Decimal
}

// CategoryAmount represents an expense amount aggregated by category id.
type CategoryAmount struct {
	CategoryID string
	Total      decimal.Decimal
}

// CategoryShare is a breakdown entry with its share of total expense, in
// percent. Percent is zero when there is no expense at all.
type CategoryShare struct {
	CategoryAmount
	Percent decimal.Decimal
}

// DateGroup holds the records sharing one calendar date.
type DateGroup struct {
	Date         Date
	Transactions []Transaction
}

// MonthOverview is a compact summary for a specific year+month.
type MonthOverview struct {
	Year       int
	Month      int // 1-12
	Totals     Totals
	ByCategory []CategoryAmount
}
