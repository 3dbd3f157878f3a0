package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeTotals sums income and expense in a single pass. No rounding is
// applied.
func ComputeTotals(records []Transaction) Totals {
	income, expense := decimal.Zero, decimal.Zero
	for _, r := range records {
		switch r.Type {
		case Income:
			income = income.Add(r.Amount)
		case Expense:
			expense = expense.Add(r.Amount)
		}
	}
	return Totals{Income: income, Expense: expense, Balance: income.Sub(expense)}
}

// ComputeCategoryBreakdown sums expenses per category, largest first. Equal
// totals keep the order in which their category first appears in records.
func ComputeCategoryBreakdown(records []Transaction) []CategoryAmount {
	index := make(map[string]int)
	out := make([]CategoryAmount, 0)
	for _, r := range records {
		if r.Type != Expense {
			continue
		}
		i, ok := index[r.CategoryID]
		if !ok {
			i = len(out)
			index[r.CategoryID] = i
			out = append(out, CategoryAmount{CategoryID: r.CategoryID, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(r.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total.GreaterThan(out[j].Total)
	})
	return out
}

// CategoryShares attaches each entry's percentage of totalExpense.
func CategoryShares(breakdown []CategoryAmount, totalExpense decimal.Decimal) []CategoryShare {
	out := make([]CategoryShare, 0, len(breakdown))
	for _, b := range breakdown {
		pct := decimal.Zero
		if totalExpense.IsPositive() {
			pct = b.Total.Mul(hundred).Div(totalExpense)
		}
		out = append(out, CategoryShare{CategoryAmount: b, Percent: pct})
	}
	return out
}

// GroupByDate partitions records by calendar date, newest date first. Within
// a group the input order is preserved.
func GroupByDate(records []Transaction) []DateGroup {
	index := make(map[string]int)
	out := make([]DateGroup, 0)
	for _, r := range records {
		key := r.Date.String()
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, DateGroup{Date: r.Date})
		}
		out[i].Transactions = append(out[i].Transactions, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.String() > out[j].Date.String()
	})
	return out
}

// FilterMonth returns the records dated in the given year and month, in
// input order.
func FilterMonth(records []Transaction, year int, month time.Month) []Transaction {
	out := make([]Transaction, 0)
	for _, r := range records {
		if r.Date.Year() == year && r.Date.Month() == month {
			out = append(out, r)
		}
	}
	return out
}

// Recent returns at most n records from the head of the ledger.
func Recent(records []Transaction, n int) []Transaction {
	if n < 0 {
		n = 0
	}
	if len(records) < n {
		n = len(records)
	}
	out := make([]Transaction, n)
	copy(out, records[:n])
	return out
}

// NewMonthOverview summarizes one calendar month of a snapshot.
func NewMonthOverview(records []Transaction, year int, month time.Month) MonthOverview {
	monthly := FilterMonth(records, year, month)
	return MonthOverview{
		Year:       year,
		Month:      int(month),
		Totals:     ComputeTotals(monthly),
		ByCategory: ComputeCategoryBreakdown(monthly),
	}
}
