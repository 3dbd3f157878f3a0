package core

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(id string, amount int64, typ TransactionType, cat string, date Date) Transaction {
	return Transaction{
		ID:         id,
		Amount:     decimal.NewFromInt(amount),
		Type:       typ,
		CategoryID: cat,
		Date:       date,
	}
}

func TestAggregatesEmpty(t *testing.T) {
	totals := ComputeTotals(nil)
	assert.True(t, totals.Income.IsZero())
	assert.True(t, totals.Expense.IsZero())
	assert.True(t, totals.Balance.IsZero())
	assert.Empty(t, ComputeCategoryBreakdown(nil))
	assert.Empty(t, GroupByDate(nil))
	assert.Empty(t, CategoryShares(nil, decimal.Zero))
}

func TestComputeTotals(t *testing.T) {
	// newest first, as the ledger hands them out
	records := []Transaction{
		tx("b", 20000, Income, "salary", NewDate(2024, 5, 2)),
		tx("a", 45, Expense, "food", NewDate(2024, 5, 1)),
	}
	totals := ComputeTotals(records)
	assert.Equal(t, "20000", totals.Income.String())
	assert.Equal(t, "45", totals.Expense.String())
	assert.Equal(t, "19955", totals.Balance.String())
}

func TestComputeTotalsExact(t *testing.T) {
	records := []Transaction{
		{Amount: decimal.RequireFromString("0.1"), Type: Expense},
		{Amount: decimal.RequireFromString("0.2"), Type: Expense},
		{Amount: decimal.RequireFromString("0.3"), Type: Income},
	}
	totals := ComputeTotals(records)
	assert.True(t, totals.Balance.IsZero(), totals.Balance.String())
}

func TestComputeCategoryBreakdown(t *testing.T) {
	d := NewDate(2024, 5, 1)
	records := []Transaction{
		tx("3", 50, Expense, "transport", d),
		tx("2", 70, Expense, "food", d),
		tx("1", 30, Expense, "food", d),
		tx("0", 999, Income, "salary", d),
	}
	got := ComputeCategoryBreakdown(records)
	require.Len(t, got, 2)
	assert.Equal(t, "food", got[0].CategoryID)
	assert.Equal(t, "100", got[0].Total.String())
	assert.Equal(t, "transport", got[1].CategoryID)
	assert.Equal(t, "50", got[1].Total.String())
}

func TestComputeCategoryBreakdownStableTies(t *testing.T) {
	d := NewDate(2024, 5, 1)
	records := []Transaction{
		tx("1", 10, Expense, "shopping", d),
		tx("2", 10, Expense, "medical", d),
		tx("3", 20, Expense, "housing", d),
		tx("4", 10, Expense, "food", d),
	}
	got := ComputeCategoryBreakdown(records)
	ids := make([]string, len(got))
	for i, c := range got {
		ids[i] = c.CategoryID
	}
	assert.Equal(t, []string{"housing", "shopping", "medical", "food"}, ids)
}

func TestCategoryShares(t *testing.T) {
	breakdown := []CategoryAmount{
		{CategoryID: "food", Total: decimal.NewFromInt(75)},
		{CategoryID: "transport", Total: decimal.NewFromInt(25)},
	}
	shares := CategoryShares(breakdown, decimal.NewFromInt(100))
	require.Len(t, shares, 2)
	assert.Equal(t, "75", shares[0].Percent.String())
	assert.Equal(t, "25", shares[1].Percent.String())

	zero := CategoryShares(breakdown, decimal.Zero)
	for _, s := range zero {
		assert.True(t, s.Percent.IsZero())
	}
}

func TestGroupByDate(t *testing.T) {
	d1 := NewDate(2024, 5, 1)
	d2 := NewDate(2024, 5, 2)
	d3 := NewDate(2023, 12, 31)
	records := []Transaction{
		tx("e", 1, Expense, "food", d1),
		tx("d", 1, Expense, "food", d2),
		tx("c", 1, Expense, "food", d3),
		tx("b", 1, Expense, "food", d1),
		tx("a", 1, Income, "salary", d2),
	}
	groups := GroupByDate(records)
	require.Len(t, groups, 3)

	assert.Equal(t, "2024-05-02", groups[0].Date.String())
	assert.Equal(t, []string{"d", "a"}, ids(groups[0].Transactions))
	assert.Equal(t, "2024-05-01", groups[1].Date.String())
	assert.Equal(t, []string{"e", "b"}, ids(groups[1].Transactions))
	assert.Equal(t, "2023-12-31", groups[2].Date.String())
	assert.Equal(t, []string{"c"}, ids(groups[2].Transactions))
}

func TestGroupByDateUsesCalendarEquality(t *testing.T) {
	loc := time.FixedZone("X", -5*3600)
	a := Transaction{ID: "a", Date: DateOf(time.Date(2024, 5, 1, 0, 1, 0, 0, time.UTC))}
	b := Transaction{ID: "b", Date: DateOf(time.Date(2024, 5, 1, 23, 0, 0, 0, loc))}
	groups := GroupByDate([]Transaction{a, b})
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Transactions, 2)
}

func TestFilterMonthAndOverview(t *testing.T) {
	records := []Transaction{
		tx("c", 300, Income, "bonus", NewDate(2024, 6, 1)),
		tx("b", 40, Expense, "food", NewDate(2024, 5, 31)),
		tx("a", 60, Expense, "transport", NewDate(2024, 5, 1)),
		tx("z", 10, Expense, "food", NewDate(2023, 5, 20)),
	}
	may := FilterMonth(records, 2024, time.May)
	assert.Equal(t, []string{"b", "a"}, ids(may))

	ov := NewMonthOverview(records, 2024, time.May)
	assert.Equal(t, 5, ov.Month)
	assert.Equal(t, "100", ov.Totals.Expense.String())
	assert.True(t, ov.Totals.Income.IsZero())
	require.Len(t, ov.ByCategory, 2)
	assert.Equal(t, "transport", ov.ByCategory[0].CategoryID)
}

func TestRecent(t *testing.T) {
	d := NewDate(2024, 5, 1)
	records := []Transaction{tx("c", 1, Expense, "food", d), tx("b", 1, Expense, "food", d), tx("a", 1, Expense, "food", d)}
	assert.Equal(t, []string{"c", "b"}, ids(Recent(records, 2)))
	assert.Len(t, Recent(records, 50), 3)
	assert.Empty(t, Recent(records, -1))

	got := Recent(records, 1)
	got[0].ID = "mutated"
	assert.Equal(t, "c", records[0].ID)
}

// Random ledgers exercise the invariants that hold for every input.
func TestAggregateProperties(t *testing.T) {
	reg := DefaultRegistry()
	cats := reg.List("")
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		n := rng.Intn(40)
		records := make([]Transaction, 0, n)
		for i := 0; i < n; i++ {
			c := cats[rng.Intn(len(cats))]
			cents := rng.Int63n(1_000_000) + 1
			records = append(records, Transaction{
				ID:         fmt.Sprintf("r%d-%d", round, i),
				Amount:     decimal.New(cents, -2),
				Type:       c.Type,
				CategoryID: c.ID,
				Date:       NewDate(2024, 1+rng.Intn(3), 1+rng.Intn(5)),
			})
		}

		totals := ComputeTotals(records)
		assert.True(t, totals.Income.Sub(totals.Expense).Equal(totals.Balance))

		breakdown := ComputeCategoryBreakdown(records)
		sum := decimal.Zero
		for i, b := range breakdown {
			sum = sum.Add(b.Total)
			if i > 0 {
				assert.False(t, b.Total.GreaterThan(breakdown[i-1].Total), "breakdown not sorted")
			}
		}
		assert.True(t, sum.Equal(totals.Expense))

		seen := make(map[string]int, n)
		groups := GroupByDate(records)
		for i, g := range groups {
			for _, r := range g.Transactions {
				assert.True(t, r.Date.Equal(g.Date))
				seen[r.ID]++
			}
			if i > 0 {
				assert.Less(t, g.Date.String(), groups[i-1].Date.String())
			}
		}
		assert.Len(t, seen, n)
		for id, count := range seen {
			assert.Equal(t, 1, count, id)
		}
	}
}

func ids(records []Transaction) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
