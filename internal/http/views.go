package http

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"wenxuji/internal/core"
	"wenxuji/internal/format"
	"wenxuji/internal/intake"
)

// Amounts leave the API as JSON numbers with their exact decimal digits.
func jsonAmount(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

type categoryView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
	Type  string `json:"type"`
}

type transactionView struct {
	ID          string       `json:"id"`
	Amount      json.Number  `json:"amount"`
	Display     string       `json:"display"`
	Type        string       `json:"type"`
	Category    categoryView `json:"category"`
	Description string       `json:"description"`
	Date        core.Date    `json:"date"`
	CreatedAt   int64        `json:"createdAt"`
}

type draftView struct {
	Amount      json.Number  `json:"amount"`
	Display     string       `json:"display"`
	Type        string       `json:"type"`
	Category    categoryView `json:"category"`
	Description string       `json:"description"`
	Date        core.Date    `json:"date"`
	Adjusted    []string     `json:"adjusted"`
}

type duplicateView struct {
	Transaction transactionView `json:"transaction"`
	Similarity  float64         `json:"similarity"`
}

type totalsView struct {
	Income         json.Number `json:"income"`
	Expense        json.Number `json:"expense"`
	Balance        json.Number `json:"balance"`
	IncomeDisplay  string      `json:"incomeDisplay"`
	ExpenseDisplay string      `json:"expenseDisplay"`
	BalanceDisplay string      `json:"balanceDisplay"`
}

type shareView struct {
	Category       categoryView `json:"category"`
	Total          json.Number  `json:"total"`
	Display        string       `json:"display"`
	Percent        json.Number  `json:"percent"`
	PercentDisplay string       `json:"percentDisplay"`
}

type monthView struct {
	Year      int         `json:"year"`
	Month     int         `json:"month"`
	Totals    totalsView  `json:"totals"`
	Breakdown []shareView `json:"breakdown"`
}

type overviewView struct {
	Totals    totalsView  `json:"totals"`
	Breakdown []shareView `json:"breakdown"`
	Month     monthView   `json:"month"`
	Count     int         `json:"count"`
}

type groupView struct {
	Date         core.Date         `json:"date"`
	Transactions []transactionView `json:"transactions"`
}

type createdView struct {
	Transaction transactionView `json:"transaction"`
	Duplicates  []duplicateView `json:"duplicates"`
}

type extractedView struct {
	Draft      draftView       `json:"draft"`
	Duplicates []duplicateView `json:"duplicates"`
}

type adviceView struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// presenter renders domain values with registry metadata and display amounts.
type presenter struct {
	reg *core.Registry
	fmt *format.Formatter
}

func (p presenter) category(id string) categoryView {
	c, ok := p.reg.ByID(id)
	if !ok {
		return categoryView{ID: id, Name: p.reg.DisplayName(id)}
	}
	return categoryView{ID: c.ID, Name: c.Name, Icon: c.Icon, Color: c.Color, Type: c.Type.String()}
}

func (p presenter) categories(cats []core.Category) []categoryView {
	out := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		out = append(out, p.category(c.ID))
	}
	return out
}

func (p presenter) transaction(t core.Transaction) transactionView {
	return transactionView{
		ID:          t.ID,
		Amount:      jsonAmount(t.Amount),
		Display:     p.fmt.Signed(t.Amount, t.Type),
		Type:        t.Type.String(),
		Category:    p.category(t.CategoryID),
		Description: t.Description,
		Date:        t.Date,
		CreatedAt:   t.CreatedAt,
	}
}

func (p presenter) transactions(records []core.Transaction) []transactionView {
	out := make([]transactionView, 0, len(records))
	for _, t := range records {
		out = append(out, p.transaction(t))
	}
	return out
}

func (p presenter) draft(d intake.Draft) draftView {
	adjusted := d.Adjusted
	if adjusted == nil {
		adjusted = []string{}
	}
	return draftView{
		Amount:      jsonAmount(d.Amount),
		Display:     p.fmt.Signed(d.Amount, d.Type),
		Type:        d.Type.String(),
		Category:    p.category(d.CategoryID),
		Description: d.Description,
		Date:        d.Date,
		Adjusted:    adjusted,
	}
}

func (p presenter) duplicates(hints []intake.DuplicateHint) []duplicateView {
	out := make([]duplicateView, 0, len(hints))
	for _, h := range hints {
		out = append(out, duplicateView{Transaction: p.transaction(h.Existing), Similarity: h.Similarity})
	}
	return out
}

func (p presenter) totals(t core.Totals) totalsView {
	return totalsView{
		Income:         jsonAmount(t.Income),
		Expense:        jsonAmount(t.Expense),
		Balance:        jsonAmount(t.Balance),
		IncomeDisplay:  p.fmt.Amount(t.Income),
		ExpenseDisplay: p.fmt.Amount(t.Expense),
		BalanceDisplay: p.fmt.Amount(t.Balance),
	}
}

func (p presenter) shares(shares []core.CategoryShare) []shareView {
	out := make([]shareView, 0, len(shares))
	for _, s := range shares {
		out = append(out, shareView{
			Category:       p.category(s.CategoryID),
			Total:          jsonAmount(s.Total),
			Display:        p.fmt.Amount(s.Total),
			Percent:        jsonAmount(s.Percent.Round(2)),
			PercentDisplay: p.fmt.Percent(s.Percent),
		})
	}
	return out
}

func (p presenter) groups(groups []core.DateGroup) []groupView {
	out := make([]groupView, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupView{Date: g.Date, Transactions: p.transactions(g.Transactions)})
	}
	return out
}
