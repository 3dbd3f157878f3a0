// Package sheets exports the ledger to a spreadsheet. The export is one-way;
// nothing is ever read back into the ledger.
package sheets

import (
	"context"

	"github.com/shopspring/decimal"

	"wenxuji/internal/core"
)

// Header is the first row of every export.
var Header = []string{"日期", "类型", "分类", "备注", "金额"}

type (
	// Row is one exported record. Text columns are in display form; Amount
	// stays exact so the sheet receives a number.
	Row struct {
		Date        string
		Type        string
		Category    string
		Description string
		Amount      decimal.Decimal
	}

	// LedgerExporter replaces the exported sheet with rows.
	LedgerExporter interface {
		Export(ctx context.Context, rows []Row) (rangeRef string, err error)
	}
)

var typeLabels = map[core.TransactionType]string{
	core.Expense: "支出",
	core.Income:  "收入",
}

// Rows flattens records in list-view order: dates newest first, records
// within a date newest first.
func Rows(records []core.Transaction, reg *core.Registry) []Row {
	out := make([]Row, 0, len(records))
	for _, g := range core.GroupByDate(records) {
		for _, t := range g.Transactions {
			out = append(out, Row{
				Date:        t.Date.String(),
				Type:        typeLabels[t.Type],
				Category:    reg.DisplayName(t.CategoryID),
				Description: t.Description,
				Amount:      t.Amount,
			})
		}
	}
	return out
}
