// Package format renders amounts for display. Stored and transported amounts
// stay exact; rounding to two decimals happens only here.
package format

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"wenxuji/internal/core"
)

// DefaultSymbol is the currency symbol used when none is configured.
const DefaultSymbol = "¥"

type Formatter struct {
	symbol  string
	printer *message.Printer
}

// New returns a Formatter for the Simplified Chinese locale.
func New(symbol string) *Formatter {
	if symbol == "" {
		symbol = DefaultSymbol
	}
	return &Formatter{
		symbol:  symbol,
		printer: message.NewPrinter(language.SimplifiedChinese),
	}
}

// Amount renders d as "¥1,234.50". Negative values get a leading minus.
// Digits come from the decimal itself, so large amounts stay exact.
func (f *Formatter) Amount(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	whole, frac, _ := strings.Cut(d.StringFixed(2), ".")
	return sign + f.symbol + f.group(whole) + "." + frac
}

// group inserts the locale's thousands separators into a run of digits.
func (f *Formatter) group(digits string) string {
	if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
		return f.printer.Sprint(number.Decimal(n))
	}
	// beyond int64
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Signed renders a record amount with "+" for income and "-" for expense.
func (f *Formatter) Signed(d decimal.Decimal, t core.TransactionType) string {
	if t == core.Income {
		return "+" + f.Amount(d)
	}
	return "-" + f.Amount(d)
}

// Percent renders a share such as 12.5 as "12.5%".
func (f *Formatter) Percent(p decimal.Decimal) string {
	return p.Round(1).StringFixed(1) + "%"
}
