package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"wenxuji/internal/core"
)

const appName = "文须记"

func categoryList(reg *core.Registry) string {
	return strings.Join(reg.Names(), ", ")
}

func textPrompt(reg *core.Registry, text string, today core.Date) string {
	return fmt.Sprintf(`Analyze the following transaction text and extract structured data.
Available Categories: %s.
If the category is not clear, choose '其他' (Other).
Current Date: %s.

Text: %q

Return a JSON object strictly.`, categoryList(reg), today, text)
}

func imagePrompt(reg *core.Registry, today core.Date) string {
	return fmt.Sprintf(`Analyze this receipt image. Extract the total amount, guess the category based on items, and provide a short description (e.g., merchant name).
Available Categories: %s.
Default to 'expense' type.
If the receipt shows no date, use %s.`, categoryList(reg), today)
}

// adviceRecord is what the model sees of a transaction: the display name
// rather than the category id, and no identifiers.
type adviceRecord struct {
	Date        string  `json:"date"`
	Type        string  `json:"type"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description,omitempty"`
}

func advicePrompt(reg *core.Registry, records []core.Transaction) (string, error) {
	out := make([]adviceRecord, 0, len(records))
	for _, r := range records {
		out = append(out, adviceRecord{
			Date:        r.Date.String(),
			Type:        r.Type.String(),
			Category:    reg.DisplayName(r.CategoryID),
			Amount:      r.Amount.InexactFloat64(),
			Description: r.Description,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("encode advice records: %w", err)
	}
	return fmt.Sprintf(`You are a financial assistant for the app "%s".
Analyze these recent transactions and provide brief, friendly, encouraging, or cautionary advice in Chinese (Simplified).
Keep it under 100 words.

Transactions: %s`, appName, b), nil
}
