package ledger

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"wenxuji/internal/core"
)

// ErrCorrupt means the persisted slot holds something that is not a JSON
// array of records.
var ErrCorrupt = errors.New("ledger data is corrupt")

// record is the persisted shape. Older data stores the category display name
// and sometimes a full ISO timestamp as the date; decode normalizes both.
type record struct {
	ID          string      `json:"id"`
	Amount      json.Number `json:"amount"`
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Date        string      `json:"date"`
	CreatedAt   int64       `json:"createdAt"`
}

// Dropped describes a persisted record that could not be normalized.
type Dropped struct {
	Index  int
	ID     string
	Reason string
}

// decodeResult carries the normalized records plus what normalization did.
type decodeResult struct {
	Records []core.Transaction
	Dropped []Dropped
	// Migrated counts records whose stored form differs from the
	// normalized one (name-keyed category, timestamp date, ...).
	Migrated int
}

func encode(records []core.Transaction) ([]byte, error) {
	out := make([]record, 0, len(records))
	for _, t := range records {
		out = append(out, record{
			ID:          t.ID,
			Amount:      json.Number(t.Amount.String()),
			Type:        t.Type.String(),
			Category:    t.CategoryID,
			Description: t.Description,
			Date:        t.Date.String(),
			CreatedAt:   t.CreatedAt,
		})
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}
	return b, nil
}

func decode(data []byte, reg *core.Registry) (decodeResult, error) {
	var res decodeResult
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return res, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return res, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}

	seen := make(map[string]bool, len(raw))
	res.Records = make([]core.Transaction, 0, len(raw))
	for i, msg := range raw {
		var rec record
		if err := json.Unmarshal(msg, &rec); err != nil {
			res.Dropped = append(res.Dropped, Dropped{Index: i, Reason: err.Error()})
			continue
		}
		t, migrated, err := normalize(rec, reg)
		if err == nil && seen[t.ID] {
			err = core.ErrDuplicateID
		}
		if err != nil {
			res.Dropped = append(res.Dropped, Dropped{Index: i, ID: rec.ID, Reason: err.Error()})
			continue
		}
		seen[t.ID] = true
		if migrated {
			res.Migrated++
		}
		res.Records = append(res.Records, t)
	}
	return res, nil
}

// normalize turns one persisted record into a valid transaction. It reports
// whether the stored form needed rewriting.
func normalize(rec record, reg *core.Registry) (core.Transaction, bool, error) {
	var t core.Transaction
	migrated := false

	t.ID = strings.TrimSpace(rec.ID)
	if t.ID == "" {
		return t, false, core.ErrMissingID
	}

	amount, err := decimal.NewFromString(rec.Amount.String())
	if err != nil {
		return t, false, core.ErrInvalidAmount
	}
	if err := core.ValidateAmount(amount); err != nil {
		return t, false, err
	}
	t.Amount = amount

	typ, err := core.ParseTransactionType(rec.Type)
	if err != nil {
		return t, false, err
	}
	t.Type = typ

	dateStr := strings.TrimSpace(rec.Date)
	if len(dateStr) > len(core.DateLayout) {
		dateStr = dateStr[:len(core.DateLayout)]
		migrated = true
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		return t, false, err
	}
	t.Date = date

	cat, err := reg.Resolve(typ, rec.Category)
	if err != nil {
		cat = reg.Other(typ)
	}
	if cat.ID != rec.Category {
		migrated = true
	}
	t.CategoryID = cat.ID

	t.Description = rec.Description
	if utf8.RuneCountInString(t.Description) > core.MaxDescriptionLength {
		t.Description = string([]rune(t.Description)[:core.MaxDescriptionLength])
		migrated = true
	}
	t.CreatedAt = rec.CreatedAt

	return t, migrated, nil
}
