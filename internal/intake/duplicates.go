package intake

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"wenxuji/internal/core"
)

// DefaultSimilarity is the description similarity above which a record with
// the same type, amount and date is reported as a possible duplicate.
const DefaultSimilarity = 0.6

// DuplicateHint points at an existing record that looks like the draft.
type DuplicateHint struct {
	Existing   core.Transaction
	Similarity float64
}

// FindDuplicates never blocks intake; callers show the hints as warnings.
// existing is scanned in order, so hints come back newest first.
func FindDuplicates(d Draft, existing []core.Transaction, threshold float64) []DuplicateHint {
	var hints []DuplicateHint
	for _, r := range existing {
		if r.Type != d.Type || !r.Amount.Equal(d.Amount) || !r.Date.Equal(d.Date) {
			continue
		}
		sim := similarity(d.Description, r.Description)
		if sim >= threshold {
			hints = append(hints, DuplicateHint{Existing: r, Similarity: sim})
		}
	}
	return hints
}

// similarity is 1 minus the normalized edit distance, counted in runes.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}
