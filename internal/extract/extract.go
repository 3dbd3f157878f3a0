// Package extract is the boundary to the generative model that guesses
// transactions from free text or receipt photos and writes spending advice.
// Everything it returns is untrusted and goes through intake.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"wenxuji/internal/core"
	"wenxuji/internal/intake"
)

// ErrExtractionFailed covers timeouts, transport errors, malformed responses
// and the model saying it found nothing.
var ErrExtractionFailed = errors.New("extraction failed")

// Extractor turns unstructured input into a candidate transaction.
type Extractor interface {
	ExtractFromText(ctx context.Context, text string, today core.Date) (intake.Candidate, error)
	ExtractFromImage(ctx context.Context, image []byte, mimeType string, today core.Date) (intake.Candidate, error)
}

// Advisor writes short commentary on a list of recent transactions. An empty
// string with a nil error means the model had nothing to say.
type Advisor interface {
	SummarizeAdvice(ctx context.Context, records []core.Transaction) (string, error)
}

// candidateJSON is the response shape requested from the model.
type candidateJSON struct {
	Amount      json.Number `json:"amount"`
	Category    string      `json:"category"`
	Description string      `json:"description"`
	Type        string      `json:"type"`
	Date        string      `json:"date"`
}

// parseCandidate decodes raw model output. Code fences around the JSON are
// tolerated. A missing amount or a null body means nothing was extracted.
func parseCandidate(raw string) (intake.Candidate, error) {
	clean := cleanModelJSON(raw)
	if clean == "" || clean == "null" || clean == "{}" {
		return intake.Candidate{}, fmt.Errorf("%w: empty response", ErrExtractionFailed)
	}

	var c candidateJSON
	if err := json.Unmarshal([]byte(clean), &c); err != nil {
		return intake.Candidate{}, fmt.Errorf("%w: decode response: %v", ErrExtractionFailed, err)
	}
	if c.Amount == "" {
		return intake.Candidate{}, fmt.Errorf("%w: response has no amount", ErrExtractionFailed)
	}
	amount, err := c.Amount.Float64()
	if err != nil {
		return intake.Candidate{}, fmt.Errorf("%w: amount %q: %v", ErrExtractionFailed, c.Amount, err)
	}

	return intake.Candidate{
		Amount:      amount,
		Category:    strings.TrimSpace(c.Category),
		Description: strings.TrimSpace(c.Description),
		Type:        strings.TrimSpace(c.Type),
		Date:        strings.TrimSpace(c.Date),
	}, nil
}

// cleanModelJSON strips Markdown code fences and any prose around a single
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the opening fence line (``` or ```json).
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.TrimSpace(strings.Trim(s, "`"))
		}
		s = s[idx+1:]
		if end := strings.LastIndex(s, "```"); end != -1 {
			s = s[:end]
		}
		s = strings.TrimSpace(s)
	}

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}
