package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"wenxuji/internal/core"
	"wenxuji/internal/intake"
	applog "wenxuji/internal/log"
)

const DefaultModel = "gemini-2.5-flash"

// generator is the subset of *genai.Models used here.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Gemini implements Extractor and Advisor on the Gemini API.
type Gemini struct {
	models  generator
	model   string
	timeout time.Duration
	reg     *core.Registry
	logger  *slog.Logger
}

var (
	_ Extractor = (*Gemini)(nil)
	_ Advisor   = (*Gemini)(nil)
)

// NewGemini creates a client for the Gemini developer API.
func NewGemini(ctx context.Context, cfg GeminiConfig, reg *core.Registry, logger *slog.Logger) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGemini(client.Models, cfg, reg, logger), nil
}

func newGemini(models generator, cfg GeminiConfig, reg *core.Registry, logger *slog.Logger) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if reg == nil {
		reg = core.DefaultRegistry()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		models:  models,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		reg:     reg,
		logger:  logger.With(applog.FieldComponent, applog.ComponentAI),
	}
}

func candidateSchema(dateHint string) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"amount":      {Type: genai.TypeNumber},
			"category":    {Type: genai.TypeString},
			"description": {Type: genai.TypeString},
			"type":        {Type: genai.TypeString, Enum: []string{"expense", "income"}},
			"date":        {Type: genai.TypeString, Description: dateHint},
		},
		Required: []string{"amount", "category", "type", "description"},
	}
}

func (g *Gemini) ExtractFromText(ctx context.Context, text string, today core.Date) (intake.Candidate, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return intake.Candidate{}, fmt.Errorf("%w: empty text", ErrExtractionFailed)
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: textPrompt(g.reg, text, today)}},
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   candidateSchema("YYYY-MM-DD format"),
	}
	return g.extract(ctx, "text", contents, cfg)
}

func (g *Gemini) ExtractFromImage(ctx context.Context, image []byte, mimeType string, today core.Date) (intake.Candidate, error) {
	if len(image) == 0 {
		return intake.Candidate{}, fmt.Errorf("%w: empty image", ErrExtractionFailed)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
			{Text: imagePrompt(g.reg, today)},
		},
	}}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   candidateSchema("YYYY-MM-DD format, infer from receipt or use today"),
	}
	return g.extract(ctx, "image", contents, cfg)
}

func (g *Gemini) extract(ctx context.Context, source string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (intake.Candidate, error) {
	raw, err := g.generate(ctx, contents, cfg)
	if err != nil {
		g.logger.ErrorContext(ctx, "Extraction call failed",
			applog.FieldOperation, applog.OpExtract,
			"source", source,
			applog.FieldError, err)
		return intake.Candidate{}, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	c, err := parseCandidate(raw)
	if err != nil {
		g.logger.ErrorContext(ctx, "Unusable extraction response",
			applog.FieldOperation, applog.OpExtract,
			"source", source,
			applog.FieldError, err)
		return intake.Candidate{}, err
	}
	g.logger.DebugContext(ctx, "Extraction succeeded", "source", source, applog.FieldCategory, c.Category)
	return c, nil
}

// SummarizeAdvice returns the model's advice for records, which callers
// should already have limited to the most recent ones.
func (g *Gemini) SummarizeAdvice(ctx context.Context, records []core.Transaction) (string, error) {
	prompt, err := advicePrompt(g.reg, records)
	if err != nil {
		return "", err
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: prompt}},
	}}
	text, err := g.generate(ctx, contents, nil)
	if err != nil {
		g.logger.ErrorContext(ctx, "Advice call failed", applog.FieldOperation, applog.OpAdvise, applog.FieldError, err)
		return "", fmt.Errorf("generate advice: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func (g *Gemini) generate(ctx context.Context, contents []*genai.Content, cfg *genai.GenerateContentConfig) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return "", nil
	}
	return resp.Text(), nil
}
