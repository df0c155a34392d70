package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"gitlab.com/kabirsadiq/buildtrack/internal/logger"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
	"gitlab.com/kabirsadiq/buildtrack/internal/parser"
)

// MaxMessageLength caps the text sent to the model.
const MaxMessageLength = 500

// ExpenseExtraction is the structured result of AI expense parsing.
type ExpenseExtraction struct {
	Amount      float64 `json:"amount"`
	Vendor      string  `json:"vendor"`
	Category    string  `json:"category"`
	Project     string  `json:"project"`
	Description string  `json:"description"`
	Confidence  string  `json:"confidence"`
}

// ExtractExpense asks Gemini to pull an expense out of free text. Any
// failure (no client, API error, bad JSON) falls back to the rule-based
// parser with confidence "low", so callers always get a usable result.
func (c *Client) ExtractExpense(ctx context.Context, message string) *ExpenseExtraction {
	if len(message) > MaxMessageLength {
		message = message[:MaxMessageLength]
	}

	if c == nil || c.generator == nil {
		return fallbackExtraction(message)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: buildExtractionPrompt(message)},
			},
		},
	}

	temp := float32(0.2)
	config := &genai.GenerateContentConfig{
		Temperature:     &temp,
		MaxOutputTokens: int32(300),
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{
				{Text: "You are a JSON API. You MUST respond with ONLY valid JSON, no preamble or explanation. Output a single JSON object."},
			},
		},
		ResponseMIMEType: "application/json",
		ResponseSchema: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"amount": {
					Type:        genai.TypeNumber,
					Description: "Expense amount in naira, 0 if none found",
				},
				"vendor": {
					Type:        genai.TypeString,
					Description: "Who was paid, or Unknown",
				},
				"category": {
					Type:        genai.TypeString,
					Description: "Construction expense category, e.g. Cement, Labour, Transport",
				},
				"project": {
					Type:        genai.TypeString,
					Description: "Development site the expense belongs to, or Unassigned",
				},
				"description": {
					Type:        genai.TypeString,
					Description: "One-line summary of the expense",
				},
				"confidence": {
					Type:        genai.TypeString,
					Enum:        []string{"high", "medium", "low"},
					Description: "How certain the extraction is",
				},
			},
			Required: []string{"amount", "vendor", "category", "project", "confidence"},
		},
	}

	resp, err := c.generator.GenerateContent(timeoutCtx, ModelName, contents, config)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("gemini extraction failed, using rule-based fallback")
		return fallbackExtraction(message)
	}

	extraction, err := parseExtractionResponse(resp)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("gemini response unusable, using rule-based fallback")
		return fallbackExtraction(message)
	}
	return extraction
}

func buildExtractionPrompt(message string) string {
	return fmt.Sprintf(`Extract a construction expense from this message sent by a Nigerian property developer.
Amounts may use shorthand: "500k" means 500000 naira, "2.5m" means 2500000 naira.

Message: %q`, message)
}

func parseExtractionResponse(resp *genai.GenerateContentResponse) (*ExpenseExtraction, error) {
	if resp == nil {
		return nil, fmt.Errorf("no response from Gemini")
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}

	var extraction ExpenseExtraction
	if err := json.Unmarshal([]byte(text), &extraction); err != nil {
		return nil, fmt.Errorf("failed to parse extraction JSON: %w", err)
	}
	if extraction.Amount <= 0 {
		return nil, fmt.Errorf("extraction found no amount")
	}
	return &extraction, nil
}

// fallbackExtraction runs the deterministic rule tables when the model is
// unavailable. Confidence is always "low" so callers can tell it apart.
func fallbackExtraction(message string) *ExpenseExtraction {
	extraction := &ExpenseExtraction{
		Vendor:     models.VendorUnknown,
		Category:   models.CategoryOther,
		Project:    models.ProjectUnassigned,
		Confidence: "low",
	}

	rules := parser.DefaultRuleset()
	if parsed := parser.ParseExpense(message, rules); parsed != nil {
		extraction.Amount = parsed.Amount.InexactFloat64()
		extraction.Vendor = parsed.Vendor
		extraction.Category = parsed.Category
		extraction.Project = parsed.Project
		extraction.Description = message
	}
	return extraction
}
