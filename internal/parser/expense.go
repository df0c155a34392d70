package parser

import (
	"time"

	"github.com/shopspring/decimal"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// ParsedExpense is the result of parsing free text as a new expense.
type ParsedExpense struct {
	Amount   decimal.Decimal
	Project  string
	Vendor   string
	Category string
}

// ParseExpense parses free text like "200k cement Maitama Dangote".
// Returns nil when no valid amount is present; a message without an amount
// is not an expense.
func ParseExpense(text string, rules Ruleset) *ParsedExpense {
	amount, ok := NormalizeAmount(text)
	if !ok {
		return nil
	}

	entities := Extract(text, rules)
	return &ParsedExpense{
		Amount:   amount,
		Project:  entities.Project,
		Vendor:   entities.Vendor,
		Category: entities.Category,
	}
}

// BuildExpense constructs a persistable record from a parse result.
// Pure construction; the caller is responsible for persistence.
func BuildExpense(parsed *ParsedExpense, source, originalText, enteredBy string) *models.Expense {
	return &models.Expense{
		Amount:       parsed.Amount,
		Project:      parsed.Project,
		Vendor:       parsed.Vendor,
		Category:     parsed.Category,
		Source:       source,
		OriginalText: originalText,
		EnteredBy:    enteredBy,
		CreatedAt:    time.Now().UTC(),
	}
}
