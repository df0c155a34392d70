// Package banksms extracts debit captures from Nigerian bank alert SMS so
// transfers made outside the chat channels still land in the expense log.
package banksms

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"gitlab.com/kabirsadiq/buildtrack/internal/parser"
)

var (
	// ErrUnknownSender means the SMS did not come from a recognized bank.
	ErrUnknownSender = errors.New("sender is not a known bank")
	// ErrNoDebit means a bank SMS carried no parseable debit amount,
	// e.g. a credit alert or a promo message.
	ErrNoDebit = errors.New("no debit amount found")
)

// Rule describes how one bank formats its debit alerts.
type Rule struct {
	// Bank is the short key used in the expense source, e.g. "gtbank".
	Bank string
	// Identifiers are substrings matched against the lowercased sender id.
	Identifiers []string
	// DebitPattern captures the debit amount in group 1.
	DebitPattern *regexp.Regexp
	// VendorPattern captures the beneficiary text in group 1.
	VendorPattern *regexp.Regexp
}

// Capture is one recognized debit.
type Capture struct {
	Bank     string
	Amount   decimal.Decimal
	Vendor   string
	Category string
}

// Rules are tried in order; the first sender match wins.
var Rules = []Rule{
	{
		Bank:          "gtbank",
		Identifiers:   []string{"gtbank", "gtworld", "gtb"},
		DebitPattern:  regexp.MustCompile(`(?i)Amt:?\s*NGN\s*([\d,]+(?:\.\d{1,2})?)\s*DR`),
		VendorPattern: regexp.MustCompile(`(?i)Desc:?\s*(?:TRF\s*(?:TO)?|TRANSFER\s*(?:TO)?|NIP/?)?\s*([A-Za-z][A-Za-z .&/-]+)`),
	},
	{
		Bank:          "access",
		Identifiers:   []string{"accessbank", "access"},
		DebitPattern:  regexp.MustCompile(`(?i)(?:Amt|Amount):?\s*NGN\s*([\d,]+(?:\.\d{1,2})?)\s*DR`),
		VendorPattern: regexp.MustCompile(`(?i)(?:Desc|Narration):?\s*(?:NIP/)?([A-Za-z][A-Za-z .&/-]+)`),
	},
	{
		Bank:          "uba",
		Identifiers:   []string{"uba"},
		DebitPattern:  regexp.MustCompile(`(?i)Debit\s*(?:Amount)?:?\s*NGN\s*([\d,]+(?:\.\d{1,2})?)`),
		VendorPattern: regexp.MustCompile(`(?i)Narrative:?\s*([A-Za-z][A-Za-z .&/-]+)`),
	},
	{
		Bank:          "firstbank",
		Identifiers:   []string{"firstbank", "firstmobile", "fbn"},
		DebitPattern:  regexp.MustCompile(`(?i)debited\s*(?:with)?\s*NGN\s*([\d,]+(?:\.\d{1,2})?)`),
		VendorPattern: regexp.MustCompile(`(?i)(?:to|Desc:?)\s+([A-Z][A-Za-z .&/-]+)`),
	},
	{
		Bank:          "zenith",
		Identifiers:   []string{"zenithbank", "zenith"},
		DebitPattern:  regexp.MustCompile(`(?i)(?:Debit|DR):?\s*NGN\s*([\d,]+(?:\.\d{1,2})?)`),
		VendorPattern: regexp.MustCompile(`(?i)(?:Desc|Ref):?\s*([A-Za-z][A-Za-z .&/-]+)`),
	},
}

// beneficiaryCategories classify a capture from the beneficiary text,
// checked in order.
var beneficiaryCategories = []struct {
	Keyword  string
	Category string
}{
	{"dangote", "Cement"},
	{"electric", "Electrical"},
	{"nepa", "Electrical"},
	{"phcn", "Electrical"},
	{"water", "Borehole"},
	{"labour", "Labour"},
	{"labor", "Labour"},
	{"salary", "Labour"},
	{"fuel", "Fuel/Diesel"},
	{"diesel", "Fuel/Diesel"},
}

const defaultCategory = "Bank Transfer"

// trailerRegex strips the balance/date tail that banks append after the
// beneficiary text.
var trailerRegex = regexp.MustCompile(`(?i)\s+(?:avail(?:able)?(?:\s+bal(?:ance)?)?|bal(?:ance)?|date|time|ref)\b.*$`)

// Parse matches the sender against the bank rule table and extracts the
// debit. ErrUnknownSender and ErrNoDebit mean the message should be
// ignored, not that anything is wrong.
func Parse(sender, message string) (*Capture, error) {
	rule, ok := matchRule(sender)
	if !ok {
		return nil, ErrUnknownSender
	}

	m := rule.DebitPattern.FindStringSubmatch(message)
	if m == nil {
		return nil, ErrNoDebit
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || !amount.IsPositive() {
		return nil, ErrNoDebit
	}

	vendor := extractBeneficiary(rule, message)
	return &Capture{
		Bank:     rule.Bank,
		Amount:   amount,
		Vendor:   vendor,
		Category: categorize(vendor),
	}, nil
}

func matchRule(sender string) (Rule, bool) {
	lower := strings.ToLower(strings.TrimSpace(sender))
	for _, rule := range Rules {
		for _, id := range rule.Identifiers {
			if strings.Contains(lower, id) {
				return rule, true
			}
		}
	}
	return Rule{}, false
}

func extractBeneficiary(rule Rule, message string) string {
	m := rule.VendorPattern.FindStringSubmatch(message)
	if m == nil {
		return "Unknown"
	}
	vendor := strings.TrimSpace(m[1])
	// descriptions often run into the balance section; keep the first line
	if idx := strings.IndexAny(vendor, "\r\n"); idx >= 0 {
		vendor = strings.TrimSpace(vendor[:idx])
	}
	vendor = strings.TrimSpace(trailerRegex.ReplaceAllString(vendor, ""))
	// NIP descriptions pack sender/purpose into slash-separated segments
	if idx := strings.Index(vendor, "/"); idx >= 0 {
		vendor = strings.TrimSpace(vendor[:idx])
	}
	if vendor == "" {
		return "Unknown"
	}
	return parser.TitleCase(vendor)
}

func categorize(vendor string) string {
	lower := strings.ToLower(vendor)
	for _, bc := range beneficiaryCategories {
		if strings.Contains(lower, bc.Keyword) {
			return bc.Category
		}
	}
	return defaultCategory
}
