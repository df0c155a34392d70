package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts outside this range are treated as parse failures, not expenses.
// Nobody logs a N200 expense over chat, and a nine-figure single payment is
// almost certainly a typo for a smaller one.
var (
	minAmount = decimal.NewFromInt(1_000)
	maxAmount = decimal.NewFromInt(100_000_000)
)

// amountRegex matches the first amount token: digits, optional decimals,
// optional multiplier suffix. Longer alternatives come first so "million"
// is not consumed as "m".
var amountRegex = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(million|thousand|mil\b|k\b|m\b)?`)

// NormalizeAmount converts the first amount token in text to Naira,
// applying k/thousand (x1,000) and m/mil/million (x1,000,000) suffixes.
// Returns false when no amount is found or the result falls outside the
// accepted range; callers must treat that as "not an expense".
func NormalizeAmount(text string) (decimal.Decimal, bool) {
	match := amountRegex.FindStringSubmatch(text)
	if match == nil {
		return decimal.Zero, false
	}

	amount, err := decimal.NewFromString(match[1])
	if err != nil {
		return decimal.Zero, false
	}

	switch strings.ToLower(match[2]) {
	case "k", "thousand":
		amount = amount.Mul(decimal.NewFromInt(1_000))
	case "m", "mil", "million":
		amount = amount.Mul(decimal.NewFromInt(1_000_000))
	}

	if amount.LessThan(minAmount) || amount.GreaterThan(maxAmount) {
		return decimal.Zero, false
	}

	return amount, true
}
