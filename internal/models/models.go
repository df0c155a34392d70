// Package models defines the domain entities for the site expense tracker.
package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Expense sources. Bank SMS captures use SourceBankSMS + the bank key,
// e.g. "bank-sms-gtbank".
const (
	SourceWeb      = "web"
	SourceTelegram = "telegram"
	SourceWhatsApp = "whatsapp"
	SourceBankSMS  = "bank-sms"
)

// Sentinel values used when extraction finds nothing.
const (
	ProjectUnassigned = "Unassigned"
	ProjectUnknown    = "Unknown"
	VendorUnknown     = "Unknown"
	CategoryOther     = "Other"
)

// Project statuses.
const (
	ProjectStatusActive    = "active"
	ProjectStatusPlanning  = "planning"
	ProjectStatusCompleted = "completed"
	ProjectStatusOnHold    = "on-hold"
)

// Budget bands classify spend-to-budget percentage.
const (
	BandOnTrack = "ON TRACK"
	BandCaution = "CAUTION"
	BandOver    = "OVER BUDGET"
)

// Expense is a single spend record against a project.
type Expense struct {
	ID           int
	Amount       decimal.Decimal
	Project      string
	Vendor       string
	Category     string
	Source       string
	Description  string
	OriginalText string
	EnteredBy    string
	Cancelled    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Project is a development site with a budget envelope.
type Project struct {
	ID        int
	Name      string
	Budget    decimal.Decimal
	Location  string
	Status    string
	CreatedAt time.Time
}

// Balance is the derived budget position of a project.
type Balance struct {
	Project    string
	Budget     decimal.Decimal
	Spent      decimal.Decimal
	Remaining  decimal.Decimal
	Percentage int
	Band       string
}

// BandFor classifies a spend percentage into a budget band.
// Thresholds: >=90 over budget, >=70 caution, else on track.
func BandFor(percentage int) string {
	switch {
	case percentage >= 90:
		return BandOver
	case percentage >= 70:
		return BandCaution
	default:
		return BandOnTrack
	}
}

// NewBalance computes the derived fields from budget and spend.
func NewBalance(project string, budget, spent decimal.Decimal) Balance {
	pct := 0
	if budget.IsPositive() {
		pct = int(spent.Div(budget).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	}
	return Balance{
		Project:    project,
		Budget:     budget,
		Spent:      spent,
		Remaining:  budget.Sub(spent),
		Percentage: pct,
		Band:       BandFor(pct),
	}
}

// Vendor is a directory entry; expenses reference vendors by free-text name.
type Vendor struct {
	ID        int
	Name      string
	Type      string
	Contact   string
	Email     string
	CreatedAt time.Time
}

// Sale records the disposal of a project with the Nigerian fee waterfall.
type Sale struct {
	ID              int
	Project         string
	SalePrice       decimal.Decimal
	TotalCost       decimal.Decimal
	GrossProfit     decimal.Decimal
	AgentCommission decimal.Decimal
	LegalFees       decimal.Decimal
	CapitalGainsTax decimal.Decimal
	NetProfit       decimal.Decimal
	CreatedAt       time.Time
}

// Sale fee waterfall rates. Agent commission is charged on the sale price,
// capital gains tax on the profit left after commission and legal fees.
var (
	agentCommissionRate = decimal.NewFromFloat(0.05)
	capitalGainsRate    = decimal.NewFromFloat(0.10)
	standardLegalFees   = decimal.NewFromInt(500_000)
)

// NewSale computes the full profit waterfall for a project disposal.
func NewSale(project string, salePrice, totalCost decimal.Decimal) Sale {
	gross := salePrice.Sub(totalCost)
	commission := salePrice.Mul(agentCommissionRate)
	taxable := gross.Sub(commission).Sub(standardLegalFees)
	cgt := decimal.Zero
	if taxable.IsPositive() {
		cgt = taxable.Mul(capitalGainsRate)
	}
	return Sale{
		Project:         project,
		SalePrice:       salePrice,
		TotalCost:       totalCost,
		GrossProfit:     gross,
		AgentCommission: commission,
		LegalFees:       standardLegalFees,
		CapitalGainsTax: cgt,
		NetProfit:       gross.Sub(commission).Sub(standardLegalFees).Sub(cgt),
	}
}

// Summary aggregates spend over a period.
type Summary struct {
	Total     decimal.Decimal
	Count     int
	ByProject map[string]decimal.Decimal
	ByVendor  map[string]decimal.Decimal
}

// FormatNaira renders an amount the way the bots display money:
// N2.50M, N200k, N500.
func FormatNaira(amount decimal.Decimal) string {
	million := decimal.NewFromInt(1_000_000)
	thousand := decimal.NewFromInt(1_000)

	switch {
	case amount.GreaterThanOrEqual(million):
		return "N" + amount.Div(million).StringFixed(2) + "M"
	case amount.GreaterThanOrEqual(thousand):
		return fmt.Sprintf("N%sk", amount.Div(thousand).Round(0))
	default:
		return "N" + amount.Round(0).String()
	}
}
