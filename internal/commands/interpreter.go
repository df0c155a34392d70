// Package commands turns free-text chat messages into store operations and
// plain-text replies. The Telegram bot, the WhatsApp webhook and the
// test-parse endpoint all feed the same interpreter, so every channel
// behaves identically.
package commands

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"gitlab.com/kabirsadiq/buildtrack/internal/logger"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
	"gitlab.com/kabirsadiq/buildtrack/internal/parser"
	"gitlab.com/kabirsadiq/buildtrack/internal/repository"
	"gitlab.com/kabirsadiq/buildtrack/internal/session"
)

// ExpenseStore is the slice of the expense repository the interpreter needs.
type ExpenseStore interface {
	Create(ctx context.Context, e *models.Expense) error
	GetByID(ctx context.Context, id int) (*models.Expense, error)
	Recent(ctx context.Context, limit int) ([]models.Expense, error)
	Search(ctx context.Context, term string, limit int) ([]models.Expense, error)
	SumSince(ctx context.Context, since time.Time) (decimal.Decimal, int, error)
	SummarySince(ctx context.Context, since time.Time) (*models.Summary, error)
	SpentByProject(ctx context.Context, project string) (decimal.Decimal, error)
	TotalsByActor(ctx context.Context) ([]repository.ActorTotal, error)
	UpdateAmount(ctx context.Context, id int, amount decimal.Decimal) error
	UpdateFields(ctx context.Context, id int, upd repository.ExpenseUpdate) error
	Cancel(ctx context.Context, id int) error
	Delete(ctx context.Context, id int) error
}

// ProjectStore resolves project names and budgets.
type ProjectStore interface {
	GetByName(ctx context.Context, name string) (*models.Project, error)
	FindByFragment(ctx context.Context, fragment string) (*models.Project, error)
}

// SaleStore answers whether a project has already been sold.
type SaleStore interface {
	ExistsForProject(ctx context.Context, project string) (bool, error)
}

// Inbound is one chat message, channel-agnostic.
type Inbound struct {
	// Key identifies the conversation, e.g. "tg:12345" or "wa:+23480...".
	Key string
	// DisplayName is who sent the message, used for entered_by.
	DisplayName string
	// Source is the models.Source* constant for the channel.
	Source string
	// Text is the raw message.
	Text string
}

// Interpreter dispatches chat messages through an ordered guard chain.
type Interpreter struct {
	expenses ExpenseStore
	projects ProjectStore
	sales    SaleStore
	sessions *session.Store
	rules    parser.Ruleset
}

// NewInterpreter wires the interpreter to its stores.
func NewInterpreter(expenses ExpenseStore, projects ProjectStore, sales SaleStore, sessions *session.Store) *Interpreter {
	return &Interpreter{
		expenses: expenses,
		projects: projects,
		sales:    sales,
		sessions: sessions,
		rules:    parser.DefaultRuleset(),
	}
}

const listLimit = 10

var positionalRegex = regexp.MustCompile(`^#(\d+)\s*(.*)$`)

// Handle interprets one message and returns the reply text. It never returns
// an error; failures are logged and reported to the user as text.
func (i *Interpreter) Handle(ctx context.Context, in Inbound) string {
	text := strings.TrimSpace(in.Text)
	lower := strings.ToLower(text)

	switch lower {
	case "/start", "start", "menu", "help":
		return helpText
	case "list":
		return i.handleList(ctx, in)
	case "cancel", "undo":
		return i.handleCancel(ctx, in)
	case "total":
		return i.handleTotal(ctx, in)
	case "who":
		return i.handleWho(ctx)
	case "summary":
		return i.handleSummary(ctx, "today")
	case "balance":
		return "Which project? Try: balance maitama"
	case "search":
		return "What should I look for? Try: search cement"
	case "edit":
		return "What should I change? Try: edit 250k, edit garki or edit Dangote"
	}

	if period, ok := strings.CutPrefix(lower, "summary "); ok {
		return i.handleSummary(ctx, strings.TrimSpace(period))
	}
	if fragment, ok := strings.CutPrefix(lower, "balance "); ok {
		return i.handleBalance(ctx, strings.TrimSpace(fragment))
	}
	if term, ok := strings.CutPrefix(lower, "search "); ok {
		return i.handleSearch(ctx, strings.TrimSpace(term))
	}
	if m := positionalRegex.FindStringSubmatch(text); m != nil {
		return i.handlePositional(ctx, in, m[1], strings.TrimSpace(m[2]))
	}
	if strings.HasPrefix(lower, "edit ") {
		return i.handleEdit(ctx, in, strings.TrimSpace(text[len("edit "):]))
	}

	return i.handleNewExpense(ctx, in, text)
}

const helpText = `I track construction expenses. Just type them like you talk:

  500k cement Maitama Dangote
  2.5m roofing Katampe
  200k sand garki Musa

Commands:
  list - recent expenses
  summary [today|week|month|year] - spending breakdown
  balance <project> - budget position
  search <term> - find expenses
  cancel - undo the last expense
  edit <change> - fix the last expense
  #3 delete / #3 250k - act on a listed expense
  total - your share of spending
  who - who records the most`

const errorReply = "Something went wrong, please try again."

func (i *Interpreter) handleList(ctx context.Context, in Inbound) string {
	expenses, err := i.expenses.Recent(ctx, listLimit)
	if err != nil {
		logger.Log.Error().Err(err).Msg("list failed")
		return errorReply
	}
	if len(expenses) == 0 {
		return "No expenses recorded yet. Type one like: 500k cement Maitama"
	}

	ids := make([]int, 0, len(expenses))
	total := decimal.Zero
	var b strings.Builder
	b.WriteString("Recent expenses:\n")
	for n, e := range expenses {
		ids = append(ids, e.ID)
		total = total.Add(e.Amount)
		fmt.Fprintf(&b, "#%d %s %s - %s (%s)\n",
			n+1, models.FormatNaira(e.Amount), e.Category, e.Project, e.Vendor)
	}
	fmt.Fprintf(&b, "Total: %s", models.FormatNaira(total))

	i.sessions.SetListing(in.Key, ids)
	return b.String()
}

// PeriodCutoff maps a period word (today, week, month, year) to its cutoff
// time. The bot and the HTTP API share it so "week" means the same thing
// everywhere.
func PeriodCutoff(period string, now time.Time) (time.Time, bool) {
	switch period {
	case "today", "":
		year, month, day := now.Date()
		return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
	case "week":
		return now.AddDate(0, 0, -7), true
	case "month":
		return now.AddDate(0, -1, 0), true
	case "year":
		return now.AddDate(-1, 0, 0), true
	default:
		return time.Time{}, false
	}
}

func (i *Interpreter) handleSummary(ctx context.Context, period string) string {
	cutoff, ok := PeriodCutoff(period, time.Now())
	if !ok {
		return "I know today, week, month and year. Try: summary week"
	}
	if period == "" {
		period = "today"
	}

	summary, err := i.expenses.SummarySince(ctx, cutoff)
	if err != nil {
		logger.Log.Error().Err(err).Msg("summary failed")
		return errorReply
	}
	if summary.Count == 0 {
		return fmt.Sprintf("Nothing recorded for %s yet.", period)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summary (%s): %s across %d expenses\n",
		period, models.FormatNaira(summary.Total), summary.Count)

	b.WriteString("\nBy project:\n")
	for _, name := range sortedKeysByAmount(summary.ByProject) {
		fmt.Fprintf(&b, "  %s: %s\n", name, models.FormatNaira(summary.ByProject[name]))
	}

	if vendors := sortedKeysByAmount(summary.ByVendor); len(vendors) > 0 {
		fmt.Fprintf(&b, "\nTop vendor: %s (%s)",
			vendors[0], models.FormatNaira(summary.ByVendor[vendors[0]]))
	}
	return b.String()
}

// sortedKeysByAmount orders map keys by descending amount, name as
// tie-break so replies are stable.
func sortedKeysByAmount(m map[string]decimal.Decimal) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		if !m[keys[a]].Equal(m[keys[b]]) {
			return m[keys[a]].GreaterThan(m[keys[b]])
		}
		return keys[a] < keys[b]
	})
	return keys
}

func (i *Interpreter) handleBalance(ctx context.Context, fragment string) string {
	project, err := i.projects.FindByFragment(ctx, fragment)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Sprintf("No project matching %q. Try: balance maitama", fragment)
		}
		logger.Log.Error().Err(err).Msg("balance lookup failed")
		return errorReply
	}

	spent, err := i.expenses.SpentByProject(ctx, project.Name)
	if err != nil {
		logger.Log.Error().Err(err).Msg("balance sum failed")
		return errorReply
	}

	bal := models.NewBalance(project.Name, project.Budget, spent)
	return fmt.Sprintf("%s\nBudget: %s\nSpent: %s (%d%%)\nRemaining: %s\nStatus: %s",
		bal.Project, models.FormatNaira(bal.Budget), models.FormatNaira(bal.Spent),
		bal.Percentage, models.FormatNaira(bal.Remaining), bal.Band)
}

func (i *Interpreter) handleSearch(ctx context.Context, term string) string {
	expenses, err := i.expenses.Search(ctx, term, 5)
	if err != nil {
		logger.Log.Error().Err(err).Msg("search failed")
		return errorReply
	}
	if len(expenses) == 0 {
		return fmt.Sprintf("No expenses matching %q.", term)
	}

	total := decimal.Zero
	var b strings.Builder
	fmt.Fprintf(&b, "Matches for %q:\n", term)
	for _, e := range expenses {
		total = total.Add(e.Amount)
		fmt.Fprintf(&b, "%s %s - %s (%s)\n",
			models.FormatNaira(e.Amount), e.Category, e.Project, e.Vendor)
	}
	fmt.Fprintf(&b, "Total: %s", models.FormatNaira(total))
	return b.String()
}

func (i *Interpreter) handlePositional(ctx context.Context, in Inbound, numText, action string) string {
	listing := i.sessions.Get(in.Key).Listing
	if len(listing) == 0 {
		return "Type list first, then use #<n>."
	}

	n, err := strconv.Atoi(numText)
	if err != nil || n < 1 || n > len(listing) {
		return fmt.Sprintf("I only have #1 to #%d from your last list.", len(listing))
	}
	id := listing[n-1]

	if strings.EqualFold(action, "delete") {
		e, err := i.expenses.GetByID(ctx, id)
		if err != nil {
			logger.Log.Error().Err(err).Int("id", id).Msg("positional lookup failed")
			return errorReply
		}
		if err := i.expenses.Delete(ctx, id); err != nil {
			logger.Log.Error().Err(err).Int("id", id).Msg("positional delete failed")
			return errorReply
		}
		return fmt.Sprintf("Deleted #%d: %s %s (%s)",
			n, models.FormatNaira(e.Amount), e.Category, e.Project)
	}

	if amount, ok := parser.NormalizeAmount(action); ok {
		if err := i.expenses.UpdateAmount(ctx, id, amount); err != nil {
			logger.Log.Error().Err(err).Int("id", id).Msg("positional update failed")
			return errorReply
		}
		return fmt.Sprintf("Updated #%d to %s", n, models.FormatNaira(amount))
	}

	return "Use #<n> delete or #<n> <new amount>, e.g. #3 250k"
}

func (i *Interpreter) handleCancel(ctx context.Context, in Inbound) string {
	lastID := i.sessions.Get(in.Key).LastExpenseID
	if lastID == 0 {
		return "No recent expense to cancel."
	}

	e, err := i.expenses.GetByID(ctx, lastID)
	if err != nil {
		logger.Log.Error().Err(err).Int("id", lastID).Msg("cancel lookup failed")
		return errorReply
	}
	if err := i.expenses.Cancel(ctx, lastID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			i.sessions.ClearLastExpense(in.Key)
			return "No recent expense to cancel."
		}
		logger.Log.Error().Err(err).Int("id", lastID).Msg("cancel failed")
		return errorReply
	}

	i.sessions.ClearLastExpense(in.Key)
	return fmt.Sprintf("Cancelled: %s %s (%s)",
		models.FormatNaira(e.Amount), e.Category, e.Project)
}

func (i *Interpreter) handleEdit(ctx context.Context, in Inbound, change string) string {
	lastID := i.sessions.Get(in.Key).LastExpenseID
	if lastID == 0 {
		return "No recent expense to edit. Record one first."
	}
	if change == "" {
		return "What should I change? Try: edit 250k, edit garki or edit Dangote"
	}

	if amount, ok := parser.NormalizeAmount(change); ok {
		if err := i.expenses.UpdateAmount(ctx, lastID, amount); err != nil {
			logger.Log.Error().Err(err).Int("id", lastID).Msg("edit amount failed")
			return errorReply
		}
		return fmt.Sprintf("Updated amount to %s", models.FormatNaira(amount))
	}

	entities := parser.Extract(change, i.rules)
	if entities.Project != models.ProjectUnassigned {
		upd := repository.ExpenseUpdate{Project: &entities.Project}
		if err := i.expenses.UpdateFields(ctx, lastID, upd); err != nil {
			logger.Log.Error().Err(err).Int("id", lastID).Msg("edit project failed")
			return errorReply
		}
		return fmt.Sprintf("Moved to %s", entities.Project)
	}

	vendor := parser.TitleCase(change)
	upd := repository.ExpenseUpdate{Vendor: &vendor}
	if err := i.expenses.UpdateFields(ctx, lastID, upd); err != nil {
		logger.Log.Error().Err(err).Int("id", lastID).Msg("edit vendor failed")
		return errorReply
	}
	return fmt.Sprintf("Vendor changed to %s", vendor)
}

func (i *Interpreter) handleTotal(ctx context.Context, in Inbound) string {
	totals, err := i.expenses.TotalsByActor(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("total failed")
		return errorReply
	}

	grand := decimal.Zero
	mine := decimal.Zero
	for _, t := range totals {
		grand = grand.Add(t.Total)
		if t.EnteredBy == in.DisplayName {
			mine = t.Total
		}
	}
	if grand.IsZero() {
		return "No expenses recorded yet."
	}

	share := mine.Div(grand).Mul(decimal.NewFromInt(100)).Round(0)
	return fmt.Sprintf("You recorded %s of %s total (%s%%)",
		models.FormatNaira(mine), models.FormatNaira(grand), share)
}

func (i *Interpreter) handleWho(ctx context.Context) string {
	totals, err := i.expenses.TotalsByActor(ctx)
	if err != nil {
		logger.Log.Error().Err(err).Msg("who failed")
		return errorReply
	}
	if len(totals) == 0 {
		return "No expenses recorded yet."
	}
	if len(totals) > 5 {
		totals = totals[:5]
	}

	var b strings.Builder
	b.WriteString("Who records the most:\n")
	for n, t := range totals {
		name := t.EnteredBy
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(&b, "%d. %s: %s (%d entries)\n",
			n+1, name, models.FormatNaira(t.Total), t.Count)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (i *Interpreter) handleNewExpense(ctx context.Context, in Inbound, text string) string {
	parsed := parser.ParseExpense(text, i.rules)
	if parsed == nil {
		return "I didn't catch an amount. Try something like: 500k cement Maitama Dangote"
	}

	e := parser.BuildExpense(parsed, in.Source, text, in.DisplayName)
	if err := i.expenses.Create(ctx, e); err != nil {
		logger.Log.Error().Err(err).Msg("expense create failed")
		return errorReply
	}
	i.sessions.SetLastExpense(in.Key, e.ID)

	reply := fmt.Sprintf("Recorded: %s %s - %s (%s)",
		models.FormatNaira(e.Amount), e.Category, e.Project, e.Vendor)

	if note := i.budgetNote(ctx, e.Project); note != "" {
		reply += "\n" + note
	}
	if note := i.soldNote(ctx, e.Project); note != "" {
		reply += "\n" + note
	}
	return reply
}

// budgetNote warns when a recorded expense pushes a project past the
// 75/90/100 percent tiers. Lookups are best effort; the expense is already
// stored either way.
func (i *Interpreter) budgetNote(ctx context.Context, projectName string) string {
	if projectName == models.ProjectUnassigned || projectName == models.ProjectUnknown {
		return ""
	}

	project, err := i.projects.GetByName(ctx, projectName)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logger.Log.Warn().Err(err).Str("project", projectName).Msg("budget lookup failed")
		}
		return ""
	}
	spent, err := i.expenses.SpentByProject(ctx, projectName)
	if err != nil {
		logger.Log.Warn().Err(err).Str("project", projectName).Msg("spend lookup failed")
		return ""
	}

	bal := models.NewBalance(project.Name, project.Budget, spent)
	switch {
	case bal.Percentage >= 100:
		return fmt.Sprintf("WARNING: %s is over budget! Spent %s of %s.",
			project.Name, models.FormatNaira(bal.Spent), models.FormatNaira(bal.Budget))
	case bal.Percentage >= 90:
		return fmt.Sprintf("Heads up: %s is at %d%% of budget.",
			project.Name, bal.Percentage)
	case bal.Percentage >= 75:
		return fmt.Sprintf("Note: %s has used %d%% of its budget.",
			project.Name, bal.Percentage)
	default:
		return ""
	}
}

func (i *Interpreter) soldNote(ctx context.Context, projectName string) string {
	if projectName == models.ProjectUnassigned || projectName == models.ProjectUnknown {
		return ""
	}
	sold, err := i.sales.ExistsForProject(ctx, projectName)
	if err != nil {
		logger.Log.Warn().Err(err).Str("project", projectName).Msg("sold check failed")
		return ""
	}
	if sold {
		return fmt.Sprintf("Note: %s is already marked as sold.", projectName)
	}
	return ""
}
