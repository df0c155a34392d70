// Package repository contains the Postgres data access layer.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gitlab.com/kabirsadiq/buildtrack/internal/database"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// ExpenseRepository handles expense persistence.
type ExpenseRepository struct {
	db database.PGXDB
}

// NewExpenseRepository creates a new expense repository.
func NewExpenseRepository(db database.PGXDB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

const expenseColumns = `id, amount, project, vendor, category, source,
	description, original_text, entered_by, cancelled, created_at, updated_at`

func scanExpense(row pgx.Row) (*models.Expense, error) {
	var e models.Expense
	err := row.Scan(
		&e.ID, &e.Amount, &e.Project, &e.Vendor, &e.Category, &e.Source,
		&e.Description, &e.OriginalText, &e.EnteredBy, &e.Cancelled,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectExpenses(rows pgx.Rows) ([]models.Expense, error) {
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *e)
	}
	return expenses, rows.Err()
}

// Create inserts an expense and fills in its id and timestamps.
func (r *ExpenseRepository) Create(ctx context.Context, e *models.Expense) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO expenses (amount, project, vendor, category, source,
			description, original_text, entered_by)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		e.Amount, e.Project, e.Vendor, e.Category, e.Source,
		e.Description, e.OriginalText, e.EnteredBy,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create expense: %w", err)
	}
	return nil
}

// GetByID fetches a single expense, cancelled or not.
func (r *ExpenseRepository) GetByID(ctx context.Context, id int) (*models.Expense, error) {
	e, err := scanExpense(r.db.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense %d: %w", id, err)
	}
	return e, nil
}

// Recent returns the latest non-cancelled expenses, newest first.
func (r *ExpenseRepository) Recent(ctx context.Context, limit int) ([]models.Expense, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE cancelled = FALSE
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent expenses: %w", err)
	}
	return collectExpenses(rows)
}

// ListSince returns non-cancelled expenses recorded at or after the cutoff,
// newest first.
func (r *ExpenseRepository) ListSince(ctx context.Context, since time.Time, limit int) ([]models.Expense, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE cancelled = FALSE AND created_at >= $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return collectExpenses(rows)
}

// Search returns non-cancelled expenses whose vendor, category, project or
// original text contains the term, newest first.
func (r *ExpenseRepository) Search(ctx context.Context, term string, limit int) ([]models.Expense, error) {
	pattern := "%" + term + "%"
	rows, err := r.db.Query(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE cancelled = FALSE
		   AND (vendor ILIKE $1 OR category ILIKE $1
		        OR project ILIKE $1 OR original_text ILIKE $1)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search expenses: %w", err)
	}
	return collectExpenses(rows)
}

// SumSince totals non-cancelled spend recorded at or after the cutoff.
func (r *ExpenseRepository) SumSince(ctx context.Context, since time.Time) (decimal.Decimal, int, error) {
	var total decimal.Decimal
	var count int
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM expenses
		 WHERE cancelled = FALSE AND created_at >= $1`, since,
	).Scan(&total, &count)
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to sum expenses: %w", err)
	}
	return total, count, nil
}

// SummarySince aggregates spend at or after the cutoff by project and vendor.
func (r *ExpenseRepository) SummarySince(ctx context.Context, since time.Time) (*models.Summary, error) {
	summary := &models.Summary{
		Total:     decimal.Zero,
		ByProject: make(map[string]decimal.Decimal),
		ByVendor:  make(map[string]decimal.Decimal),
	}

	rows, err := r.db.Query(ctx,
		`SELECT amount, project, vendor FROM expenses
		 WHERE cancelled = FALSE AND created_at >= $1`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var amount decimal.Decimal
		var project, vendor string
		if err := rows.Scan(&amount, &project, &vendor); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		summary.Total = summary.Total.Add(amount)
		summary.Count++
		summary.ByProject[project] = summary.ByProject[project].Add(amount)
		summary.ByVendor[vendor] = summary.ByVendor[vendor].Add(amount)
	}
	return summary, rows.Err()
}

// SpentByProject totals all non-cancelled spend for one project.
func (r *ExpenseRepository) SpentByProject(ctx context.Context, project string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM expenses
		 WHERE cancelled = FALSE AND project = $1`, project,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum project spend: %w", err)
	}
	return total, nil
}

// ActorTotal is one row of the per-recorder leaderboard.
type ActorTotal struct {
	EnteredBy string
	Total     decimal.Decimal
	Count     int
}

// TotalsByActor groups non-cancelled spend by who recorded it, largest first.
func (r *ExpenseRepository) TotalsByActor(ctx context.Context) ([]ActorTotal, error) {
	rows, err := r.db.Query(ctx,
		`SELECT entered_by, COALESCE(SUM(amount), 0), COUNT(*)
		 FROM expenses
		 WHERE cancelled = FALSE
		 GROUP BY entered_by
		 ORDER BY 2 DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to total by actor: %w", err)
	}
	defer rows.Close()

	var totals []ActorTotal
	for rows.Next() {
		var t ActorTotal
		if err := rows.Scan(&t.EnteredBy, &t.Total, &t.Count); err != nil {
			return nil, fmt.Errorf("failed to scan actor total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// UpdateAmount changes the amount of an expense.
func (r *ExpenseRepository) UpdateAmount(ctx context.Context, id int, amount decimal.Decimal) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE expenses SET amount = $1, updated_at = NOW() WHERE id = $2`,
		amount, id)
	if err != nil {
		return fmt.Errorf("failed to update expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ExpenseUpdate carries the optional field changes for UpdateFields.
type ExpenseUpdate struct {
	Amount      *decimal.Decimal
	Project     *string
	Vendor      *string
	Category    *string
	Description *string
}

// UpdateFields applies the non-nil fields of the update to an expense.
func (r *ExpenseRepository) UpdateFields(ctx context.Context, id int, upd ExpenseUpdate) error {
	setClauses := "updated_at = NOW()"
	args := []any{id}

	add := func(column string, value any) {
		args = append(args, value)
		setClauses += fmt.Sprintf(", %s = $%d", column, len(args))
	}
	if upd.Amount != nil {
		add("amount", *upd.Amount)
	}
	if upd.Project != nil {
		add("project", *upd.Project)
	}
	if upd.Vendor != nil {
		add("vendor", *upd.Vendor)
	}
	if upd.Category != nil {
		add("category", *upd.Category)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE expenses SET `+setClauses+` WHERE id = $1`, args...)
	if err != nil {
		return fmt.Errorf("failed to update expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Cancel soft-deletes an expense so it drops out of every total while the
// row survives for audit.
func (r *ExpenseRepository) Cancel(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE expenses SET cancelled = TRUE, updated_at = NOW()
		 WHERE id = $1 AND cancelled = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to cancel expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an expense row permanently.
func (r *ExpenseRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM expenses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
