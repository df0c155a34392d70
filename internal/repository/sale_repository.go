package repository

import (
	"context"
	"fmt"

	"gitlab.com/kabirsadiq/buildtrack/internal/database"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// SaleRepository handles recorded property sales.
type SaleRepository struct {
	db database.PGXDB
}

// NewSaleRepository creates a new sale repository.
func NewSaleRepository(db database.PGXDB) *SaleRepository {
	return &SaleRepository{db: db}
}

// Create inserts a sale and fills in its id and timestamp.
func (r *SaleRepository) Create(ctx context.Context, s *models.Sale) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO sales (project, sale_price, total_cost, gross_profit,
			agent_commission, legal_fees, capital_gains_tax, net_profit)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		s.Project, s.SalePrice, s.TotalCost, s.GrossProfit,
		s.AgentCommission, s.LegalFees, s.CapitalGainsTax, s.NetProfit,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create sale for %q: %w", s.Project, err)
	}
	return nil
}

// GetAll returns every sale, newest first.
func (r *SaleRepository) GetAll(ctx context.Context) ([]models.Sale, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, project, sale_price, total_cost, gross_profit,
			agent_commission, legal_fees, capital_gains_tax, net_profit, created_at
		 FROM sales ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	var sales []models.Sale
	for rows.Next() {
		var s models.Sale
		err := rows.Scan(&s.ID, &s.Project, &s.SalePrice, &s.TotalCost,
			&s.GrossProfit, &s.AgentCommission, &s.LegalFees,
			&s.CapitalGainsTax, &s.NetProfit, &s.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, s)
	}
	return sales, rows.Err()
}

// ExistsForProject reports whether the project has already been sold.
func (r *SaleRepository) ExistsForProject(ctx context.Context, project string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sales WHERE LOWER(project) = LOWER($1))`,
		project,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check sale for %q: %w", project, err)
	}
	return exists, nil
}
