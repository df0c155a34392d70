package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RunMigrations creates the database schema.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			budget DECIMAL(14, 2) NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS expenses (
			id SERIAL PRIMARY KEY,
			amount DECIMAL(14, 2) NOT NULL,
			project TEXT NOT NULL DEFAULT 'Unassigned',
			vendor TEXT NOT NULL DEFAULT 'Unknown',
			category TEXT NOT NULL DEFAULT 'Other',
			source TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			original_text TEXT NOT NULL DEFAULT '',
			entered_by TEXT NOT NULL DEFAULT '',
			cancelled BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_expenses_project ON expenses(project)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_created_at ON expenses(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_expenses_cancelled ON expenses(cancelled)`,

		`CREATE TABLE IF NOT EXISTS vendors (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			type TEXT NOT NULL DEFAULT '',
			contact TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS sales (
			id SERIAL PRIMARY KEY,
			project TEXT NOT NULL,
			sale_price DECIMAL(14, 2) NOT NULL,
			total_cost DECIMAL(14, 2) NOT NULL,
			gross_profit DECIMAL(14, 2) NOT NULL,
			agent_commission DECIMAL(14, 2) NOT NULL,
			legal_fees DECIMAL(14, 2) NOT NULL,
			capital_gains_tax DECIMAL(14, 2) NOT NULL,
			net_profit DECIMAL(14, 2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_sales_project ON sales(project)`,
	}

	for i, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// SeedProjects inserts the canonical development sites.
func SeedProjects(ctx context.Context, pool *pgxpool.Pool) error {
	projects := []struct {
		name     string
		budget   int64
		location string
	}{
		{"Maitama Heights", 15_000_000, "Maitama, Abuja"},
		{"Garki Site", 12_000_000, "Garki, Abuja"},
		{"Katampe Hills Estate", 20_000_000, "Katampe, Abuja"},
		{"Asokoro Residences", 18_000_000, "Asokoro, Abuja"},
		{"Jabi Lakeside", 25_000_000, "Jabi, Abuja"},
		{"Wuse II Towers", 30_000_000, "Wuse II, Abuja"},
	}

	for _, p := range projects {
		_, err := pool.Exec(ctx,
			`INSERT INTO projects (name, budget, location) VALUES ($1, $2, $3)
			 ON CONFLICT (name) DO NOTHING`,
			p.name, p.budget, p.location,
		)
		if err != nil {
			return fmt.Errorf("failed to seed project %q: %w", p.name, err)
		}
	}

	return nil
}
