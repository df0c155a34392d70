package repository

import (
	"context"
	"fmt"

	"gitlab.com/kabirsadiq/buildtrack/internal/database"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// VendorRepository handles the vendor directory.
type VendorRepository struct {
	db database.PGXDB
}

// NewVendorRepository creates a new vendor repository.
func NewVendorRepository(db database.PGXDB) *VendorRepository {
	return &VendorRepository{db: db}
}

// GetAll returns every vendor ordered by name.
func (r *VendorRepository) GetAll(ctx context.Context) ([]models.Vendor, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, name, type, contact, email, created_at
		 FROM vendors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list vendors: %w", err)
	}
	defer rows.Close()

	var vendors []models.Vendor
	for rows.Next() {
		var v models.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Type, &v.Contact, &v.Email, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

// Upsert creates a vendor or refreshes its details when the name exists.
func (r *VendorRepository) Upsert(ctx context.Context, v *models.Vendor) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO vendors (name, type, contact, email)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (name) DO UPDATE SET
			type = EXCLUDED.type,
			contact = EXCLUDED.contact,
			email = EXCLUDED.email
		 RETURNING id, created_at`,
		v.Name, v.Type, v.Contact, v.Email,
	).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert vendor %q: %w", v.Name, err)
	}
	return nil
}
