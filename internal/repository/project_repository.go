package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"gitlab.com/kabirsadiq/buildtrack/internal/database"
	"gitlab.com/kabirsadiq/buildtrack/internal/models"
)

// ProjectRepository handles project persistence.
type ProjectRepository struct {
	db database.PGXDB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db database.PGXDB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, name, budget, location, status, created_at`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(&p.ID, &p.Name, &p.Budget, &p.Location, &p.Status, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetAll returns every project ordered by name.
func (r *ProjectRepository) GetAll(ctx context.Context) ([]models.Project, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+projectColumns+` FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *p)
	}
	return projects, rows.Err()
}

// GetByName fetches a project by its exact name, case-insensitively.
func (r *ProjectRepository) GetByName(ctx context.Context, name string) (*models.Project, error) {
	p, err := scanProject(r.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE LOWER(name) = LOWER($1)`,
		name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project %q: %w", name, err)
	}
	return p, nil
}

// FindByFragment matches a project whose name contains the fragment. Exact
// matches win; otherwise the first containing match in name order is used.
func (r *ProjectRepository) FindByFragment(ctx context.Context, fragment string) (*models.Project, error) {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return nil, ErrNotFound
	}

	if p, err := r.GetByName(ctx, fragment); err == nil {
		return p, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p, err := scanProject(r.db.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects
		 WHERE name ILIKE $1 ORDER BY name LIMIT 1`,
		"%"+fragment+"%"))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find project %q: %w", fragment, err)
	}
	return p, nil
}

// Create inserts a project and fills in its id and timestamp.
func (r *ProjectRepository) Create(ctx context.Context, p *models.Project) error {
	if p.Status == "" {
		p.Status = models.ProjectStatusActive
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO projects (name, budget, location, status)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		p.Name, p.Budget, p.Location, p.Status,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project %q: %w", p.Name, err)
	}
	return nil
}

// SetStatus updates the lifecycle status of a project.
func (r *ProjectRepository) SetStatus(ctx context.Context, name, status string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE projects SET status = $1 WHERE LOWER(name) = LOWER($2)`,
		status, name)
	if err != nil {
		return fmt.Errorf("failed to set status for project %q: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
