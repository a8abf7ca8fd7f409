package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-escalation/internal/domain"
)

// UnitRepository manages organizational units.
type UnitRepository interface {
	Create(ctx context.Context, unit *domain.Unit) error
	Update(ctx context.Context, unit *domain.Unit) error
	GetByID(ctx context.Context, id string) (*domain.Unit, error)
	// List returns every unit, active or not, so the hierarchy can be walked
	// through deactivated ancestors.
	List(ctx context.Context) ([]domain.Unit, error)
}

// CategoryRepository reads ticket categories.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)
}

type unitRepository struct {
	pool *pgxpool.Pool
}

// NewUnitRepository builds the repository.
func NewUnitRepository(pool *pgxpool.Pool) UnitRepository {
	return &unitRepository{pool: pool}
}

func (r *unitRepository) Create(ctx context.Context, unit *domain.Unit) error {
	const query = `
        INSERT INTO units (name, code, parent_id, sla_hours, is_active)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		unit.Name,
		unit.Code,
		unit.ParentID,
		unit.SLAHours,
		unit.IsActive,
	).Scan(&unit.ID, &unit.CreatedAt, &unit.UpdatedAt)
}

func (r *unitRepository) Update(ctx context.Context, unit *domain.Unit) error {
	const query = `
        UPDATE units SET name=$1, code=$2, parent_id=$3, sla_hours=$4, is_active=$5, updated_at=NOW()
        WHERE id=$6`
	cmd, err := r.pool.Exec(ctx, query,
		unit.Name,
		unit.Code,
		unit.ParentID,
		unit.SLAHours,
		unit.IsActive,
		unit.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *unitRepository) GetByID(ctx context.Context, id string) (*domain.Unit, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, name, code, parent_id, sla_hours, is_active, created_at, updated_at
        FROM units WHERE id=$1`
	var unit domain.Unit
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&unit.ID,
		&unit.Name,
		&unit.Code,
		&unit.ParentID,
		&unit.SLAHours,
		&unit.IsActive,
		&unit.CreatedAt,
		&unit.UpdatedAt,
	); err != nil {
		return nil, lookupErr(err)
	}
	return &unit, nil
}

func (r *unitRepository) List(ctx context.Context) ([]domain.Unit, error) {
	const query = `
        SELECT id, name, code, parent_id, sla_hours, is_active, created_at, updated_at
        FROM units ORDER BY name ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Unit
	for rows.Next() {
		var unit domain.Unit
		if err := rows.Scan(
			&unit.ID,
			&unit.Name,
			&unit.Code,
			&unit.ParentID,
			&unit.SLAHours,
			&unit.IsActive,
			&unit.CreatedAt,
			&unit.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, unit)
	}
	return result, rows.Err()
}

type categoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository builds the repository.
func NewCategoryRepository(pool *pgxpool.Pool) CategoryRepository {
	return &categoryRepository{pool: pool}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	const query = `
        INSERT INTO categories (name, default_sla_hours, is_active)
        VALUES ($1,$2,$3)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		category.Name,
		category.DefaultSLAHours,
		category.IsActive,
	).Scan(&category.ID, &category.CreatedAt)
}

func (r *categoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	const query = `
        SELECT id, name, default_sla_hours, is_active, created_at
        FROM categories WHERE id=$1`
	var category domain.Category
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&category.ID,
		&category.Name,
		&category.DefaultSLAHours,
		&category.IsActive,
		&category.CreatedAt,
	); err != nil {
		return nil, lookupErr(err)
	}
	return &category, nil
}
