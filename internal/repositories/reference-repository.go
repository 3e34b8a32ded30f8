package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	apperrors "crf-system/pkg/errors"
)

// ReferenceRepositoryInterface - справочники подразделений, категорий и факторов.
type ReferenceRepositoryInterface interface {
	FindDepartmentByCode(ctx context.Context, code string) (*entities.Department, error)
	FindDepartmentByID(ctx context.Context, id uint64) (*entities.Department, error)
	FindCategoryByID(ctx context.Context, id uint64) (*entities.Category, error)
	FindFactorByID(ctx context.Context, id uint64) (*entities.Factor, error)
	ListCategories(ctx context.Context) ([]entities.Category, error)
}

type ReferenceRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewReferenceRepository(storage *pgxpool.Pool, logger *zap.Logger) ReferenceRepositoryInterface {
	return &ReferenceRepository{storage: storage, logger: logger}
}

func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

func (r *ReferenceRepository) FindDepartmentByCode(ctx context.Context, code string) (*entities.Department, error) {
	var d entities.Department
	err := r.storage.QueryRow(ctx,
		`SELECT id, code, name, created_at, updated_at FROM departments WHERE code = $1`, code,
	).Scan(&d.ID, &d.Code, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "ошибка поиска подразделения %s", code)
	}
	return &d, nil
}

func (r *ReferenceRepository) FindDepartmentByID(ctx context.Context, id uint64) (*entities.Department, error) {
	var d entities.Department
	err := r.storage.QueryRow(ctx,
		`SELECT id, code, name, created_at, updated_at FROM departments WHERE id = $1`, id,
	).Scan(&d.ID, &d.Code, &d.Name, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "ошибка поиска подразделения %d", id)
	}
	return &d, nil
}

func (r *ReferenceRepository) FindCategoryByID(ctx context.Context, id uint64) (*entities.Category, error) {
	var c entities.Category
	err := r.storage.QueryRow(ctx,
		`SELECT id, name, requires_deputy_approval, created_at, updated_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.RequiresDeputyApproval, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "ошибка поиска категории %d", id)
	}
	return &c, nil
}

func (r *ReferenceRepository) FindFactorByID(ctx context.Context, id uint64) (*entities.Factor, error) {
	var f entities.Factor
	err := r.storage.QueryRow(ctx,
		`SELECT id, category_id, name, created_at, updated_at FROM factors WHERE id = $1`, id,
	).Scan(&f.ID, &f.CategoryID, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, notFoundOr(err, "ошибка поиска фактора %d", id)
	}
	return &f, nil
}

func (r *ReferenceRepository) ListCategories(ctx context.Context) ([]entities.Category, error) {
	rows, err := r.storage.Query(ctx,
		`SELECT id, name, requires_deputy_approval, created_at, updated_at FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения категорий: %w", err)
	}
	defer rows.Close()

	out := make([]entities.Category, 0)
	for rows.Next() {
		var c entities.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.RequiresDeputyApproval, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
