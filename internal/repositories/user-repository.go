package repositories

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	apperrors "crf-system/pkg/errors"
)

// Роли пользователя собираются в массив одним запросом
const userSelectFields = `
	u.id, u.fio, u.email, u.national_id, u.designation, COALESCE(u.department_id, 0), u.telegram_chat_id,
	COALESCE(array_agg(r.code ORDER BY r.code) FILTER (WHERE r.code IS NOT NULL), '{}') AS roles,
	u.created_at, u.updated_at`

const userJoinClause = `users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id`

type UserRepositoryInterface interface {
	FindByID(ctx context.Context, id uint64) (*entities.User, error)
	FindByRole(ctx context.Context, role string, departmentID *uint64) ([]entities.User, error)
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var user entities.User
	err := row.Scan(
		&user.ID, &user.Fio, &user.Email, &user.NationalID, &user.Designation,
		&user.DepartmentID, &user.TelegramChatID, &user.Roles,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*entities.User, error) {
	query := `SELECT ` + userSelectFields + ` FROM ` + userJoinClause + `
		WHERE u.id = $1 AND u.deleted_at IS NULL
		GROUP BY u.id`

	user, err := scanUser(r.storage.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("ошибка получения пользователя %d: %w", id, err)
	}
	return user, nil
}

// FindByRole - все активные держатели роли; departmentID == nil - в любом подразделении.
func (r *UserRepository) FindByRole(ctx context.Context, role string, departmentID *uint64) ([]entities.User, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	builder := psql.Select(userSelectFields).
		From(userJoinClause).
		Where("u.deleted_at IS NULL").
		Where(sq.Expr(`EXISTS (
			SELECT 1 FROM user_roles hr JOIN roles hro ON hro.id = hr.role_id
			WHERE hr.user_id = u.id AND hro.code = ?)`, role)).
		GroupBy("u.id").
		OrderBy("u.id")
	if departmentID != nil {
		builder = builder.Where(sq.Eq{"u.department_id": *departmentID})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса пользователей по роли: %w", err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска пользователей по роли %s: %w", role, err)
	}
	defer rows.Close()

	users := make([]entities.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}
