package seeders

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"crf-system/pkg/validation"
)

// Seed наполняет справочники и тестовых пользователей. Повторный запуск безопасен.
func Seed(ctx context.Context, db *pgxpool.Pool, logger *zap.Logger) error {
	if err := ValidateUsers(usersData); err != nil {
		return err
	}

	logger.Info("▶️  Запуск наполнения БД...")
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	departments, err := seedDepartments(ctx, tx)
	if err != nil {
		return fmt.Errorf("ошибка наполнения отделов: %w", err)
	}
	logger.Info("  - отделы", zap.Int("count", len(departments)))

	roles, err := seedRoles(ctx, tx)
	if err != nil {
		return fmt.Errorf("ошибка наполнения ролей: %w", err)
	}
	logger.Info("  - роли", zap.Int("count", len(roles)))

	if err := seedCategories(ctx, tx); err != nil {
		return fmt.Errorf("ошибка наполнения категорий: %w", err)
	}
	logger.Info("  - категории и факторы", zap.Int("count", len(categoriesData)))

	for _, u := range usersData {
		if err := seedUser(ctx, tx, u, departments, roles); err != nil {
			return fmt.Errorf("ошибка создания пользователя %s: %w", u.Email, err)
		}
	}
	logger.Info("  - пользователи", zap.Int("count", len(usersData)))

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	logger.Info("✅ Наполнение БД завершено")
	return nil
}

// ValidateUsers проверяет данные до записи в БД.
func ValidateUsers(users []SeedUser) error {
	v := validation.New()
	known := make(map[string]bool, len(departmentsData))
	for _, d := range departmentsData {
		known[d.Code] = true
	}
	for _, u := range users {
		if err := v.Validate(u); err != nil {
			return fmt.Errorf("пользователь %s: %w", u.Email, err)
		}
		if !known[u.Department] {
			return fmt.Errorf("пользователь %s: неизвестный отдел %q", u.Email, u.Department)
		}
	}
	return nil
}

func seedDepartments(ctx context.Context, tx pgx.Tx) (map[string]uint64, error) {
	query := `INSERT INTO departments (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name, updated_at = NOW()
		RETURNING id`
	ids := make(map[string]uint64, len(departmentsData))
	for _, d := range departmentsData {
		var id uint64
		if err := tx.QueryRow(ctx, query, d.Code, d.Name).Scan(&id); err != nil {
			return nil, err
		}
		ids[d.Code] = id
	}
	return ids, nil
}

func seedRoles(ctx context.Context, tx pgx.Tx) (map[string]uint64, error) {
	codes := make([]string, 0, len(rolesData))
	for code := range rolesData {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	query := `INSERT INTO roles (code, name) VALUES ($1, $2)
		ON CONFLICT (code) DO UPDATE SET name = EXCLUDED.name
		RETURNING id`
	ids := make(map[string]uint64, len(codes))
	for _, code := range codes {
		var id uint64
		if err := tx.QueryRow(ctx, query, code, rolesData[code]).Scan(&id); err != nil {
			return nil, err
		}
		ids[code] = id
	}
	return ids, nil
}

func seedCategories(ctx context.Context, tx pgx.Tx) error {
	categoryQuery := `INSERT INTO categories (name, requires_deputy_approval) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET requires_deputy_approval = EXCLUDED.requires_deputy_approval, updated_at = NOW()
		RETURNING id`
	factorQuery := `INSERT INTO factors (category_id, name) VALUES ($1, $2) ON CONFLICT (category_id, name) DO NOTHING`

	for _, c := range categoriesData {
		var categoryID uint64
		if err := tx.QueryRow(ctx, categoryQuery, c.Name, c.RequiresDeputy).Scan(&categoryID); err != nil {
			return err
		}
		for _, f := range c.Factors {
			if _, err := tx.Exec(ctx, factorQuery, categoryID, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func seedUser(ctx context.Context, tx pgx.Tx, u SeedUser, departments, roles map[string]uint64) error {
	var userID uint64
	err := tx.QueryRow(ctx, `INSERT INTO users (fio, email, national_id, designation, department_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET fio = EXCLUDED.fio, designation = EXCLUDED.designation,
			department_id = EXCLUDED.department_id, updated_at = NOW()
		RETURNING id`,
		u.Fio, u.Email, u.NationalID, u.Designation, departments[u.Department],
	).Scan(&userID)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	for _, role := range u.Roles {
		if _, err := tx.Exec(ctx, `INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`, userID, roles[role]); err != nil {
			return err
		}
	}
	return nil
}
