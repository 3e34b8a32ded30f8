package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	db "crf-system/internal/infrastructure/bd"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/types"
)

// CRFListItem - строка списка заявок с подтянутыми названиями.
type CRFListItem struct {
	entities.CRF
	CategoryName   sql.NullString `db:"category_name"`
	DepartmentName sql.NullString `db:"department_name"`
	FactorName     sql.NullString `db:"factor_name"`
	TechnicianName sql.NullString `db:"technician_name"`
}

type CRFRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, crf *entities.CRF) error
	FindByID(ctx context.Context, id uint64) (*entities.CRF, error)
	FindByIDInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.CRF, error)
	UpdateInTx(ctx context.Context, tx pgx.Tx, crf *entities.CRF) error
	DeleteInTx(ctx context.Context, tx pgx.Tx, id uint64, version int) error
	ListVisible(ctx context.Context, visibility sq.Sqlizer, filter types.Filter) ([]CRFListItem, uint64, error)
}

type CRFRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewCRFRepository(storage *pgxpool.Pool, logger *zap.Logger) CRFRepositoryInterface {
	return &CRFRepository{storage: storage, logger: logger}
}

// Поля списка заявок для filter[...], sort[...] и search
var crfListSpec = db.ListSpec{
	Fields: map[string]string{
		"status":        "c.status",
		"department_id": "c.department_id",
		"category_id":   "c.category_id",
		"factor_id":     "c.factor_id",
		"requester_id":  "c.requester_id",
		"technician_id": "c.assigned_technician_id",
		"crf_number":    "c.crf_number",
		"created_at":    "c.created_at",
		"updated_at":    "c.updated_at",
	},
	SearchColumns: []string{"c.crf_number", "c.issue", "c.requester_name"},
	DefaultOrder:  []string{"c.created_at DESC"},
	TieBreaker:    "c.id DESC",
}

const crfSelectColumns = `
	c.id, c.crf_number, c.requester_id, c.requester_name, c.requester_national_id,
	c.requester_designation, c.requester_extension, c.department_id, c.category_id, c.factor_id,
	cat.requires_deputy_approval, c.issue, c.reason, c.status,
	c.assigned_technician_id, c.vendor_admin_id,
	c.dept_head_approved_by, c.dept_head_approved_at,
	c.deputy_approved_by, c.deputy_approved_at,
	c.it_head_approved_by, c.it_head_approved_at,
	c.rejection_reason, c.rejected_by, c.rejected_at,
	c.redirect_reason, c.redirected_by, c.redirected_at,
	c.remark, c.version, c.created_at, c.updated_at`

func crfScanTargets(c *entities.CRF) []interface{} {
	return []interface{}{
		&c.ID, &c.CRFNumber, &c.RequesterID, &c.RequesterName, &c.RequesterNationalID,
		&c.RequesterDesignation, &c.RequesterExtension, &c.DepartmentID, &c.CategoryID, &c.FactorID,
		&c.RequiresDeputyApproval, &c.Issue, &c.Reason, &c.Status,
		&c.AssignedTechnicianID, &c.VendorAdminID,
		&c.DeptHeadApprovedBy, &c.DeptHeadApprovedAt,
		&c.DeputyApprovedBy, &c.DeputyApprovedAt,
		&c.ITHeadApprovedBy, &c.ITHeadApprovedAt,
		&c.RejectionReason, &c.RejectedBy, &c.RejectedAt,
		&c.RedirectReason, &c.RedirectedBy, &c.RedirectedAt,
		&c.Remark, &c.Version, &c.CreatedAt, &c.UpdatedAt,
	}
}

func (r *CRFRepository) CreateInTx(ctx context.Context, tx pgx.Tx, crf *entities.CRF) error {
	query := `
		INSERT INTO crfs (
			crf_number, requester_id, requester_name, requester_national_id, requester_designation,
			requester_extension, department_id, category_id, factor_id, issue, reason, status, remark
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, version, created_at, updated_at`

	err := tx.QueryRow(ctx, query,
		crf.CRFNumber, crf.RequesterID, crf.RequesterName, crf.RequesterNationalID, crf.RequesterDesignation,
		crf.RequesterExtension, crf.DepartmentID, crf.CategoryID, crf.FactorID, crf.Issue, crf.Reason,
		crf.Status, crf.Remark,
	).Scan(&crf.ID, &crf.Version, &crf.CreatedAt, &crf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания заявки: %w", err)
	}
	return nil
}

func (r *CRFRepository) FindByID(ctx context.Context, id uint64) (*entities.CRF, error) {
	return r.findOne(ctx, r.storage, id)
}

// FindByIDInTx читает заявку внутри транзакции перехода. Сериализация переходов
// обеспечивается версией в UpdateInTx, поэтому блокировка строки не берется.
func (r *CRFRepository) FindByIDInTx(ctx context.Context, tx pgx.Tx, id uint64) (*entities.CRF, error) {
	return r.findOne(ctx, tx, id)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func (r *CRFRepository) findOne(ctx context.Context, q rowQuerier, id uint64) (*entities.CRF, error) {
	query := `SELECT ` + crfSelectColumns + `
		FROM crfs c
		JOIN categories cat ON cat.id = c.category_id
		WHERE c.id = $1`

	var c entities.CRF
	if err := q.QueryRow(ctx, query, id).Scan(crfScanTargets(&c)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения заявки %d: %w", id, err)
	}
	return &c, nil
}

// UpdateInTx сохраняет заявку с проверкой версии. Если строку успел изменить
// другой запрос, возвращается ErrPersistenceConflict.
func (r *CRFRepository) UpdateInTx(ctx context.Context, tx pgx.Tx, crf *entities.CRF) error {
	query := `
		UPDATE crfs SET
			factor_id = $1, status = $2, assigned_technician_id = $3, vendor_admin_id = $4,
			dept_head_approved_by = $5, dept_head_approved_at = $6,
			deputy_approved_by = $7, deputy_approved_at = $8,
			it_head_approved_by = $9, it_head_approved_at = $10,
			rejection_reason = $11, rejected_by = $12, rejected_at = $13,
			redirect_reason = $14, redirected_by = $15, redirected_at = $16,
			remark = $17, version = version + 1, updated_at = $18
		WHERE id = $19 AND version = $20
		RETURNING version`

	now := time.Now()
	var newVersion int
	err := tx.QueryRow(ctx, query,
		crf.FactorID, crf.Status, crf.AssignedTechnicianID, crf.VendorAdminID,
		crf.DeptHeadApprovedBy, crf.DeptHeadApprovedAt,
		crf.DeputyApprovedBy, crf.DeputyApprovedAt,
		crf.ITHeadApprovedBy, crf.ITHeadApprovedAt,
		crf.RejectionReason, crf.RejectedBy, crf.RejectedAt,
		crf.RedirectReason, crf.RedirectedBy, crf.RedirectedAt,
		crf.Remark, now, crf.ID, crf.Version,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrPersistenceConflict
		}
		return fmt.Errorf("ошибка обновления заявки %d: %w", crf.ID, err)
	}
	crf.Version = newVersion
	crf.UpdatedAt = now
	return nil
}

// DeleteInTx удаляет заявку той версии, которую видел вызывающий.
func (r *CRFRepository) DeleteInTx(ctx context.Context, tx pgx.Tx, id uint64, version int) error {
	tag, err := tx.Exec(ctx, `DELETE FROM crfs WHERE id = $1 AND version = $2`, id, version)
	if err != nil {
		return fmt.Errorf("ошибка удаления заявки %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrPersistenceConflict
	}
	return nil
}

func (r *CRFRepository) ListVisible(ctx context.Context, visibility sq.Sqlizer, filter types.Filter) ([]CRFListItem, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	baseSelect := psql.Select().
		From("crfs c").
		Join("categories cat ON cat.id = c.category_id").
		LeftJoin("departments d ON d.id = c.department_id").
		LeftJoin("factors f ON f.id = c.factor_id").
		LeftJoin("users tech ON tech.id = c.assigned_technician_id").
		Where(visibility)
	baseSelect = crfListSpec.ApplyFilters(baseSelect, filter)

	countQuery, countArgs, err := baseSelect.Columns("COUNT(c.id)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки COUNT-запроса: %w", err)
	}
	var total uint64
	if err = r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения COUNT-запроса: %w", err)
	}
	if total == 0 {
		return []CRFListItem{}, 0, nil
	}

	mainBuilder := baseSelect.Columns(crfSelectColumns, "cat.name", "d.name", "f.name", "tech.fio")
	mainBuilder = crfListSpec.ApplyOrderAndPage(mainBuilder, filter)

	query, args, err := mainBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки основного запроса: %w", err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка выполнения основного запроса: %w", err)
	}
	defer rows.Close()

	items := make([]CRFListItem, 0)
	for rows.Next() {
		var item CRFListItem
		targets := append(crfScanTargets(&item.CRF),
			&item.CategoryName, &item.DepartmentName, &item.FactorName, &item.TechnicianName)
		if err := rows.Scan(targets...); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования строки: %w", err)
		}
		items = append(items, item)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, err
	}

	r.logger.Debug("ListVisible", zap.Uint64("total", total), zap.Int("page", len(items)))
	return items, total, nil
}
