package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"crf-system/internal/entities"
)

// TimelineRepositoryInterface - только вставка и чтение: записи таймлайна не меняются.
type TimelineRepositoryInterface interface {
	CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.TimelineEntry) error
	FindByCRFID(ctx context.Context, crfID uint64) ([]entities.TimelineEntry, error)
}

type TimelineRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewTimelineRepository(storage *pgxpool.Pool, logger *zap.Logger) TimelineRepositoryInterface {
	return &TimelineRepository{storage: storage, logger: logger}
}

func (r *TimelineRepository) CreateInTx(ctx context.Context, tx pgx.Tx, entry *entities.TimelineEntry) error {
	query := `
		INSERT INTO crf_timeline (crf_id, status, status_label, action_kind, remark, actor_id, tx_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := tx.QueryRow(ctx, query,
		entry.CRFID, entry.Status, entry.StatusLabel, entry.ActionKind, entry.Remark, entry.ActorID, entry.TxID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		r.logger.Error("ошибка записи в таймлайн", zap.Uint64("crfID", entry.CRFID), zap.Error(err))
		return fmt.Errorf("ошибка записи в таймлайн: %w", err)
	}
	return nil
}

func (r *TimelineRepository) FindByCRFID(ctx context.Context, crfID uint64) ([]entities.TimelineEntry, error) {
	query := `
		SELECT t.id, t.crf_id, t.status, t.status_label, t.action_kind, t.remark,
		       t.actor_id, t.tx_id, t.created_at, u.fio
		FROM crf_timeline t
		LEFT JOIN users u ON u.id = t.actor_id
		WHERE t.crf_id = $1
		ORDER BY t.created_at ASC, t.id ASC`

	rows, err := r.storage.Query(ctx, query, crfID)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения таймлайна заявки %d: %w", crfID, err)
	}
	defer rows.Close()

	entries := make([]entities.TimelineEntry, 0)
	for rows.Next() {
		var e entities.TimelineEntry
		if err := rows.Scan(
			&e.ID, &e.CRFID, &e.Status, &e.StatusLabel, &e.ActionKind, &e.Remark,
			&e.ActorID, &e.TxID, &e.CreatedAt, &e.ActorName,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования записи таймлайна: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
