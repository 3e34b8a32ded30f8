package repositories

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	db "crf-system/internal/infrastructure/bd"
	"crf-system/pkg/constants"
	"crf-system/pkg/types"
)

// OutboxRepositoryInterface - намерения уведомить, записанные вместе с переходом.
type OutboxRepositoryInterface interface {
	EnqueueInTx(ctx context.Context, tx pgx.Tx, intent *entities.NotificationIntent) error
	MarkSent(ctx context.Context, id uint64) error
	MarkFailed(ctx context.Context, id uint64, attempts int, lastError string, availableAt time.Time) error
	MarkDead(ctx context.Context, id uint64, attempts int, lastError string) error
	ClaimDue(ctx context.Context, now time.Time, staleBefore time.Time, limit int) ([]entities.NotificationIntent, error)
	ListFailed(ctx context.Context, filter types.Filter) ([]entities.NotificationIntent, uint64, error)
}

type OutboxRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewOutboxRepository(storage *pgxpool.Pool, logger *zap.Logger) OutboxRepositoryInterface {
	return &OutboxRepository{storage: storage, logger: logger}
}

var outboxListSpec = db.ListSpec{
	Fields: map[string]string{
		"status":       "status",
		"crf_id":       "crf_id",
		"template_key": "template_key",
		"attempts":     "attempts",
		"created_at":   "created_at",
	},
	SearchColumns: []string{"template_key", "last_error"},
	DefaultOrder:  []string{"created_at DESC"},
	TieBreaker:    "id DESC",
}

const outboxSelectFields = `id, event_id, crf_id, template_key, recipients, context, actor_id,
	status, attempts, last_error, available_at, locked_at, sent_at, created_at`

func scanIntent(row pgx.Row) (*entities.NotificationIntent, error) {
	var n entities.NotificationIntent
	err := row.Scan(
		&n.ID, &n.EventID, &n.CRFID, &n.TemplateKey, &n.Recipients, &n.Context, &n.ActorID,
		&n.Status, &n.Attempts, &n.LastError, &n.AvailableAt, &n.LockedAt, &n.SentAt, &n.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *OutboxRepository) EnqueueInTx(ctx context.Context, tx pgx.Tx, intent *entities.NotificationIntent) error {
	query := `
		INSERT INTO crf_notification_outbox (event_id, crf_id, template_key, recipients, context, actor_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, available_at, created_at`

	if intent.Status == "" {
		intent.Status = constants.OutboxStatusPending
	}
	err := tx.QueryRow(ctx, query,
		intent.EventID, intent.CRFID, intent.TemplateKey, intent.Recipients, intent.Context, intent.ActorID, intent.Status,
	).Scan(&intent.ID, &intent.AvailableAt, &intent.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка записи уведомления в outbox: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkSent(ctx context.Context, id uint64) error {
	_, err := r.storage.Exec(ctx, `
		UPDATE crf_notification_outbox
		SET status = $2, sent_at = NOW(), locked_at = NULL, last_error = NULL
		WHERE id = $1`, id, constants.OutboxStatusSent)
	if err != nil {
		return fmt.Errorf("ошибка отметки уведомления %d как отправленного: %w", id, err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id uint64, attempts int, lastError string, availableAt time.Time) error {
	_, err := r.storage.Exec(ctx, `
		UPDATE crf_notification_outbox
		SET status = $2, attempts = $3, last_error = $4, available_at = $5, locked_at = NULL
		WHERE id = $1`, id, constants.OutboxStatusFailed, attempts, lastError, availableAt)
	if err != nil {
		return fmt.Errorf("ошибка отметки уведомления %d как неудачного: %w", id, err)
	}
	return nil
}

func (r *OutboxRepository) MarkDead(ctx context.Context, id uint64, attempts int, lastError string) error {
	_, err := r.storage.Exec(ctx, `
		UPDATE crf_notification_outbox
		SET status = $2, attempts = $3, last_error = $4, locked_at = NULL
		WHERE id = $1`, id, constants.OutboxStatusDead, attempts, lastError)
	if err != nil {
		return fmt.Errorf("ошибка отметки уведомления %d как мертвого: %w", id, err)
	}
	return nil
}

// ClaimDue забирает пачку уведомлений для повторной отправки. Берутся PENDING,
// которые слушатель так и не отметил до staleBefore, и FAILED с наступившим
// available_at. Строки, захваченные другим экземпляром, пропускаются.
func (r *OutboxRepository) ClaimDue(ctx context.Context, now time.Time, staleBefore time.Time, limit int) ([]entities.NotificationIntent, error) {
	query := `
		UPDATE crf_notification_outbox o
		SET locked_at = $1
		WHERE o.id IN (
			SELECT id FROM crf_notification_outbox
			WHERE ((status = $3 AND created_at < $2) OR (status = $4 AND available_at <= $1))
			  AND (locked_at IS NULL OR locked_at < $2)
			ORDER BY id
			LIMIT $5
			FOR UPDATE SKIP LOCKED
		)
		RETURNING ` + outboxSelectFields

	rows, err := r.storage.Query(ctx, query, now, staleBefore,
		constants.OutboxStatusPending, constants.OutboxStatusFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка захвата уведомлений: %w", err)
	}
	defer rows.Close()

	out := make([]entities.NotificationIntent, 0)
	for rows.Next() {
		n, err := scanIntent(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования уведомления: %w", err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

// ListFailed - уведомления, требующие внимания оператора (FAILED и DEAD).
func (r *OutboxRepository) ListFailed(ctx context.Context, filter types.Filter) ([]entities.NotificationIntent, uint64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	base := psql.Select().
		From("crf_notification_outbox").
		Where(sq.Eq{"status": []string{constants.OutboxStatusFailed, constants.OutboxStatusDead}})
	base = outboxListSpec.ApplyFilters(base, filter)

	countQuery, countArgs, err := base.Columns("COUNT(*)").ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки COUNT-запроса: %w", err)
	}
	var total uint64
	if err := r.storage.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета неудачных уведомлений: %w", err)
	}
	if total == 0 {
		return []entities.NotificationIntent{}, 0, nil
	}

	query, args, err := outboxListSpec.ApplyOrderAndPage(base.Columns(outboxSelectFields), filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка сборки запроса: %w", err)
	}
	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения неудачных уведомлений: %w", err)
	}
	defer rows.Close()

	out := make([]entities.NotificationIntent, 0)
	for rows.Next() {
		n, err := scanIntent(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *n)
	}
	return out, total, rows.Err()
}
