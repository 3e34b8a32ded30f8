package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// SequenceRepositoryInterface - счетчик номеров заявок в разрезе (год, месяц).
// Все методы работают только внутри транзакции создания заявки.
type SequenceRepositoryInterface interface {
	LockScopeInTx(ctx context.Context, tx pgx.Tx, year, month int) (uint64, error)
	MaxExistingSerialInTx(ctx context.Context, tx pgx.Tx, prefix string) (uint64, error)
	NumberExistsInTx(ctx context.Context, tx pgx.Tx, number string) (bool, error)
	SaveCounterInTx(ctx context.Context, tx pgx.Tx, year, month int, serial uint64) error
}

type SequenceRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewSequenceRepository(storage *pgxpool.Pool, logger *zap.Logger) SequenceRepositoryInterface {
	return &SequenceRepository{storage: storage, logger: logger}
}

// LockScopeInTx создает строку счетчика, если ее нет, и блокирует ее до конца транзакции.
func (r *SequenceRepository) LockScopeInTx(ctx context.Context, tx pgx.Tx, year, month int) (uint64, error) {
	_, err := tx.Exec(ctx, `
		INSERT INTO crf_sequences (year, month, last_serial)
		VALUES ($1, $2, 0)
		ON CONFLICT (year, month) DO NOTHING`, year, month)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания счетчика %04d/%02d: %w", year, month, err)
	}

	var last uint64
	err = tx.QueryRow(ctx, `
		SELECT last_serial FROM crf_sequences
		WHERE year = $1 AND month = $2
		FOR UPDATE`, year, month).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("ошибка блокировки счетчика %04d/%02d: %w", year, month, err)
	}
	return last, nil
}

// MaxExistingSerialInTx - наибольший порядковый номер среди заявок с префиксом "YYYY/MM/".
func (r *SequenceRepository) MaxExistingSerialInTx(ctx context.Context, tx pgx.Tx, prefix string) (uint64, error) {
	var maxSerial uint64
	err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(split_part(crf_number, '/', 3)::bigint), 0)
		FROM crfs
		WHERE crf_number LIKE $1 || '%'
		  AND split_part(crf_number, '/', 3) ~ '^[0-9]+$'`, prefix).Scan(&maxSerial)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения максимального номера для %s: %w", prefix, err)
	}
	return maxSerial, nil
}

func (r *SequenceRepository) NumberExistsInTx(ctx context.Context, tx pgx.Tx, number string) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM crfs WHERE crf_number = $1)`, number).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки номера %s: %w", number, err)
	}
	return exists, nil
}

func (r *SequenceRepository) SaveCounterInTx(ctx context.Context, tx pgx.Tx, year, month int, serial uint64) error {
	_, err := tx.Exec(ctx, `
		UPDATE crf_sequences SET last_serial = $3, updated_at = NOW()
		WHERE year = $1 AND month = $2`, year, month, serial)
	if err != nil {
		return fmt.Errorf("ошибка сохранения счетчика %04d/%02d: %w", year, month, err)
	}
	return nil
}
