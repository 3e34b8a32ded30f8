package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"crf-system/internal/repositories"
	apperrors "crf-system/pkg/errors"
)

type SequenceGeneratorInterface interface {
	Next(ctx context.Context, tx pgx.Tx, year, month int) (string, error)
}

// SequenceGenerator выдает номера вида YYYY/MM/NNN. Номер выделяется внутри
// транзакции создания заявки; строка счетчика (год, месяц) остается
// заблокированной до ее коммита, поэтому параллельные создания в одном месяце
// получают номера строго по очереди.
type SequenceGenerator struct {
	repo       repositories.SequenceRepositoryInterface
	maxRetries int
	logger     *zap.Logger
	m          *metrics
}

func NewSequenceGenerator(repo repositories.SequenceRepositoryInterface, maxRetries int, logger *zap.Logger) SequenceGeneratorInterface {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	return &SequenceGenerator{repo: repo, maxRetries: maxRetries, logger: logger, m: getMetrics()}
}

func FormatCRFNumber(year, month int, serial uint64) string {
	return fmt.Sprintf("%04d/%02d/%03d", year, month, serial)
}

func (g *SequenceGenerator) Next(ctx context.Context, tx pgx.Tx, year, month int) (string, error) {
	counter, err := g.repo.LockScopeInTx(ctx, tx, year, month)
	if err != nil {
		return "", err
	}

	prefix := fmt.Sprintf("%04d/%02d/", year, month)
	existing, err := g.repo.MaxExistingSerialInTx(ctx, tx, prefix)
	if err != nil {
		return "", err
	}

	serial := max(counter, existing)
	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		serial++
		number := FormatCRFNumber(year, month, serial)

		taken, err := g.repo.NumberExistsInTx(ctx, tx, number)
		if err != nil {
			return "", err
		}
		if taken {
			g.m.sequenceCollisions.Inc()
			g.logger.Warn("номер заявки уже занят, пробуем следующий",
				zap.String("number", number), zap.Int("attempt", attempt))
			continue
		}

		if err := g.repo.SaveCounterInTx(ctx, tx, year, month, serial); err != nil {
			return "", err
		}
		return number, nil
	}

	g.m.sequenceExhausted.Inc()
	g.logger.Error("исчерпаны попытки выделить номер заявки",
		zap.String("scope", prefix), zap.Int("maxRetries", g.maxRetries))
	return "", fmt.Errorf("%s: %w", prefix, apperrors.ErrSequenceExhausted)
}
