package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"crf-system/internal/repositories"
)

// NotificationRelay периодически забирает из outbox то, что не доставил
// слушатель шины: упавшие попытки, у которых подошло время, и зависшие PENDING.
type NotificationRelay struct {
	outboxRepo repositories.OutboxRepositoryInterface
	service    NotificationServiceInterface
	interval   time.Duration
	batchSize  int
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

func NewNotificationRelay(
	outboxRepo repositories.OutboxRepositoryInterface,
	service NotificationServiceInterface,
	interval time.Duration,
	batchSize int,
	staleAfter time.Duration,
	logger *zap.Logger,
) *NotificationRelay {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	return &NotificationRelay{
		outboxRepo: outboxRepo,
		service:    service,
		interval:   interval,
		batchSize:  batchSize,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Run работает до отмены ctx.
func (r *NotificationRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("relay уведомлений запущен", zap.Duration("interval", r.interval))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("relay уведомлений остановлен")
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := r.ProcessOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.logger.Warn("ошибка обработки outbox", zap.Error(err))
		}
	}
}

// ProcessOnce - один проход. Возвращает число взятых в работу строк.
func (r *NotificationRelay) ProcessOnce(ctx context.Context) (int, error) {
	now := r.now()
	intents, err := r.outboxRepo.ClaimDue(ctx, now, now.Add(-r.staleAfter), r.batchSize)
	if err != nil {
		return 0, err
	}

	for i := range intents {
		// Ошибка доставки уже записана в outbox и в лог
		_ = r.service.Deliver(ctx, &intents[i])
	}
	if len(intents) > 0 {
		r.logger.Debug("relay обработал уведомления", zap.Int("count", len(intents)))
	}
	return len(intents), nil
}
