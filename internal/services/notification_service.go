package services

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"crf-system/internal/dto"
	"crf-system/internal/entities"
	"crf-system/internal/repositories"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/types"
)

type NotificationServiceInterface interface {
	Deliver(ctx context.Context, intent *entities.NotificationIntent) error
	ListFailed(ctx context.Context, filter types.Filter) ([]dto.FailedNotificationDTO, uint64, error)
}

// NotificationService доставляет намерения из outbox. Результат каждой
// попытки фиксируется в строке outbox; после maxAttempts строка становится DEAD.
type NotificationService struct {
	outboxRepo  repositories.OutboxRepositoryInterface
	directory   ActorDirectoryInterface
	dispatcher  NotificationDispatcher
	maxAttempts int
	maxBackoff  time.Duration
	logger      *zap.Logger
	m           *metrics

	rndMu sync.Mutex
	rnd   *rand.Rand
	now   func() time.Time
}

func NewNotificationService(
	outboxRepo repositories.OutboxRepositoryInterface,
	directory ActorDirectoryInterface,
	dispatcher NotificationDispatcher,
	maxAttempts int,
	maxBackoff time.Duration,
	logger *zap.Logger,
) *NotificationService {
	if maxAttempts <= 0 {
		maxAttempts = 8
	}
	if maxBackoff <= 0 {
		maxBackoff = 10 * time.Minute
	}
	return &NotificationService{
		outboxRepo:  outboxRepo,
		directory:   directory,
		dispatcher:  dispatcher,
		maxAttempts: maxAttempts,
		maxBackoff:  maxBackoff,
		logger:      logger,
		m:           getMetrics(),
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec
		now:         time.Now,
	}
}

func (s *NotificationService) Deliver(ctx context.Context, intent *entities.NotificationIntent) error {
	log := s.logger.With(
		zap.Uint64("outboxID", intent.ID),
		zap.String("eventID", intent.EventID.String()),
		zap.Uint64("crfID", intent.CRFID),
		zap.String("template", intent.TemplateKey),
	)

	recipients, err := s.directory.Resolve(ctx, intent.Recipients)
	if err != nil {
		return s.fail(ctx, intent, log, fmt.Errorf("не удалось определить получателей: %w", err))
	}
	recipients = withoutActor(recipients, intent.ActorID)

	if len(recipients) > 0 {
		payload := make(map[string]interface{}, len(intent.Context)+2)
		for k, v := range intent.Context {
			payload[k] = v
		}
		payload["event_id"] = intent.EventID.String()
		payload["crf_id"] = intent.CRFID

		if err := s.dispatcher.Send(ctx, recipients, intent.TemplateKey, payload); err != nil {
			return s.fail(ctx, intent, log, err)
		}
	} else {
		log.Debug("получателей нет, уведомление закрыто без отправки")
	}

	if err := s.outboxRepo.MarkSent(ctx, intent.ID); err != nil {
		log.Error("не удалось отметить уведомление доставленным", zap.Error(err))
		return err
	}
	log.Info("уведомление доставлено", zap.Int("recipients", len(recipients)))
	return nil
}

// fail фиксирует неудачную попытку и назначает следующую.
func (s *NotificationService) fail(ctx context.Context, intent *entities.NotificationIntent, log *zap.Logger, cause error) error {
	attempts := intent.Attempts + 1

	if attempts >= s.maxAttempts {
		s.m.deadTotal.Inc()
		log.Error("уведомление не доставлено, попытки исчерпаны",
			zap.Int("attempts", attempts), zap.Error(cause))
		if err := s.outboxRepo.MarkDead(ctx, intent.ID, attempts, cause.Error()); err != nil {
			log.Error("не удалось отметить уведомление как DEAD", zap.Error(err))
		}
	} else {
		s.rndMu.Lock()
		delay := backoff(attempts, s.maxBackoff) + jitter(s.rnd, time.Second)
		s.rndMu.Unlock()

		availableAt := s.now().Add(delay)
		log.Error("уведомление не доставлено, будет повтор",
			zap.Int("attempts", attempts),
			zap.Time("availableAt", availableAt),
			zap.Error(cause))
		if err := s.outboxRepo.MarkFailed(ctx, intent.ID, attempts, cause.Error(), availableAt); err != nil {
			log.Error("не удалось сохранить результат попытки", zap.Error(err))
		}
	}
	return fmt.Errorf("%w: %v", apperrors.ErrNotificationDispatch, cause)
}

func (s *NotificationService) ListFailed(ctx context.Context, filter types.Filter) ([]dto.FailedNotificationDTO, uint64, error) {
	items, total, err := s.outboxRepo.ListFailed(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	out := make([]dto.FailedNotificationDTO, 0, len(items))
	for i := range items {
		out = append(out, FailedNotificationToDTO(&items[i]))
	}
	return out, total, nil
}

// withoutActor - тот, кто совершил действие, о нем не уведомляется.
func withoutActor(users []entities.User, actorID *uint64) []entities.User {
	if actorID == nil {
		return users
	}
	out := users[:0:0]
	for _, u := range users {
		if u.ID != *actorID {
			out = append(out, u)
		}
	}
	return out
}
