package listeners

import (
	"context"

	"go.uber.org/zap"

	"crf-system/internal/events"
	"crf-system/internal/services"
	"crf-system/pkg/eventbus"
)

// NotificationListener доставляет уведомление сразу после коммита перехода.
// Если доставка не удалась, строку outbox подберет NotificationRelay.
type NotificationListener struct {
	notificationService services.NotificationServiceInterface
	logger              *zap.Logger
}

func NewNotificationListener(notificationService services.NotificationServiceInterface, logger *zap.Logger) *NotificationListener {
	return &NotificationListener{
		notificationService: notificationService,
		logger:              logger,
	}
}

func (l *NotificationListener) Register(bus *eventbus.Bus) {
	bus.Subscribe(events.CRFTransitioned, l.handleCRFTransitioned)
	l.logger.Info("NotificationListener подписан на событие", zap.String("event", events.CRFTransitioned))
}

func (l *NotificationListener) handleCRFTransitioned(ctx context.Context, event eventbus.Event) error {
	e, ok := event.(events.CRFTransitionedEvent)
	if !ok {
		return nil
	}
	intent := e.Intent
	return l.notificationService.Deliver(ctx, &intent)
}
