package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"crf-system/internal/entities"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/telegram"
	"crf-system/pkg/websocket"
)

// NotificationDispatcher доставляет одно уведомление группе получателей по своему каналу.
type NotificationDispatcher interface {
	Channel() string
	Send(ctx context.Context, recipients []entities.User, templateKey string, payload map[string]interface{}) error
}

// LogDispatcher - канал для разработки: уведомления только пишутся в лог.
type LogDispatcher struct {
	renderer *NotificationRenderer
	logger   *zap.Logger
}

func NewLogDispatcher(renderer *NotificationRenderer, logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{renderer: renderer, logger: logger}
}

func (d *LogDispatcher) Channel() string { return "log" }

func (d *LogDispatcher) Send(ctx context.Context, recipients []entities.User, templateKey string, payload map[string]interface{}) error {
	n := d.renderer.Render(templateKey, payload)
	for _, u := range recipients {
		d.logger.Info("Уведомление",
			zap.Uint64("userID", u.ID),
			zap.String("template", templateKey),
			zap.String("text", n.Body),
		)
	}
	return nil
}

type TelegramDispatcher struct {
	tg       telegram.ServiceInterface
	renderer *NotificationRenderer
	logger   *zap.Logger
}

func NewTelegramDispatcher(tg telegram.ServiceInterface, renderer *NotificationRenderer, logger *zap.Logger) *TelegramDispatcher {
	return &TelegramDispatcher{tg: tg, renderer: renderer, logger: logger}
}

func (d *TelegramDispatcher) Channel() string { return "telegram" }

// Send пропускает пользователей без привязанного чата.
func (d *TelegramDispatcher) Send(ctx context.Context, recipients []entities.User, templateKey string, payload map[string]interface{}) error {
	text := d.renderer.Render(templateKey, payload).TelegramHTML()

	var errs []error
	for _, u := range recipients {
		if !u.TelegramChatID.Valid || u.TelegramChatID.Int64 == 0 {
			continue
		}
		if err := d.tg.SendMessage(ctx, u.TelegramChatID.Int64, text); err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", u.ID, err))
		}
	}
	return errors.Join(errs...)
}

// UserMessenger - часть websocket.Hub, нужная для отправки.
type UserMessenger interface {
	SendMessageToUser(userID uint64, payload interface{}, messageType string) (int, error)
}

type WebSocketDispatcher struct {
	hub      UserMessenger
	renderer *NotificationRenderer
	logger   *zap.Logger
	now      func() time.Time
}

func NewWebSocketDispatcher(hub UserMessenger, renderer *NotificationRenderer, logger *zap.Logger) *WebSocketDispatcher {
	return &WebSocketDispatcher{hub: hub, renderer: renderer, logger: logger, now: time.Now}
}

func (d *WebSocketDispatcher) Channel() string { return "websocket" }

// Send - пользователь не в сети не считается ошибкой.
func (d *WebSocketDispatcher) Send(ctx context.Context, recipients []entities.User, templateKey string, payload map[string]interface{}) error {
	n := d.renderer.Render(templateKey, payload)
	message := websocket.CRFNotification{
		EventID:     n.EventID,
		CRFID:       n.CRFID,
		CRFNumber:   n.CRFNumber,
		TemplateKey: templateKey,
		Status:      n.Status,
		StatusLabel: n.StatusLabel,
		ActorName:   n.ActorName,
		Message:     n.Title,
		Link:        fmt.Sprintf("/crfs/%d", n.CRFID),
		CreatedAt:   d.now().UTC(),
	}

	var errs []error
	for _, u := range recipients {
		delivered, err := d.hub.SendMessageToUser(u.ID, message, "crf_notification")
		if err != nil {
			errs = append(errs, fmt.Errorf("user %d: %w", u.ID, err))
			continue
		}
		if delivered == 0 {
			d.logger.Debug("пользователь не в сети, websocket-уведомление пропущено", zap.Uint64("userID", u.ID))
		}
	}
	return errors.Join(errs...)
}

// MultiDispatcher рассылает по всем каналам. Ошибка любого канала - ошибка доставки,
// но остальные каналы все равно отрабатывают.
type MultiDispatcher struct {
	dispatchers []NotificationDispatcher
	logger      *zap.Logger
	m           *metrics
}

func NewMultiDispatcher(logger *zap.Logger, dispatchers ...NotificationDispatcher) *MultiDispatcher {
	return &MultiDispatcher{dispatchers: dispatchers, logger: logger, m: getMetrics()}
}

func (d *MultiDispatcher) Channel() string { return "multi" }

func (d *MultiDispatcher) Send(ctx context.Context, recipients []entities.User, templateKey string, payload map[string]interface{}) error {
	var errs []error
	for _, dispatcher := range d.dispatchers {
		start := time.Now()
		err := dispatcher.Send(ctx, recipients, templateKey, payload)
		result := "success"
		if err != nil {
			result = "error"
			errs = append(errs, fmt.Errorf("%s: %w", dispatcher.Channel(), err))
			d.logger.Error("ошибка доставки уведомления",
				zap.String("channel", dispatcher.Channel()),
				zap.String("template", templateKey),
				zap.Error(err),
			)
		}
		d.m.dispatchTotal.WithLabelValues(dispatcher.Channel(), result).Inc()
		d.m.dispatchLatency.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", apperrors.ErrNotificationDispatch, errors.Join(errs...))
	}
	return nil
}
