package telegram

import (
	"context"
	"fmt"
	"html"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type ServiceInterface interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// BotAPI - часть tgbotapi.BotAPI, нужная для отправки.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Service отправляет HTML-сообщения через Bot API. Бот создается при первой
// отправке: недоступный Telegram не мешает старту приложения.
type Service struct {
	botToken string

	mu  sync.Mutex
	bot BotAPI
}

func NewService(botToken string) ServiceInterface {
	return &Service{botToken: botToken}
}

// NewServiceWithBot - для тестов и заранее созданного клиента.
func NewServiceWithBot(bot BotAPI) ServiceInterface {
	return &Service{bot: bot}
}

func (s *Service) client() (BotAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bot != nil {
		return s.bot, nil
	}
	bot, err := tgbotapi.NewBotAPI(s.botToken)
	if err != nil {
		return nil, fmt.Errorf("не удалось инициализировать Telegram-бота: %w", err)
	}
	s.bot = bot
	return s.bot, nil
}

func (s *Service) SendMessage(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	bot, err := s.client()
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("ошибка отправки сообщения в чат %d: %w", chatID, err)
	}
	return nil
}

// EscapeHTML экранирует пользовательский текст для ParseMode HTML.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}
