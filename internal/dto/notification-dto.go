package dto

import "github.com/google/uuid"

// FailedNotificationDTO - строка операторского списка недоставленных уведомлений.
type FailedNotificationDTO struct {
	ID          uint64    `json:"id"`
	EventID     uuid.UUID `json:"event_id"`
	CRFID       uint64    `json:"crf_id"`
	TemplateKey string    `json:"template_key"`
	Status      string    `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   *string   `json:"last_error,omitempty"`
	AvailableAt string    `json:"available_at"`
	CreatedAt   string    `json:"created_at"`
}
