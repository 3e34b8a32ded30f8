package entities

import (
	"time"

	"github.com/google/uuid"
)

// RecipientQuery - запрос на круг получателей: конкретный пользователь
// или все держатели роли в подразделении.
type RecipientQuery struct {
	UserID       *uint64 `json:"user_id,omitempty"`
	Role         string  `json:"role,omitempty"`
	DepartmentID *uint64 `json:"department_id,omitempty"`
}

// NotificationIntent - намерение уведомить, записанное в outbox в той же транзакции, что и переход.
type NotificationIntent struct {
	ID          uint64                 `json:"id" db:"id"`
	EventID     uuid.UUID              `json:"event_id" db:"event_id"`
	CRFID       uint64                 `json:"crf_id" db:"crf_id"`
	TemplateKey string                 `json:"template_key" db:"template_key"`
	Recipients  []RecipientQuery       `json:"recipients" db:"recipients"`
	Context     map[string]interface{} `json:"context" db:"context"`
	ActorID     *uint64                `json:"actor_id,omitempty" db:"actor_id"`

	Status      string     `json:"status" db:"status"`
	Attempts    int        `json:"attempts" db:"attempts"`
	LastError   *string    `json:"last_error,omitempty" db:"last_error"`
	AvailableAt time.Time  `json:"available_at" db:"available_at"`
	LockedAt    *time.Time `json:"locked_at,omitempty" db:"locked_at"`
	SentAt      *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
}
