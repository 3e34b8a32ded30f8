package websocket

import "time"

// Envelope - конверт сообщения: фронтенд выбирает обработчик по Type.
type Envelope struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// CRFNotification - уведомление "колокольчика" о событии по заявке.
type CRFNotification struct {
	EventID     string    `json:"eventId"`
	CRFID       uint64    `json:"crfId"`
	CRFNumber   string    `json:"crfNumber"`
	TemplateKey string    `json:"templateKey"`
	Status      int       `json:"status"`
	StatusLabel string    `json:"statusLabel"`
	ActorName   string    `json:"actorName,omitempty"`
	Message     string    `json:"message"`
	Link        string    `json:"link"`
	CreatedAt   time.Time `json:"createdAt"`
}
