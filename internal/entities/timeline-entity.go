package entities

import (
	"time"

	"github.com/google/uuid"

	"crf-system/pkg/constants"
)

// TimelineEntry - неизменяемая запись аудита заявки.
type TimelineEntry struct {
	ID          uint64              `json:"id" db:"id"`
	CRFID       uint64              `json:"crf_id" db:"crf_id"`
	Status      constants.CRFStatus `json:"status" db:"status"`
	StatusLabel string              `json:"status_label" db:"status_label"`
	ActionKind  string              `json:"action_kind" db:"action_kind"`
	Remark      *string             `json:"remark,omitempty" db:"remark"`
	ActorID     *uint64             `json:"actor_id,omitempty" db:"actor_id"` // nil - системная запись
	TxID        *uuid.UUID          `json:"tx_id,omitempty" db:"tx_id"`
	CreatedAt   time.Time           `json:"created_at" db:"created_at"`

	ActorName *string `json:"actor_name,omitempty" db:"-"`
}
