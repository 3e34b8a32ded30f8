package events

import (
	"crf-system/internal/entities"
)

const CRFTransitioned = "crf.transitioned"

// CRFTransitionedEvent публикуется после коммита перехода или создания заявки.
// Intent уже сохранен в outbox, поэтому потеря события не теряет уведомление.
type CRFTransitionedEvent struct {
	Intent entities.NotificationIntent
}

func (e CRFTransitionedEvent) Name() string {
	return CRFTransitioned
}
