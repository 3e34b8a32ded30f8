package services

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"crf-system/internal/entities"
	"crf-system/internal/repositories"
)

type TimelineRecorderInterface interface {
	Append(ctx context.Context, tx pgx.Tx, crf *entities.CRF, actionKind string, remark *string, actorID *uint64, txID uuid.UUID) (*entities.TimelineEntry, error)
	List(ctx context.Context, crfID uint64) ([]entities.TimelineEntry, error)
}

// TimelineRecorder пишет аудит заявки. Записи только добавляются.
type TimelineRecorder struct {
	repo   repositories.TimelineRepositoryInterface
	logger *zap.Logger
}

func NewTimelineRecorder(repo repositories.TimelineRepositoryInterface, logger *zap.Logger) TimelineRecorderInterface {
	return &TimelineRecorder{repo: repo, logger: logger}
}

// Append фиксирует текущий статус заявки. actorID == nil - системная запись.
func (r *TimelineRecorder) Append(ctx context.Context, tx pgx.Tx, crf *entities.CRF, actionKind string, remark *string, actorID *uint64, txID uuid.UUID) (*entities.TimelineEntry, error) {
	entry := &entities.TimelineEntry{
		CRFID:       crf.ID,
		Status:      crf.Status,
		StatusLabel: crf.Status.Label(),
		ActionKind:  actionKind,
		Remark:      remark,
		ActorID:     actorID,
		TxID:        &txID,
	}
	if err := r.repo.CreateInTx(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *TimelineRecorder) List(ctx context.Context, crfID uint64) ([]entities.TimelineEntry, error) {
	return r.repo.FindByCRFID(ctx, crfID)
}
