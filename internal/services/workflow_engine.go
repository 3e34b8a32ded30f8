package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"crf-system/config"
	"crf-system/internal/authz"
	"crf-system/internal/dto"
	"crf-system/internal/entities"
	"crf-system/internal/events"
	"crf-system/internal/repositories"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/eventbus"
	"crf-system/pkg/filestorage"
	"crf-system/pkg/types"
)

const TemplateCRFCreated = "crf.created"

// TemplateKeyFor - ключ шаблона уведомления для действия.
func TemplateKeyFor(action constants.Action) string {
	return "crf." + strings.ToLower(string(action))
}

type UploadedFile struct {
	FileName string
	MimeType string
	Size     int64
	Content  io.Reader
}

type CreateRequestInput struct {
	ActorID    uint64
	CategoryID uint64
	FactorID   *uint64
	Issue      string
	Reason     *string
	Extension  string
	Files      []UploadedFile
}

// ActionPayload - данные действия. Какие поля обязательны, зависит от действия.
type ActionPayload struct {
	Reason     *string
	AssigneeID *uint64
	Remark     *string
	FactorID   *uint64
}

type EventPublisher interface {
	Publish(ctx context.Context, event eventbus.Event)
}

type WorkflowEngineInterface interface {
	CreateRequest(ctx context.Context, in CreateRequestInput) (*entities.CRF, error)
	ApplyAction(ctx context.Context, crfID uint64, action constants.Action, actorID uint64, payload ActionPayload) (*entities.CRF, error)
	ListVisible(ctx context.Context, actorID uint64, filter types.Filter) ([]dto.CRFSummaryDTO, uint64, error)
	GetRequest(ctx context.Context, actorID, crfID uint64) (*dto.CRFDetailDTO, error)
	GetTimeline(ctx context.Context, crfID uint64) ([]entities.TimelineEntry, error)
	ListAttachments(ctx context.Context, actorID, crfID uint64) ([]entities.Attachment, error)
	WithdrawRequest(ctx context.Context, actorID, crfID uint64) error
}

type WorkflowEngine struct {
	txManager      repositories.TxManagerInterface
	crfRepo        repositories.CRFRepositoryInterface
	attachmentRepo repositories.AttachmentRepositoryInterface
	outboxRepo     repositories.OutboxRepositoryInterface
	referenceRepo  repositories.ReferenceRepositoryInterface
	sequence       SequenceGeneratorInterface
	timeline       TimelineRecorderInterface
	directory      ActorDirectoryInterface
	router         *authz.Router
	fileStorage    filestorage.FileStorageInterface
	publisher      EventPublisher
	logger         *zap.Logger
	m              *metrics

	// Now подменяется в тестах
	Now func() time.Time
}

func NewWorkflowEngine(
	txManager repositories.TxManagerInterface,
	crfRepo repositories.CRFRepositoryInterface,
	attachmentRepo repositories.AttachmentRepositoryInterface,
	outboxRepo repositories.OutboxRepositoryInterface,
	referenceRepo repositories.ReferenceRepositoryInterface,
	sequence SequenceGeneratorInterface,
	timeline TimelineRecorderInterface,
	directory ActorDirectoryInterface,
	router *authz.Router,
	fileStorage filestorage.FileStorageInterface,
	publisher EventPublisher,
	logger *zap.Logger,
) *WorkflowEngine {
	return &WorkflowEngine{
		txManager:      txManager,
		crfRepo:        crfRepo,
		attachmentRepo: attachmentRepo,
		outboxRepo:     outboxRepo,
		referenceRepo:  referenceRepo,
		sequence:       sequence,
		timeline:       timeline,
		directory:      directory,
		router:         router,
		fileStorage:    fileStorage,
		publisher:      publisher,
		logger:         logger,
		m:              getMetrics(),
		Now:            time.Now,
	}
}

// loadActor - пользователь, от имени которого выполняется операция.
// Неизвестный пользователь не может ничего.
func (e *WorkflowEngine) loadActor(ctx context.Context, actorID uint64) (*entities.User, error) {
	actor, err := e.directory.FindActor(ctx, actorID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("пользователь %d: %w", actorID, apperrors.ErrUnauthorized)
		}
		return nil, err
	}
	return actor, nil
}

func (e *WorkflowEngine) CreateRequest(ctx context.Context, in CreateRequestInput) (*entities.CRF, error) {
	actor, err := e.loadActor(ctx, in.ActorID)
	if err != nil {
		return nil, err
	}
	if actor.DepartmentID == 0 {
		return nil, apperrors.NewInvalidInputError("пользователь не привязан к подразделению")
	}
	if strings.TrimSpace(in.Issue) == "" {
		return nil, apperrors.NewInvalidInputError("описание проблемы обязательно")
	}

	category, err := e.referenceRepo.FindCategoryByID(ctx, in.CategoryID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewInvalidInputError("категория %d не найдена", in.CategoryID)
		}
		return nil, err
	}
	if in.FactorID != nil {
		if err := e.checkFactor(ctx, *in.FactorID, category.ID); err != nil {
			return nil, err
		}
	}

	extension := in.Extension
	if extension == "" {
		extension = "-"
	}

	crf := &entities.CRF{
		RequesterID:            actor.ID,
		RequesterName:          actor.Fio,
		RequesterNationalID:    actor.NationalID,
		RequesterDesignation:   actor.Designation,
		RequesterExtension:     extension,
		DepartmentID:           actor.DepartmentID,
		CategoryID:             category.ID,
		FactorID:               in.FactorID,
		RequiresDeputyApproval: category.RequiresDeputyApproval,
		Issue:                  strings.TrimSpace(in.Issue),
		Reason:                 in.Reason,
		Status:                 constants.StatusCreated,
	}

	// Файлы пишутся до транзакции; если она не прошла, удаляем их
	saved := make([]entities.Attachment, 0, len(in.Files))
	prefix := config.UploadContexts[constants.UploadContextCRFAttachment.String()].PathPrefix
	for _, f := range in.Files {
		path, err := e.fileStorage.Save(f.Content, f.FileName, prefix)
		if err != nil {
			e.cleanupFiles(saved)
			return nil, fmt.Errorf("не удалось сохранить файл %s: %w", f.FileName, err)
		}
		saved = append(saved, entities.Attachment{
			UploadedBy: actor.ID,
			FileName:   f.FileName,
			FilePath:   path,
			MimeType:   f.MimeType,
			FileSize:   f.Size,
		})
	}

	var intent *entities.NotificationIntent
	now := e.Now()
	err = e.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		number, err := e.sequence.Next(ctx, tx, now.Year(), int(now.Month()))
		if err != nil {
			return err
		}
		crf.CRFNumber = number

		if err := e.crfRepo.CreateInTx(ctx, tx, crf); err != nil {
			return err
		}

		txID := uuid.New()
		if _, err := e.timeline.Append(ctx, tx, crf, constants.TimelineStatusChange, nil, &actor.ID, txID); err != nil {
			return err
		}

		for i := range saved {
			saved[i].CRFID = crf.ID
			if err := e.attachmentRepo.CreateInTx(ctx, tx, &saved[i]); err != nil {
				return err
			}
		}

		intent = e.newIntent(crf, TemplateCRFCreated, actor, e.router.CreationRecipients(crf), nil)
		return e.outboxRepo.EnqueueInTx(ctx, tx, intent)
	})
	if err != nil {
		e.cleanupFiles(saved)
		return nil, err
	}

	e.logger.Info("Создана заявка",
		zap.Uint64("crfID", crf.ID),
		zap.String("number", crf.CRFNumber),
		zap.Uint64("requesterID", actor.ID),
		zap.Int("attachments", len(saved)),
	)
	e.m.transitionsTotal.WithLabelValues(string(constants.ActionCreate), crf.Status.Label()).Inc()
	e.publish(ctx, intent)
	return crf, nil
}

func (e *WorkflowEngine) checkFactor(ctx context.Context, factorID, categoryID uint64) error {
	factor, err := e.referenceRepo.FindFactorByID(ctx, factorID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.NewInvalidInputError("фактор %d не найден", factorID)
		}
		return err
	}
	if factor.CategoryID != categoryID {
		return apperrors.NewInvalidInputError("фактор %d не относится к категории заявки", factorID)
	}
	return nil
}

func (e *WorkflowEngine) cleanupFiles(saved []entities.Attachment) {
	for _, a := range saved {
		if err := e.fileStorage.Delete(a.FilePath); err != nil {
			e.logger.Warn("не удалось удалить файл", zap.String("path", a.FilePath), zap.Error(err))
		}
	}
}

// ApplyAction выполняет действие над заявкой. Переход, запись таймлайна и
// намерение уведомить сохраняются одной транзакцией. При гонке версий
// заявка перечитывается и действие повторяется один раз.
func (e *WorkflowEngine) ApplyAction(ctx context.Context, crfID uint64, action constants.Action, actorID uint64, payload ActionPayload) (*entities.CRF, error) {
	if !constants.IsApplicableAction(string(action)) {
		return nil, apperrors.NewInvalidInputError("неизвестное действие %s", action)
	}

	actor, err := e.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}

	var target *entities.User
	if authz.NeedsTarget(action) && payload.AssigneeID != nil {
		target, err = e.directory.FindActor(ctx, *payload.AssigneeID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NewInvalidInputError("назначаемый пользователь %d не найден", *payload.AssigneeID)
			}
			return nil, err
		}
	}

	for attempt := 1; ; attempt++ {
		crf, intent, err := e.applyOnce(ctx, crfID, action, actor, target, payload)
		if err == nil {
			if intent != nil {
				e.publish(ctx, intent)
			}
			return crf, nil
		}
		if errors.Is(err, apperrors.ErrPersistenceConflict) {
			e.m.conflictsTotal.Inc()
			if attempt < 2 {
				e.logger.Info("конфликт версий, повторяем действие",
					zap.Uint64("crfID", crfID), zap.String("action", string(action)))
				continue
			}
		}
		return nil, err
	}
}

// applyOnce - одна попытка. intent == nil означает, что заявка не изменилась.
func (e *WorkflowEngine) applyOnce(
	ctx context.Context,
	crfID uint64,
	action constants.Action,
	actor, target *entities.User,
	payload ActionPayload,
) (*entities.CRF, *entities.NotificationIntent, error) {
	var (
		result   *entities.CRF
		intent   *entities.NotificationIntent
		ruleName string
		from     constants.CRFStatus
	)

	err := e.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		current, err := e.crfRepo.FindByIDInTx(ctx, tx, crfID)
		if err != nil {
			return err
		}

		rule, err := e.router.Authorize(authz.Context{Actor: actor, CRF: current, Target: target}, action)
		if err != nil {
			return e.denied(actor, current, action, target, err)
		}

		if err := e.validatePayload(ctx, rule, current, payload); err != nil {
			return err
		}

		next := current.Clone()
		kind, remark, changed := e.applyEffects(rule, next, actor, target, payload)
		if !changed {
			result = current
			return nil
		}

		if err := e.crfRepo.UpdateInTx(ctx, tx, next); err != nil {
			return err
		}

		txID := uuid.New()
		if _, err := e.timeline.Append(ctx, tx, next, kind, remark, &actor.ID, txID); err != nil {
			return err
		}

		intent = e.newIntent(next, TemplateKeyFor(action), actor, e.router.Recipients(rule.Notify, next), remark)
		intent.Context["action"] = string(action)
		intent.Context["previous_status"] = int(current.Status)
		if err := e.outboxRepo.EnqueueInTx(ctx, tx, intent); err != nil {
			return err
		}

		result = next
		ruleName = rule.Name
		from = current.Status
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if intent != nil {
		e.logger.Info("Действие над заявкой выполнено",
			zap.Uint64("crfID", result.ID),
			zap.String("action", string(action)),
			zap.String("rule", ruleName),
			zap.Int("from", int(from)),
			zap.Int("to", int(result.Status)),
			zap.Uint64("actorID", actor.ID),
		)
		e.m.transitionsTotal.WithLabelValues(string(action), result.Status.Label()).Inc()
	}
	return result, intent, nil
}

// denied логирует и считает отказ. Для назначений без assignee_id
// возвращает понятное сообщение вместо отказа по роли цели.
func (e *WorkflowEngine) denied(actor *entities.User, crf *entities.CRF, action constants.Action, target *entities.User, err error) error {
	var inputErr *apperrors.InvalidInputError
	switch {
	case errors.Is(err, apperrors.ErrUnauthorized):
		e.logger.Warn("Попытка недопустимого действия",
			zap.Uint64("actorID", actor.ID),
			zap.Strings("roles", actor.Roles),
			zap.Uint64("crfID", crf.ID),
			zap.Int("status", int(crf.Status)),
			zap.String("action", string(action)),
		)
		e.m.deniedTotal.WithLabelValues(string(action), "unauthorized").Inc()
	case errors.Is(err, apperrors.ErrInvalidTransition):
		e.m.deniedTotal.WithLabelValues(string(action), "invalid_transition").Inc()
	case errors.As(err, &inputErr):
		e.m.deniedTotal.WithLabelValues(string(action), "invalid_input").Inc()
		if target == nil {
			return apperrors.NewInvalidInputError("assignee_id обязателен для действия %s", action)
		}
	}
	return err
}

func (e *WorkflowEngine) validatePayload(ctx context.Context, rule *authz.Rule, crf *entities.CRF, p ActionPayload) error {
	if rule.HasEffect(authz.EffectStampRejection) && isBlank(p.Reason) {
		return apperrors.NewInvalidInputError("причина отказа обязательна")
	}
	if rule.HasEffect(authz.EffectSetRemark) && isBlank(p.Remark) {
		return apperrors.NewInvalidInputError("текст примечания обязателен")
	}
	if rule.HasEffect(authz.EffectSetFactor) {
		if p.FactorID == nil {
			return apperrors.NewInvalidInputError("factor_id обязателен")
		}
		return e.checkFactor(ctx, *p.FactorID, crf.CategoryID)
	}
	return nil
}

// applyEffects меняет next по правилу. Возвращает вид записи таймлайна,
// ее примечание и признак того, что заявка действительно изменилась.
func (e *WorkflowEngine) applyEffects(rule *authz.Rule, next *entities.CRF, actor, target *entities.User, p ActionPayload) (string, *string, bool) {
	now := e.Now()
	kind := constants.TimelineStatusChange
	remark := trimmed(p.Remark)

	for _, effect := range rule.Effects {
		switch effect {
		case authz.EffectStampDeptApproval:
			next.DeptHeadApprovedBy = &actor.ID
			next.DeptHeadApprovedAt = &now
		case authz.EffectStampDeputyApproval:
			next.DeputyApprovedBy = &actor.ID
			next.DeputyApprovedAt = &now
		case authz.EffectStampITHeadApproval:
			next.ITHeadApprovedBy = &actor.ID
			next.ITHeadApprovedAt = &now
		case authz.EffectStampRejection:
			next.RejectionReason = trimmed(p.Reason)
			next.RejectedBy = &actor.ID
			next.RejectedAt = &now
			remark = next.RejectionReason
		case authz.EffectStampRedirect:
			next.RedirectReason = trimmed(p.Reason)
			next.RedirectedBy = &actor.ID
			next.RedirectedAt = &now
			if next.RedirectReason != nil {
				remark = next.RedirectReason
			}
		case authz.EffectSetTechnician:
			id := target.ID
			next.AssignedTechnicianID = &id
		case authz.EffectSetVendorAdmin:
			id := target.ID
			next.VendorAdminID = &id
		case authz.EffectClearVendorAdmin:
			next.VendorAdminID = nil
		case authz.EffectSetRemark:
			if !isBlank(next.Remark) && *next.Remark == *remark {
				return "", nil, false
			}
			if isBlank(next.Remark) {
				kind = constants.TimelineRemarkAdded
			} else {
				kind = constants.TimelineRemarkUpdated
			}
			next.Remark = remark
		case authz.EffectSetFactor:
			if next.FactorID != nil && *next.FactorID == *p.FactorID {
				return "", nil, false
			}
			id := *p.FactorID
			next.FactorID = &id
			kind = constants.TimelineFactorUpdated
		}
	}

	if !rule.KeepsStatus() {
		next.Status = rule.Next
	}
	return kind, remark, true
}

func (e *WorkflowEngine) newIntent(crf *entities.CRF, templateKey string, actor *entities.User, recipients []entities.RecipientQuery, remark *string) *entities.NotificationIntent {
	ctx := map[string]interface{}{
		"crf_id":       crf.ID,
		"crf_number":   crf.CRFNumber,
		"status":       int(crf.Status),
		"status_label": crf.Status.Label(),
		"actor_name":   actor.Fio,
		"issue":        crf.Issue,
	}
	if remark != nil {
		ctx["remark"] = *remark
	}
	actorID := actor.ID
	return &entities.NotificationIntent{
		EventID:     uuid.New(),
		CRFID:       crf.ID,
		TemplateKey: templateKey,
		Recipients:  recipients,
		Context:     ctx,
		ActorID:     &actorID,
		Status:      constants.OutboxStatusPending,
	}
}

func (e *WorkflowEngine) publish(ctx context.Context, intent *entities.NotificationIntent) {
	if e.publisher == nil || intent == nil {
		return
	}
	e.publisher.Publish(ctx, events.CRFTransitionedEvent{Intent: *intent})
}

func (e *WorkflowEngine) ListVisible(ctx context.Context, actorID uint64, filter types.Filter) ([]dto.CRFSummaryDTO, uint64, error) {
	actor, err := e.loadActor(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}

	items, total, err := e.crfRepo.ListVisible(ctx, e.router.Visibility(actor).Sqlizer(), filter)
	if err != nil {
		return nil, 0, err
	}

	out := make([]dto.CRFSummaryDTO, 0, len(items))
	for i := range items {
		out = append(out, crfListItemToDTO(&items[i]))
	}
	return out, total, nil
}

// findVisible - заявка, которую пользователь имеет право видеть.
// Невидимая заявка неотличима от несуществующей.
func (e *WorkflowEngine) findVisible(ctx context.Context, actor *entities.User, crfID uint64) (*entities.CRF, error) {
	crf, err := e.crfRepo.FindByID(ctx, crfID)
	if err != nil {
		return nil, err
	}
	if !e.router.CanView(actor, crf) {
		return nil, apperrors.ErrNotFound
	}
	return crf, nil
}

func (e *WorkflowEngine) GetRequest(ctx context.Context, actorID, crfID uint64) (*dto.CRFDetailDTO, error) {
	actor, err := e.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	crf, err := e.findVisible(ctx, actor, crfID)
	if err != nil {
		return nil, err
	}

	detail := CRFToDetailDTO(crf)
	for _, a := range e.router.AvailableActions(actor, crf) {
		detail.AvailableActions = append(detail.AvailableActions, string(a))
	}
	if crf.Status == constants.StatusCreated && crf.RequesterID == actor.ID {
		detail.CanWithdraw = true
	}
	return detail, nil
}

func (e *WorkflowEngine) GetTimeline(ctx context.Context, crfID uint64) ([]entities.TimelineEntry, error) {
	return e.timeline.List(ctx, crfID)
}

func (e *WorkflowEngine) ListAttachments(ctx context.Context, actorID, crfID uint64) ([]entities.Attachment, error) {
	actor, err := e.loadActor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if _, err := e.findVisible(ctx, actor, crfID); err != nil {
		return nil, err
	}
	return e.attachmentRepo.FindAllByCRFID(ctx, crfID)
}

// WithdrawRequest - заявитель отзывает свою заявку, пока ее никто не рассмотрел.
// Заявка удаляется вместе с таймлайном и вложениями.
func (e *WorkflowEngine) WithdrawRequest(ctx context.Context, actorID, crfID uint64) error {
	actor, err := e.loadActor(ctx, actorID)
	if err != nil {
		return err
	}

	var attachments []entities.Attachment
	err = e.txManager.RunInTransaction(ctx, func(tx pgx.Tx) error {
		crf, err := e.crfRepo.FindByIDInTx(ctx, tx, crfID)
		if err != nil {
			return err
		}
		if crf.RequesterID != actor.ID {
			if !e.router.CanView(actor, crf) {
				return apperrors.ErrNotFound
			}
			e.m.deniedTotal.WithLabelValues("WITHDRAW", "unauthorized").Inc()
			return fmt.Errorf("отзыв чужой заявки: %w", apperrors.ErrUnauthorized)
		}
		if crf.Status != constants.StatusCreated {
			return fmt.Errorf("отзыв из статуса %d: %w", crf.Status, apperrors.ErrInvalidTransition)
		}

		attachments, err = e.attachmentRepo.FindAllByCRFIDInTx(ctx, tx, crfID)
		if err != nil {
			return err
		}
		return e.crfRepo.DeleteInTx(ctx, tx, crfID, crf.Version)
	})
	if err != nil {
		return err
	}

	e.cleanupFiles(attachments)
	e.logger.Info("Заявка отозвана заявителем", zap.Uint64("crfID", crfID), zap.Uint64("actorID", actorID))
	return nil
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func trimmed(s *string) *string {
	if isBlank(s) {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
