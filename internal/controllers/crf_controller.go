package controllers

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crf-system/internal/dto"
	"crf-system/internal/services"
	"crf-system/pkg/constants"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/utils"
)

// Поле multipart-формы с файлами заявки; можно передать несколько.
const attachmentFormField = "file"

type CRFController struct {
	engine services.WorkflowEngineInterface
	logger *zap.Logger
}

func NewCRFController(engine services.WorkflowEngineInterface, logger *zap.Logger) *CRFController {
	return &CRFController{engine: engine, logger: logger}
}

func (c *CRFController) parseID(ctx echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return 0, apperrors.NewHttpError(
			http.StatusBadRequest,
			"Неверный ID",
			err,
			map[string]interface{}{"param": ctx.Param("id")},
		)
	}
	return id, nil
}

func (c *CRFController) GetCRFs(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	actorID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	res, total, err := c.engine.ListVisible(reqCtx, actorID, filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявки успешно получены", http.StatusOK, total)
}

func (c *CRFController) FindCRF(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	actorID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	id, err := c.parseID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res, err := c.engine.GetRequest(reqCtx, actorID, id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, res, "Заявка успешно найдена", http.StatusOK)
}

func (c *CRFController) CreateCRF(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	actorID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	dataString := ctx.FormValue("data")
	if dataString == "" {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Поле 'data' с JSON обязательно", apperrors.ErrBadRequest, nil),
			c.logger,
		)
	}

	var req dto.CreateCRFDTO
	if err := json.Unmarshal([]byte(dataString), &req); err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неверный JSON в 'data'", err, map[string]interface{}{"data": dataString}),
			c.logger,
		)
	}
	if err := ctx.Validate(&req); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	files, closeFiles, err := c.openAttachments(ctx)
	defer closeFiles()
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	in := services.CreateRequestInput{
		ActorID:    actorID,
		CategoryID: req.CategoryID,
		FactorID:   req.FactorID.Ptr(),
		Issue:      req.Issue,
		Reason:     req.Reason.Ptr(),
		Extension:  req.Extension,
		Files:      files,
	}
	crf, err := c.engine.CreateRequest(reqCtx, in)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	c.logger.Info("CreateCRF: заявка создана", zap.Uint64("crfID", crf.ID), zap.String("number", crf.CRFNumber))
	return utils.SuccessResponse(ctx, services.CRFToDetailDTO(crf), "Заявка успешно создана", http.StatusCreated)
}

// openAttachments проверяет и открывает файлы формы. closeFiles нужно вызвать всегда.
func (c *CRFController) openAttachments(ctx echo.Context) ([]services.UploadedFile, func(), error) {
	var opened []multipart.File
	closeFiles := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, closeFiles, nil
		}
		return nil, closeFiles, apperrors.NewHttpError(http.StatusBadRequest, "Ошибка чтения формы", err, nil)
	}

	headers := form.File[attachmentFormField]
	out := make([]services.UploadedFile, 0, len(headers))
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			return nil, closeFiles, apperrors.NewHttpError(http.StatusInternalServerError, "Ошибка при получении файла", err, nil)
		}
		opened = append(opened, file)

		mimeType, err := utils.ValidateFile(fh, file, constants.UploadContextCRFAttachment.String())
		if err != nil {
			return nil, closeFiles, err
		}
		out = append(out, services.UploadedFile{
			FileName: fh.Filename,
			MimeType: mimeType,
			Size:     fh.Size,
			Content:  file,
		})
	}
	return out, closeFiles, nil
}

func (c *CRFController) ApplyAction(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	actorID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	id, err := c.parseID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	var req dto.ActionDTO
	if err := ctx.Bind(&req); err != nil {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Неверный JSON", err, nil),
			c.logger,
		)
	}
	if err := ctx.Validate(&req); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	payload := services.ActionPayload{
		Reason:     req.Reason.Ptr(),
		AssigneeID: req.AssigneeID.Ptr(),
		Remark:     req.Remark.Ptr(),
		FactorID:   req.FactorID.Ptr(),
	}
	crf, err := c.engine.ApplyAction(reqCtx, id, constants.Action(req.Action), actorID, payload)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	// После действия заявка может стать невидимой (например, вендор вернул ее в ИТ)
	detail, err := c.engine.GetRequest(reqCtx, actorID, crf.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return utils.ErrorResponse(ctx, err, c.logger)
		}
		detail = services.CRFToDetailDTO(crf)
	}
	return utils.SuccessResponse(ctx, detail, "Действие выполнено", http.StatusOK)
}

func (c *CRFController) DeleteCRF(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	actorID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	id, err := c.parseID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if err := c.engine.WithdrawRequest(reqCtx, actorID, id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	return utils.SuccessResponse(ctx, struct{}{}, "Заявка отозвана", http.StatusOK)
}

func (c *CRFController) GetTimeline(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	actorID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	id, err := c.parseID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	if _, err := c.engine.GetRequest(reqCtx, actorID, id); err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	entries, err := c.engine.GetTimeline(reqCtx, id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	res := make([]dto.TimelineEntryDTO, 0, len(entries))
	for i := range entries {
		res = append(res, services.TimelineEntryToDTO(&entries[i]))
	}
	return utils.SuccessResponse(ctx, res, "История заявки получена", http.StatusOK)
}

func (c *CRFController) GetAttachments(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	actorID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	id, err := c.parseID(ctx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	attachments, err := c.engine.ListAttachments(reqCtx, actorID, id)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	res := make([]dto.AttachmentResponseDTO, 0, len(attachments))
	for i := range attachments {
		res = append(res, services.AttachmentToDTO(&attachments[i]))
	}
	return utils.SuccessResponse(ctx, res, "Вложения получены", http.StatusOK)
}
