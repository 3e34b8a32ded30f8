package controllers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crf-system/internal/services"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/utils"
)

type ReportController struct {
	exportService services.ExportServiceInterface
	logger        *zap.Logger
}

func NewReportController(exportService services.ExportServiceInterface, logger *zap.Logger) *ReportController {
	return &ReportController{exportService: exportService, logger: logger}
}

// ExportCRFs выгружает видимые пользователю заявки. Фильтры те же, что у списка.
func (c *ReportController) ExportCRFs(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()
	actorID, err := utils.GetUserIDFromCtx(reqCtx)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}

	format := strings.ToLower(ctx.QueryParam("format"))
	if format == "" {
		format = "xlsx"
	}
	if format != "xlsx" {
		return utils.ErrorResponse(ctx,
			apperrors.NewHttpError(http.StatusBadRequest, "Поддерживается только формат xlsx", apperrors.ErrBadRequest,
				map[string]interface{}{"format": format}),
			c.logger,
		)
	}

	filter := utils.ParseFilterFromQuery(ctx.Request().URL.Query())
	c.logger.Debug("Запрос на выгрузку заявок", zap.Any("filter", filter), zap.Uint64("actorID", actorID))

	f, err := c.exportService.ExportVisible(reqCtx, actorID, filter)
	if err != nil {
		return utils.ErrorResponse(ctx, err, c.logger)
	}
	defer f.Close()

	fileName := fmt.Sprintf("crfs_%s.xlsx", time.Now().Format("2006-01-02"))
	ctx.Response().Header().Set(echo.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Response().Header().Set(echo.HeaderContentDisposition, "attachment; filename="+fileName)
	ctx.Response().WriteHeader(http.StatusOK)
	return f.Write(ctx.Response().Writer)
}
