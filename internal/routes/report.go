package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crf-system/internal/controllers"
	"crf-system/internal/services"
)

func runReportRouter(secureGroup *echo.Group, exportService services.ExportServiceInterface, logger *zap.Logger) {
	reportController := controllers.NewReportController(exportService, logger)

	secureGroup.GET("/crfs/export", reportController.ExportCRFs)
}
