package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crf-system/internal/controllers"
	"crf-system/internal/services"
)

func runReferenceRouter(secureGroup *echo.Group, referenceService services.ReferenceServiceInterface, logger *zap.Logger) {
	referenceCtrl := controllers.NewReferenceController(referenceService, logger)

	secureGroup.GET("/categories", referenceCtrl.GetCategories)
}
