package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crf-system/internal/controllers"
	"crf-system/internal/services"
)

func runCRFRouter(secureGroup *echo.Group, engine services.WorkflowEngineInterface, logger *zap.Logger) {
	crfCtrl := controllers.NewCRFController(engine, logger)
	{
		secureGroup.GET("/crfs", crfCtrl.GetCRFs)
		secureGroup.POST("/crfs", crfCtrl.CreateCRF)
		secureGroup.GET("/crfs/:id", crfCtrl.FindCRF)
		secureGroup.DELETE("/crfs/:id", crfCtrl.DeleteCRF)
		secureGroup.POST("/crfs/:id/actions", crfCtrl.ApplyAction)
		secureGroup.GET("/crfs/:id/timeline", crfCtrl.GetTimeline)
		secureGroup.GET("/crfs/:id/attachments", crfCtrl.GetAttachments)
	}
}
