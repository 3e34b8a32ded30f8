package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crf-system/internal/controllers"
	"crf-system/internal/services"
	"crf-system/pkg/constants"
	"crf-system/pkg/middleware"
)

func runNotificationRouter(
	secureGroup *echo.Group,
	notificationService services.NotificationServiceInterface,
	actors middleware.ActorLookup,
	logger *zap.Logger,
) {
	notificationCtrl := controllers.NewNotificationController(notificationService, logger)

	secureGroup.GET("/notifications/failed", notificationCtrl.GetFailed,
		middleware.AuthorizeAny(actors, logger, constants.RoleITAdmin, constants.RoleAdminOverride))
}
