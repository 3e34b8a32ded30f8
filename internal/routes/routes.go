package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"crf-system/internal/services"
	"crf-system/pkg/config"
	"crf-system/pkg/middleware"
	"crf-system/pkg/service"
	"crf-system/pkg/websocket"
)

// Services - собранные в main сервисы, которые нужны HTTP-слою.
type Services struct {
	Engine       services.WorkflowEngineInterface
	Export       services.ExportServiceInterface
	Notification services.NotificationServiceInterface
	Reference    services.ReferenceServiceInterface
	Actors       middleware.ActorLookup
}

func InitRouter(
	e *echo.Echo,
	svc *Services,
	hub *websocket.Hub,
	jwtSvc service.JWTService,
	cfg *config.Config,
	logger *zap.Logger,
) {
	logger.Info("InitRouter: Начало создания маршрутов")

	api := e.Group("/api")
	authMW := middleware.NewAuthMiddleware(jwtSvc, logger)
	secureGroup := api.Group("", authMW.Auth)

	runCRFRouter(secureGroup, svc.Engine, logger)
	runReportRouter(secureGroup, svc.Export, logger)
	runReferenceRouter(secureGroup, svc.Reference, logger)
	runNotificationRouter(secureGroup, svc.Notification, svc.Actors, logger)
	runWebSocketRouter(e, hub, authMW, cfg.Frontend.BaseURL, logger)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	logger.Info("INIT_ROUTER: Создание маршрутов завершено")
}
