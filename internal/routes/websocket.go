package routes

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"crf-system/internal/controllers"
	"crf-system/pkg/middleware"
	"crf-system/pkg/websocket"
)

// Токен для /ws передается в ?token=, браузер не умеет ставить заголовки при апгрейде.
func runWebSocketRouter(e *echo.Echo, hub *websocket.Hub, authMW *middleware.AuthMiddleware, allowedOrigin string, logger *zap.Logger) {
	wsCtrl := controllers.NewWebSocketController(hub, allowedOrigin, logger)

	e.GET("/ws", wsCtrl.ServeWs, authMW.Auth)
}
