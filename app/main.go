package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"crf-system/internal/authz"
	"crf-system/internal/listeners"
	"crf-system/internal/repositories"
	"crf-system/internal/routes"
	"crf-system/internal/services"
	"crf-system/pkg/config"
	"crf-system/pkg/database/postgresql"
	apperrors "crf-system/pkg/errors"
	"crf-system/pkg/eventbus"
	"crf-system/pkg/filestorage"
	applogger "crf-system/pkg/logger"
	appmiddleware "crf-system/pkg/middleware"
	"crf-system/pkg/service"
	"crf-system/pkg/telegram"
	"crf-system/pkg/utils"
	"crf-system/pkg/validation"
	"crf-system/pkg/websocket"
)

func main() {
	logger := applogger.NewLogger()
	defer func() { _ = logger.Sync() }()

	cfg := config.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e := echo.New()
	e.HideBanner = true
	e.Validator = validation.New()

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll: true,
		StackSize:       1 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("!!! ОБНАРУЖЕНА ПАНИКА (PANIC) !!!",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)),
			)
			if !c.Response().Committed {
				httpErr := apperrors.NewHttpError(http.StatusInternalServerError, "Внутренняя ошибка сервера", err, nil)
				_ = utils.ErrorResponse(c, httpErr, logger)
			}
			return err
		},
	}))
	e.Use(appmiddleware.InjectLogger(applogger.Named(logger, "http")))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{cfg.Frontend.BaseURL},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowCredentials: true,
		ExposeHeaders:    []string{echo.HeaderContentDisposition},
	}))

	absPath, err := filepath.Abs(cfg.Server.UploadPath)
	if err != nil {
		logger.Fatal("не удалось получить абсолютный путь к uploads", zap.Error(err))
	}
	e.Static("/uploads", absPath)

	dbConn, err := postgresql.ConnectDB(ctx, cfg.Postgres.DSN, logger)
	if err != nil {
		logger.Fatal("не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer dbConn.Close()

	cacheRepo := connectCache(ctx, cfg.Redis, logger)

	hub := websocket.NewHub(applogger.Named(logger, "websocket"))
	go hub.Run(ctx)

	bus := eventbus.New(applogger.Named(logger, "eventbus"))
	svc, relay, err := buildServices(ctx, dbConn, cacheRepo, hub, bus, cfg, absPath, logger)
	if err != nil {
		logger.Fatal("ошибка инициализации сервисов", zap.Error(err))
	}

	go func() {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("relay уведомлений остановлен с ошибкой", zap.Error(err))
		}
	}()

	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL, cfg.JWT.RefreshTokenTTL)
	routes.InitRouter(e, svc, hub, jwtSvc, cfg, logger)

	go func() {
		logger.Info("🚀 Сервер запущен", zap.String("port", cfg.Server.Port))
		if err := e.Start(":" + cfg.Server.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Ошибка запуска сервера", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("получен сигнал остановки, завершаем работу")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка при остановке HTTP-сервера", zap.Error(err))
	}
	bus.Wait()
}

// connectCache возвращает nil, если Redis недоступен: сервисы работают без кеша.
func connectCache(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) repositories.CacheRepositoryInterface {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       0,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if _, err := redisClient.Ping(pingCtx).Result(); err != nil {
		logger.Warn("Redis недоступен, кеш отключен", zap.Error(err), zap.String("address", cfg.Address))
		_ = redisClient.Close()
		return nil
	}
	return repositories.NewRedisCacheRepository(redisClient)
}

func buildServices(
	ctx context.Context,
	dbConn *pgxpool.Pool,
	cacheRepo repositories.CacheRepositoryInterface,
	hub *websocket.Hub,
	bus *eventbus.Bus,
	cfg *config.Config,
	uploadPath string,
	logger *zap.Logger,
) (*routes.Services, *services.NotificationRelay, error) {
	fileStorage, err := filestorage.NewLocalFileStorage(uploadPath)
	if err != nil {
		return nil, nil, err
	}

	// --- РЕПОЗИТОРИИ ---
	txManager := repositories.NewTxManager(dbConn)
	crfRepo := repositories.NewCRFRepository(dbConn, applogger.Named(logger, "crf_repository"))
	attachmentRepo := repositories.NewAttachmentRepository(dbConn)
	outboxRepo := repositories.NewOutboxRepository(dbConn, logger)
	referenceRepo := repositories.NewReferenceRepository(dbConn, logger)
	sequenceRepo := repositories.NewSequenceRepository(dbConn, logger)
	timelineRepo := repositories.NewTimelineRepository(dbConn, logger)
	userRepo := repositories.NewUserRepository(dbConn, logger)

	itDept, err := referenceRepo.FindDepartmentByCode(ctx, cfg.Workflow.ITDepartmentCode)
	if err != nil {
		logger.Error("не найден ИТ-отдел", zap.String("code", cfg.Workflow.ITDepartmentCode), zap.Error(err))
		return nil, nil, err
	}

	// --- СЕРВИСЫ ---
	directory := services.NewActorDirectory(userRepo, cacheRepo, cfg.Workflow.ActorCacheTTL, logger)
	engineLogger := applogger.Named(logger, "workflow")
	engine := services.NewWorkflowEngine(
		txManager, crfRepo, attachmentRepo, outboxRepo, referenceRepo,
		services.NewSequenceGenerator(sequenceRepo, cfg.Workflow.SequenceMaxRetries, engineLogger),
		services.NewTimelineRecorder(timelineRepo, engineLogger),
		directory,
		authz.NewRouter(itDept.ID),
		fileStorage,
		bus,
		engineLogger,
	)

	notifyLogger := applogger.Named(logger, "notifications")
	renderer := services.NewNotificationRenderer(cfg.Frontend.BaseURL)
	dispatchers := []services.NotificationDispatcher{
		services.NewLogDispatcher(renderer, notifyLogger),
		services.NewWebSocketDispatcher(hub, renderer, notifyLogger),
	}
	if cfg.Telegram.Enabled {
		dispatchers = append(dispatchers,
			services.NewTelegramDispatcher(telegram.NewService(cfg.Telegram.BotToken), renderer, notifyLogger))
	} else {
		notifyLogger.Info("токен Telegram не задан, уведомления в Telegram отключены")
	}

	notificationService := services.NewNotificationService(
		outboxRepo, directory,
		services.NewMultiDispatcher(notifyLogger, dispatchers...),
		cfg.Notification.MaxAttempts, cfg.Notification.MaxBackoff, notifyLogger,
	)
	listeners.NewNotificationListener(notificationService, notifyLogger).Register(bus)

	relay := services.NewNotificationRelay(
		outboxRepo, notificationService,
		cfg.Notification.RelayInterval, cfg.Notification.BatchSize, cfg.Notification.StaleAfter,
		notifyLogger,
	)

	return &routes.Services{
		Engine:       engine,
		Export:       services.NewExportService(engine),
		Notification: notificationService,
		Reference:    services.NewReferenceService(referenceRepo, cacheRepo, cfg.Workflow.ActorCacheTTL, logger),
		Actors:       directory,
	}, relay, nil
}
