package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"chatserver/internal/config"
	"chatserver/internal/handler"
	"chatserver/internal/middleware"
	"chatserver/internal/repository"
	"chatserver/internal/service"
	"chatserver/pkg/logger"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)
	if cfg.Environment == "development" {
		appLogger = logger.NewDevelopment(cfg.Log.Level)
	}
	defer appLogger.Sync()

	// Подключение к PostgreSQL
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Invalid database DSN", "error", err)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConnections)
	poolCfg.MaxConnIdleTime = cfg.Database.MaxIdleTime
	poolCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime

	dbPool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	// Подключение к Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, cfg.Chat.TranscriptTTL, appLogger)
	services := service.NewServices(repos, cfg, prometheus.DefaultRegisterer, appLogger)

	// Подписчики событий встреч работают в отдельной горутине
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	defer stopDispatch()
	go services.Events.Run(dispatchCtx)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)
	handlers := handler.NewHandlers(services, cfg, appLogger)

	router := setupRouter(handlers, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown", "error", err)
	}

	// дописываем накопленные события до закрытия БД и Redis
	services.Events.Close()

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// WebSocket чат; токен в query или в заголовке Authorization
	router.GET("/ws/chat", handlers.WebSocket.HandleChat)

	v1 := router.Group("/api/v1")
	v1.Use(authMiddleware.RequireAuth(), rateLimitMiddleware.Limit())
	{
		v1.GET("/transcripts", handlers.Transcript.ListTranscripts)

		meetings := v1.Group("/meetings/:id")
		{
			meetings.GET("", handlers.Meeting.GetMeeting)
			meetings.GET("/transcript", handlers.Transcript.GetTranscript)
			meetings.POST("/media/token", handlers.Media.GetToken)
		}
	}

	return router
}
