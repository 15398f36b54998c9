package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/edushare/internal/config"
	"github.com/SergeiKhy/edushare/internal/handler"
	"github.com/SergeiKhy/edushare/internal/metrics"
	"github.com/SergeiKhy/edushare/internal/middleware"
	"github.com/SergeiKhy/edushare/internal/repository"
	"github.com/SergeiKhy/edushare/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 30*time.Second)
	err = db.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		logger.Fatal("Failed to apply schema", zap.Error(err))
	}

	// Подключение к Redis
	redis, err := repository.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	linkRepo := repository.NewShareLinkRepository(db)
	resourceRepo := repository.NewResourceRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)
	cacheRepo := repository.NewCacheRepository(redis)
	attemptRepo := repository.NewAttemptRepository(redis)

	m := metrics.New()

	// Инициализация процессора результатов (Worker Pool)
	submissions := service.NewSubmissionProcessor(submissionRepo, m, logger)
	submissions.Start()
	defer submissions.Stop()

	// Инициализация сервиса
	shareService := service.NewShareService(
		linkRepo,
		resourceRepo,
		cacheRepo,
		attemptRepo,
		service.NewBcryptHasher(cfg.Share.BcryptCost),
		submissions,
		m,
		logger,
		service.ShareServiceConfig{
			PublicBaseURL:       cfg.App.PublicBaseURL,
			MaxPasswordAttempts: cfg.Share.MaxPasswordAttempts,
			AttemptWindow:       cfg.Share.AttemptWindow,
			CacheTTL:            cfg.Share.CacheTTL,
		},
	)

	// Инициализация middleware
	rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	})
	defer rateLimiter.Stop()

	ownerAuth := middleware.NewOwnerAuth(middleware.OwnerAuthConfig{
		Secret: []byte(cfg.Auth.JWTSecret),
		Issuer: cfg.Auth.JWTIssuer,
	})

	// Настройка роутера
	router := handler.NewRouter(handler.RouterDeps{
		ShareService: shareService,
		Submissions:  submissions,
		RateLimiter:  rateLimiter,
		OwnerAuth:    ownerAuth.Middleware(),
		Metrics:      m,
		Checks: map[string]handler.Pinger{
			"postgres": db,
			"redis":    redis,
		},
		CORSOrigins: cfg.App.CORSOrigins,
		Logger:      logger,
	})

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting",
			zap.String("port", cfg.App.Port),
			zap.String("public_base_url", cfg.App.PublicBaseURL),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	return zapCfg.Build()
}
