package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	configs "github.com/karmasystem/auth-service/config"
	"github.com/karmasystem/auth-service/internal/constants"
	"github.com/karmasystem/auth-service/internal/handler"
	"github.com/karmasystem/auth-service/internal/middleware"
	"github.com/karmasystem/auth-service/internal/repository"
	"github.com/karmasystem/auth-service/internal/router"
	"github.com/karmasystem/auth-service/internal/service"
	"github.com/karmasystem/auth-service/pkg/circuit"
	"github.com/karmasystem/auth-service/pkg/database"
	"github.com/karmasystem/auth-service/pkg/health"
	"github.com/karmasystem/auth-service/pkg/logger"
	"github.com/karmasystem/auth-service/pkg/redis"
	"github.com/karmasystem/auth-service/pkg/validation"
)

func main() {
	config, err := configs.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize Zap logger
	if err := logger.InitLogger(config); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.GetLogger().Info("Application starting",
		zap.String("app_name", config.App.Name),
		zap.String("environment", config.App.Environment),
		zap.String("version", constants.AppVersion),
	)

	if config.App.Environment == constants.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := validation.RegisterCustomValidators(); err != nil {
		logger.GetLogger().Fatal("Failed to register validators", zap.Error(err))
	}

	// Database
	db, err := database.NewPostgresDB(database.Config{
		Host:            config.Database.Host,
		Port:            config.Database.Port,
		User:            config.Database.User,
		Password:        config.Database.Password,
		Database:        config.Database.Name,
		SSLMode:         config.Database.SSLMode,
		MaxIdleConns:    config.Database.MaxIdleConns,
		MaxOpenConns:    config.Database.MaxOpenConns,
		ConnMaxLifetime: config.Database.ConnMaxLifetime,
		ConnMaxIdleTime: config.Database.ConnMaxIdleTime,
	})
	if err != nil {
		logger.GetLogger().Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.CloseDB(db)

	if err := database.AutoMigrate(db); err != nil {
		logger.GetLogger().Fatal("Failed to run database migrations", zap.Error(err))
	}
	logger.GetLogger().Info("Database migrated successfully")

	if err := database.Seed(db); err != nil {
		// Seed data may already exist
		logger.GetLogger().Error("Failed to seed database", zap.Error(err))
	}

	// Redis backs the blacklist and rate limiter; the service fails closed
	// on tokens without it, so startup requires it
	redisClient, err := redis.NewClient(config)
	if err != nil {
		logger.GetLogger().Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Background dependency monitor feeding the health endpoint
	monitor := health.NewMonitor(15*time.Second, logger.GetLogger())
	monitor.Register("database", func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
	monitor.Register("redis", redisClient.Ping)
	monitor.Start()
	defer monitor.Stop()

	// Repositories
	// The middleware reloads the user on every request; a short cache keeps
	// that off the database hot path. Auth-relevant writes invalidate it.
	userRepo := repository.NewCachedUserRepository(repository.NewUserRepository(db), 30*time.Second)
	defer userRepo.Close()
	attemptRepo := repository.NewLoginAttemptRepository(db)
	deviceRepo := repository.NewDeviceRepository(db)

	// Login attempt audit grows forever without pruning
	if config.Security.AttemptRetention > 0 {
		go func() {
			ticker := time.NewTicker(12 * time.Hour)
			defer ticker.Stop()
			for range ticker.C {
				cutoff := time.Now().UTC().Add(-config.Security.AttemptRetention)
				if pruned, err := attemptRepo.PruneOlderThan(context.Background(), cutoff); err != nil {
					logger.GetLogger().Warn("Failed to prune login attempts", zap.Error(err))
				} else if pruned > 0 {
					logger.GetLogger().Info("Pruned login attempts", zap.Int64("rows", pruned))
				}
			}
		}()
	}

	// A breaker in front of Redis turns sustained outages into fast failures.
	// The blacklist fails closed on them, the rate limiter fails open.
	redisBreaker := circuit.NewBreaker("redis", circuit.DefaultConfig(), logger.GetLogger())

	// Services
	tokenService := service.NewTokenService(config.JWT)
	blacklistService := service.NewBlacklistService(service.NewGuardedRevocationStore(redisClient, redisBreaker))
	limiter := service.NewRateLimiter(service.NewGuardedCounterStore(redisClient, redisBreaker), config.RateLimit.Request, time.Duration(config.RateLimit.Duration)*time.Second)
	lockoutService := service.NewLockoutService(attemptRepo, config.Security)
	twoFactorService := service.NewTwoFactorService(userRepo, config.TwoFactor)
	authService := service.NewAuthService(
		userRepo,
		deviceRepo,
		tokenService,
		blacklistService,
		twoFactorService,
		lockoutService,
		limiter,
		service.NewLogNotifier(),
		config,
	)
	userService := service.NewUserService(userRepo, deviceRepo, config.Security)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	twoFactorHandler := handler.NewTwoFactorHandler(twoFactorService)
	userHandler := handler.NewUserHandler(userService)
	healthHandler := handler.NewHealthHandler(db, redisClient, monitor)

	authMw := middleware.NewAuthMiddleware(tokenService, blacklistService, userRepo)

	r := router.NewRouter(
		authHandler,
		twoFactorHandler,
		userHandler,
		healthHandler,

		authMw,
		limiter,
		config,
	).SetupRoutes()

	srv := &http.Server{
		Addr:         ":" + config.App.Port,
		Handler:      r,
		ReadTimeout:  config.App.Timeout,
		WriteTimeout: config.App.Timeout,
	}

	go func() {
		logger.GetLogger().Info("Server starting",
			zap.String("port", config.App.Port),
			zap.String("host", "0.0.0.0"),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.GetLogger().Fatal("Failed to start server",
				zap.Error(err),
				zap.String("port", config.App.Port),
			)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.GetLogger().Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.GetLogger().Error("Forced shutdown", zap.Error(err))
	}

	logger.GetLogger().Info("Server stopped")
}
