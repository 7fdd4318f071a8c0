package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/karmasystem/auth-service/config"
	"github.com/karmasystem/auth-service/internal/handler"
	"github.com/karmasystem/auth-service/internal/middleware"
	"github.com/karmasystem/auth-service/internal/service"
)

type Router struct {
	authHandler      *handler.AuthHandler
	twoFactorHandler *handler.TwoFactorHandler
	userHandler      *handler.UserHandler
	healthHandler    *handler.HealthHandler

	authMw  *middleware.AuthMiddleware
	limiter *service.RateLimiter
	Config  *config.Config
}

func NewRouter(
	auth *handler.AuthHandler,
	twoFactor *handler.TwoFactorHandler,
	user *handler.UserHandler,
	health *handler.HealthHandler,

	authMw *middleware.AuthMiddleware,
	limiter *service.RateLimiter,
	cfg *config.Config,
) *Router {
	return &Router{
		authHandler:      auth,
		twoFactorHandler: twoFactor,
		userHandler:      user,
		healthHandler:    health,

		authMw:  authMw,
		limiter: limiter,
		Config:  cfg,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()

	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestContext())
	router.Use(middleware.RequestTimeout(30 * time.Second))

	api := router.Group("/api")
	{
		api.GET("/health", r.healthHandler.HealthCheck)

		v1 := api.Group("/v1")
		{
			v1.Use(middleware.RateLimit(r.limiter))

			r.authRoutes(v1)
			r.twoFactorRoutes(v1)
			r.userRoutes(v1)
		}
	}

	return router
}
