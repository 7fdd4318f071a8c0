package router

import "github.com/gin-gonic/gin"

func (r *Router) authRoutes(version *gin.RouterGroup) {
	auth := version.Group("/auth")
	{
		// Public routes (no authentication required)
		auth.POST("/register", r.authHandler.Register)
		auth.POST("/login", r.authHandler.Login)
		auth.POST("/refresh", r.authHandler.Refresh)
		auth.POST("/password-reset/request", r.authHandler.RequestPasswordReset)
		auth.POST("/password-reset/confirm", r.authHandler.ConfirmPasswordReset)
		auth.GET("/verify-email", r.authHandler.VerifyEmail)

		// Step-up completion accepts only the narrow token issued mid-login
		auth.POST("/login/2fa", r.authMw.RequireStepUp(), r.authHandler.CompleteTwoFactor)

		// Protected routes (JWT authentication required)
		protected := auth.Group("")
		protected.Use(r.authMw.RequireAuth())
		{
			protected.POST("/logout", r.authHandler.Logout)
		}
	}
}
