package router

import "github.com/gin-gonic/gin"

func (r *Router) twoFactorRoutes(version *gin.RouterGroup) {
	twoFactor := version.Group("/2fa")
	{
		// All 2FA management requires a fully-verified session
		twoFactor.Use(r.authMw.RequireAuth())
		{
			twoFactor.POST("/setup", r.twoFactorHandler.Setup)
			twoFactor.POST("/enable", r.twoFactorHandler.Enable)
			twoFactor.POST("/verify", r.twoFactorHandler.Verify)
			twoFactor.POST("/disable", r.twoFactorHandler.Disable)
			twoFactor.POST("/backup-codes", r.twoFactorHandler.RegenerateBackupCodes)
			twoFactor.GET("/status", r.twoFactorHandler.Status)
		}
	}
}
