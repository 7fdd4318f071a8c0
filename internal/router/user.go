package router

import (
	"github.com/gin-gonic/gin"

	"github.com/karmasystem/auth-service/internal/model"
)

func (r *Router) userRoutes(version *gin.RouterGroup) {
	users := version.Group("/users")
	{
		users.Use(r.authMw.RequireAuth())
		{
			// Self-service profile surface
			users.GET("/me", r.userHandler.GetProfile)
			users.PUT("/me", r.userHandler.UpdateProfile)
			users.POST("/me/password", r.userHandler.ChangePassword)
			users.GET("/me/devices", r.userHandler.ListDevices)

			// Admin listing with pagination and search
			users.GET("", r.authMw.RequireRole(model.RoleAdmin), r.userHandler.ListUsers)
		}
	}
}
