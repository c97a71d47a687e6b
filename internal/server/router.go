package server

import (
	"github.com/gin-gonic/gin"

	"github.com/frontdesk/guestlog/internal/config"
	"github.com/frontdesk/guestlog/internal/service"
)

// NewRouter assembles the gin engine: public auth routes, the
// session-gated API group, and the manager-only admin group.
func NewRouter(cfg *config.Config, authService *service.AuthService, recordService *service.RecordService) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery(), SecurityHeaders())

	authHandler := NewAuthHandler(authService, cfg.SessionDuration)
	recordHandler := NewRecordHandler(recordService)
	userHandler := NewUserHandler(authService)

	r.POST("/setup", authHandler.Setup)
	r.POST("/login", authHandler.Login)
	r.GET("/logout", authHandler.Logout)

	api := r.Group("/api")
	api.Use(RequireSession(authService))

	api.POST("/password/change", authHandler.ChangePassword)
	api.GET("/reasons", recordHandler.Reasons)

	api.GET("/records", recordHandler.List)
	api.POST("/records", recordHandler.Create)
	api.GET("/records/:id", recordHandler.Get)
	api.POST("/records/:id/timeline", recordHandler.AddNote)
	api.POST("/records/:id/lift", recordHandler.Lift)

	admin := api.Group("/users")
	admin.Use(RequireManager())

	admin.GET("", userHandler.List)
	admin.POST("", userHandler.Create)
	admin.POST("/:id/deactivate", userHandler.Deactivate)
	admin.POST("/:id/reactivate", userHandler.Reactivate)
	admin.POST("/:id/reset-password", userHandler.ResetPassword)

	return r
}
