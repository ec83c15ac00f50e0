package routes

import (
	"net/http"

	"agency-crm/internal/handlers"
	"agency-crm/internal/middleware"

	"github.com/gin-gonic/gin"
)

// NewRouter собирает gin.Engine со всеми маршрутами сервиса.
func NewRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID())
	SetupRoutes(r)
	return r
}

// SetupRoutes регистрирует публичные маршруты и группу, требующую аутентификации.
func SetupRoutes(r *gin.Engine) {
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	RegisterAuthRoutes(r)

	authRequired := r.Group("/")
	authRequired.Use(middleware.AuthMiddleware())
	{
		authRequired.POST("/logout", handlers.LogoutHandler)
		RegisterAPIRoutes(authRequired)
	}
}
