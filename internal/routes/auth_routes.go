package routes

import (
	"agency-crm/internal/handlers"

	"github.com/gin-gonic/gin"
)

// RegisterAuthRoutes - публичные маршруты входа.
func RegisterAuthRoutes(r *gin.Engine) {
	r.POST("/login", handlers.LoginHandler)
}
