package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"agency-crm/config"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type LoginInput struct {
	Login    string `json:"login" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginHandler проверяет пароль и выдает JWT в cookie auth_token и в теле ответа.
func LoginHandler(c *gin.Context) {
	var input LoginInput
	if !bindJSON(c, &input) {
		return
	}

	var user models.User
	if err := config.DB.Where("login = ?", input.Login).First(&user).Error; err != nil || !user.CheckPassword(input.Password) {
		slog.Warn("Неудачная попытка входа", "login", input.Login)
		c.JSON(http.StatusUnauthorized, dto.ErrorBody{Error: "Invalid login or password", Kind: dto.KindUnauthorized})
		return
	}
	if user.Status != models.UserActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "User is blocked"})
		return
	}

	expires := time.Now().Add(config.TokenTTL)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"login":   user.Login,
		"exp":     expires.Unix(),
	})
	signed, err := token.SignedString(config.JwtKey)
	if err != nil {
		slog.Error("Не удалось подписать токен", "error", err, "user_id", user.ID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create token"})
		return
	}

	c.SetCookie("auth_token", signed, int(config.TokenTTL.Seconds()), "/", "", false, true)
	slog.Info("Пользователь вошел в систему", "user_id", user.ID)
	c.JSON(http.StatusOK, gin.H{"token": signed, "expires_at": expires})
}

// LogoutHandler сбрасывает cookie и кэш прав пользователя.
func LogoutHandler(c *gin.Context) {
	c.SetCookie("auth_token", "", -1, "/", "", false, true)
	if config.RDB != nil {
		if id := actorID(c); id != 0 {
			config.RDB.Del(config.Ctx, fmt.Sprintf("user:%d:data", id))
		}
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}
