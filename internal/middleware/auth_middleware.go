package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"agency-crm/config"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const userCacheTTL = 10 * time.Minute

// CachedUserData - данные пользователя, которые держим в Redis между запросами.
type CachedUserData struct {
	UserID      uint     `json:"user_id"`
	Login       string   `json:"login"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
}

func userCacheKey(userID uint) string {
	return fmt.Sprintf("user:%d:data", userID)
}

// AuthMiddleware проверяет JWT из cookie auth_token или заголовка Authorization
// и кладет в контекст пользователя, его роли и права.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := bearerToken(c)
		if err != nil {
			handleAuthError(c, err.Error())
			return
		}

		token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return config.JwtKey, nil
		})
		if err != nil || !token.Valid {
			c.SetCookie("auth_token", "", -1, "/", "", false, true)
			handleAuthError(c, "Invalid or expired token")
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			handleAuthError(c, "Invalid token claims")
			return
		}
		userIDFloat, ok := claims["user_id"].(float64)
		if !ok {
			handleAuthError(c, "Invalid user ID format in token")
			return
		}
		userID := uint(userIDFloat)

		if userData, ok := cachedUser(userID); ok {
			setContextAndProceed(c, userData)
			return
		}

		slog.Debug("Кэш пользователя пуст, читаем из БД", "user_id", userID)
		var dbUser models.User
		if err := config.DB.Preload("Roles").First(&dbUser, userID).Error; err != nil {
			c.SetCookie("auth_token", "", -1, "/", "", false, true)
			handleAuthError(c, "User from token not found in DB")
			return
		}
		if dbUser.Status != models.UserActive {
			handleAuthError(c, "User is blocked")
			return
		}

		permissions, err := models.GetUserPermissions(config.DB, dbUser.ID)
		if err != nil {
			slog.Error("Не удалось загрузить права пользователя", "error", err, "user_id", userID)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Could not load permissions"})
			return
		}
		roleNames := make([]string, 0, len(dbUser.Roles))
		for _, role := range dbUser.Roles {
			roleNames = append(roleNames, role.Name)
		}
		// админу право admin добавляем явно, клиент по нему открывает все действия
		if dbUser.HasRole(models.RoleAdmin) {
			permissions = append(permissions, models.RoleAdmin)
		}

		userData := &CachedUserData{
			UserID:      dbUser.ID,
			Login:       dbUser.Login,
			Roles:       roleNames,
			Permissions: permissions,
		}
		cacheUser(userData)
		setContextAndProceed(c, userData)
	}
}

func bearerToken(c *gin.Context) (string, error) {
	if tokenStr, err := c.Cookie("auth_token"); err == nil && tokenStr != "" {
		return tokenStr, nil
	}
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", errors.New("Authorization token not provided")
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", errors.New("Invalid Authorization header format")
	}
	return parts[1], nil
}

func cachedUser(userID uint) (*CachedUserData, bool) {
	if config.RDB == nil {
		return nil, false
	}
	cached, err := config.RDB.Get(config.Ctx, userCacheKey(userID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Error("Redis GET command failed", "error", err, "user_id", userID)
		}
		return nil, false
	}
	var userData CachedUserData
	if err := json.Unmarshal([]byte(cached), &userData); err != nil {
		slog.Warn("Failed to unmarshal cached user data", "user_id", userID, "error", err)
		return nil, false
	}
	return &userData, true
}

func cacheUser(userData *CachedUserData) {
	if config.RDB == nil {
		return
	}
	data, err := json.Marshal(userData)
	if err != nil {
		slog.Error("Failed to marshal user data for caching", "error", err, "user_id", userData.UserID)
		return
	}
	if err := config.RDB.Set(config.Ctx, userCacheKey(userData.UserID), data, userCacheTTL).Err(); err != nil {
		slog.Error("Failed to SET user data to cache", "error", err, "user_id", userData.UserID)
	}
}

func setContextAndProceed(c *gin.Context, userData *CachedUserData) {
	c.Set("user_id", userData.UserID)
	c.Set("login", userData.Login)
	c.Set("roles", userData.Roles)
	c.Set("permissions", userData.Permissions)
	c.Next()
}

// PermissionMiddleware пропускает админа и пользователей с правом requiredPermission.
func PermissionMiddleware(requiredPermission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if roles, ok := c.Get("roles"); ok {
			if userRoles, ok := roles.([]string); ok && slices.Contains(userRoles, models.RoleAdmin) {
				c.Next()
				return
			}
		}

		permissions, exists := c.Get("permissions")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permissions not found in context"})
			return
		}
		userPermissions, ok := permissions.([]string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Internal permission format error"})
			return
		}
		if slices.Contains(userPermissions, requiredPermission) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
	}
}

func handleAuthError(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.ErrorBody{Error: message, Kind: dto.KindUnauthorized})
}
