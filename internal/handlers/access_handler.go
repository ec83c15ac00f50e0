package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"agency-crm/config"
	"agency-crm/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RoleInput - роль и её права по именам.
type RoleInput struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// ListRolesHandler возвращает роли с правами. ?all=true - без пагинации.
func ListRolesHandler(c *gin.Context) {
	var roles []models.Role
	query := config.DB.Preload("Permissions").Order("name")

	if c.Query("all") == "true" {
		if err := query.Find(&roles).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch roles"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": nonNil(roles)})
		return
	}

	var totalRows int64
	config.DB.Model(&models.Role{}).Count(&totalRows)
	if err := query.Scopes(Paginate(c)).Find(&roles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch roles"})
		return
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, roles, totalRows))
}

func CreateRoleHandler(c *gin.Context) {
	var input RoleInput
	if !bindJSON(c, &input) {
		return
	}
	role := models.Role{Name: strings.TrimSpace(input.Name), Description: input.Description}
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&role).Error; err != nil {
			return err
		}
		return replacePermissions(tx, &role, input.Permissions)
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to create role: " + err.Error()})
		return
	}
	slog.Info("Роль создана", "role", role.Name, "permissions", input.Permissions, "actor", actorID(c))
	c.JSON(http.StatusCreated, role)
}

// UpdateRoleHandler меняет описание и права роли и сбрасывает кэш прав её пользователей.
func UpdateRoleHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var role models.Role
	if err := config.DB.First(&role, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
		return
	}
	var input RoleInput
	if !bindJSON(c, &input) {
		return
	}
	if role.Name == models.RoleAdmin && input.Name != models.RoleAdmin {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Role admin cannot be renamed"})
		return
	}
	role.Name = strings.TrimSpace(input.Name)
	role.Description = input.Description

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&role).Error; err != nil {
			return err
		}
		return replacePermissions(tx, &role, input.Permissions)
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to update role: " + err.Error()})
		return
	}

	var userIDs []uint
	config.DB.Table("user_roles").Where("role_id = ?", role.ID).Pluck("user_id", &userIDs)
	invalidateUserCache(userIDs...)
	slog.Info("Права роли обновлены", "role", role.Name, "user_count", len(userIDs), "actor", actorID(c))
	c.JSON(http.StatusOK, role)
}

func DeleteRoleHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var role models.Role
	if err := config.DB.First(&role, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Role not found"})
		return
	}
	if role.Name == models.RoleAdmin {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Role admin cannot be deleted"})
		return
	}
	var userIDs []uint
	config.DB.Table("user_roles").Where("role_id = ?", role.ID).Pluck("user_id", &userIDs)
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&role).Association("Permissions").Clear(); err != nil {
			return err
		}
		if err := tx.Exec("DELETE FROM user_roles WHERE role_id = ?", role.ID).Error; err != nil {
			return err
		}
		return tx.Delete(&role).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete role"})
		return
	}
	invalidateUserCache(userIDs...)
	c.JSON(http.StatusOK, gin.H{"message": "Role deleted successfully"})
}

// ListPermissionsHandler - справочник прав, сгруппированный по категориям.
func ListPermissionsHandler(c *gin.Context) {
	var permissions []models.Permission
	if err := config.DB.Order("category asc, name asc").Find(&permissions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch permissions"})
		return
	}
	c.JSON(http.StatusOK, nonNil(permissions))
}

// UserResponse - пользователь без хеша пароля.
type UserResponse struct {
	ID       uint     `json:"id"`
	Login    string   `json:"login"`
	FullName string   `json:"full_name"`
	Email    string   `json:"email"`
	Status   string   `json:"status"`
	Roles    []string `json:"roles"`
}

func userResponse(u models.User) UserResponse {
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Name)
	}
	return UserResponse{ID: u.ID, Login: u.Login, FullName: u.FullName, Email: u.Email, Status: u.Status, Roles: roles}
}

func ListUsersHandler(c *gin.Context) {
	var totalRows int64
	config.DB.Model(&models.User{}).Count(&totalRows)

	var users []models.User
	if err := config.DB.Preload("Roles").Order("id asc").Scopes(Paginate(c)).Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not fetch users"})
		return
	}
	data := make([]UserResponse, 0, len(users))
	for _, u := range users {
		data = append(data, userResponse(u))
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, data, totalRows))
}

type CreateUserInput struct {
	Login    string   `json:"login" binding:"required"`
	FullName string   `json:"full_name" binding:"required"`
	Password string   `json:"password" binding:"required"`
	Roles    []string `json:"roles"`
}

func CreateUserHandler(c *gin.Context) {
	var input CreateUserInput
	if !bindJSON(c, &input) {
		return
	}
	var known int64
	if len(input.Roles) > 0 {
		config.DB.Model(&models.Role{}).Where("name IN ?", input.Roles).Count(&known)
		if int(known) != len(input.Roles) {
			badRequest(c, "Unknown role in "+strings.Join(input.Roles, ", "))
			return
		}
	}
	user, err := models.CreateUser(config.DB, input.Login, input.FullName, input.Password, input.Roles...)
	if err != nil {
		badRequest(c, "Failed to create user: "+err.Error())
		return
	}
	slog.Info("Пользователь создан", "user_id", user.ID, "login", user.Login, "actor", actorID(c))
	c.JSON(http.StatusCreated, userResponse(*user))
}

// SetUserStatusHandler блокирует или разблокирует пользователя. Блокировка действует
// сразу: кэш прав сбрасывается, и следующий запрос с его токеном получит 401.
func SetUserStatusHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var input struct {
		Status string `json:"status" binding:"required,oneof=active blocked"`
	}
	if !bindJSON(c, &input) {
		return
	}
	if id == actorID(c) && input.Status == models.UserBlocked {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "You cannot block yourself"})
		return
	}
	result := config.DB.Model(&models.User{}).Where("id = ?", id).Update("status", input.Status)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	invalidateUserCache(id)
	c.JSON(http.StatusOK, gin.H{"id": id, "status": input.Status})
}

func replacePermissions(tx *gorm.DB, role *models.Role, names []string) error {
	var permissions []models.Permission
	if len(names) > 0 {
		if err := tx.Where("name IN ?", names).Find(&permissions).Error; err != nil {
			return err
		}
		if len(permissions) != len(names) {
			return errors.New("unknown permission in " + strings.Join(names, ", "))
		}
	}
	role.Permissions = permissions
	if len(permissions) == 0 {
		return tx.Model(role).Association("Permissions").Clear()
	}
	return tx.Model(role).Association("Permissions").Replace(permissions)
}

func invalidateUserCache(userIDs ...uint) {
	if config.RDB == nil {
		return
	}
	for _, id := range userIDs {
		if err := config.RDB.Del(config.Ctx, fmt.Sprintf("user:%d:data", id)).Err(); err != nil {
			slog.Warn("Failed to invalidate cache for user", "error", err, "user_id", id)
		}
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
