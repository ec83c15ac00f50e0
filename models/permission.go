// File: models/permission.go
package models

import "gorm.io/gorm"

// Права доступа, которые проверяет PermissionMiddleware.
const (
	PermTasksView      = "tasks_view"
	PermTasksCreate    = "tasks_create"
	PermTasksEdit      = "tasks_edit"
	PermTasksSubmit    = "tasks_submit"
	PermTasksReview    = "tasks_review"
	PermTasksCancel    = "tasks_cancel"
	PermTasksDelete    = "tasks_delete"
	PermTasksRestore   = "tasks_restore"
	PermFinanceResolve = "finance_resolve"
	PermPaymentsCreate = "payments_create"
	PermClientsView    = "clients_view"
	PermClientsEdit    = "clients_edit"
	PermCommissionsPay = "commissions_pay"
	PermAccessManage   = "access_manage"
)

// Permission представляет модель права доступа в базе данных.
type Permission struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"unique;not null"`
	Description string `json:"description"`
	Category    string `json:"category" gorm:"not null"` // группа для экрана ролей: "Задачи", "Финансы"
}

// DefaultPermissions - справочник прав, создаваемый командой migrate.
var DefaultPermissions = []Permission{
	{Name: PermTasksView, Description: "Просмотр задач", Category: "Задачи"},
	{Name: PermTasksCreate, Description: "Создание задач", Category: "Задачи"},
	{Name: PermTasksEdit, Description: "Редактирование задач", Category: "Задачи"},
	{Name: PermTasksSubmit, Description: "Отправка на проверку", Category: "Задачи"},
	{Name: PermTasksReview, Description: "Приемка и возврат задач", Category: "Задачи"},
	{Name: PermTasksCancel, Description: "Отмена задач", Category: "Задачи"},
	{Name: PermTasksDelete, Description: "Удаление задач", Category: "Задачи"},
	{Name: PermTasksRestore, Description: "Возврат завершенных задач в работу", Category: "Задачи"},
	{Name: PermFinanceResolve, Description: "Разрешение финансовых конфликтов", Category: "Финансы"},
	{Name: PermPaymentsCreate, Description: "Внесение платежей и зачетов", Category: "Финансы"},
	{Name: PermCommissionsPay, Description: "Выплата комиссий", Category: "Финансы"},
	{Name: PermClientsView, Description: "Просмотр клиентов", Category: "Клиенты"},
	{Name: PermClientsEdit, Description: "Создание клиентов и кредитов", Category: "Клиенты"},
	{Name: PermAccessManage, Description: "Управление пользователями и ролями", Category: "Доступ"},
}

// GetUserPermissions получает все уникальные права доступа для пользователя через его роли.
func GetUserPermissions(db *gorm.DB, userID uint) ([]string, error) {
	var user User
	if err := db.Preload("Roles.Permissions").First(&user, userID).Error; err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	names := make([]string, 0)
	for _, role := range user.Roles {
		for _, permission := range role.Permissions {
			if _, ok := seen[permission.Name]; ok {
				continue
			}
			seen[permission.Name] = struct{}{}
			names = append(names, permission.Name)
		}
	}
	return names, nil
}
