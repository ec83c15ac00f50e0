package models

import (
	"fmt"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoMigrate создает или обновляет схему всех таблиц.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Permission{}, &Role{}, &User{},
		&Client{}, &ClientCredit{},
		&Task{}, &TaskRequirement{},
		&Receivable{}, &Payment{}, &Allocation{},
		&Invoice{}, &Commission{}, &AuditEntry{},
	)
}

// SeedAccess заводит справочник прав и роль admin. Повторный запуск ничего не ломает.
func SeedAccess(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		perms := append([]Permission(nil), DefaultPermissions...)
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&perms).Error; err != nil {
			return fmt.Errorf("seed permissions: %w", err)
		}
		role := Role{Name: RoleAdmin, Description: "Полный доступ"}
		if err := tx.Where(Role{Name: RoleAdmin}).FirstOrCreate(&role).Error; err != nil {
			return fmt.Errorf("seed admin role: %w", err)
		}
		slog.Info("Справочник прав заполнен", "permissions", len(DefaultPermissions))
		return nil
	})
}
