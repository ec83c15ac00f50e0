package config

import (
	"fmt"
	"log/slog"

	"agency-crm/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// ConnectDB открывает Postgres и сохраняет соединение в DB.
func ConnectDB(s *Settings) error {
	db, err := gorm.Open(postgres.Open(s.DatabaseURL), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		slog.Error("Ошибка подключения к БД", "error", err)
		return fmt.Errorf("connect db: %w", err)
	}

	DB = db
	slog.Info("Успешное подключение к базе данных!")
	return nil
}

// Migrate прогоняет AutoMigrate и заполняет справочник прав.
func Migrate(db *gorm.DB) error {
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return models.SeedAccess(db)
}
