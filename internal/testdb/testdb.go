// Package testdb поднимает SQLite-базу со схемой CRM для тестов.
package testdb

import (
	"path/filepath"
	"testing"
	"time"

	"agency-crm/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open создает файл базы во временной папке теста и прогоняет миграции.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "crm.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// одна запись за раз, иначе SQLite отвечает database is locked
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	require.NoError(t, models.SeedAccess(db))
	return db
}

func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func Client(t testing.TB, db *gorm.DB, name string) models.Client {
	t.Helper()
	c := models.Client{Name: name, Type: models.ClientAccounting}
	require.NoError(t, db.Create(&c).Error)
	return c
}

// Task создает задачу New с дебиторками: предоплатной (если prepaid > 0) и основной.
func Task(t testing.TB, db *gorm.DB, clientID uint, amount, prepaid string) models.Task {
	t.Helper()
	task := models.Task{
		ClientID:      clientID,
		Title:         "Годовая отчетность",
		Amount:        Money(amount),
		PrepaidAmount: Money(prepaid),
		Status:        models.StatusNew,
		Version:       1,
	}
	require.NoError(t, db.Create(&task).Error)
	if task.PrepaidAmount.IsPositive() {
		require.NoError(t, db.Create(&models.Receivable{TaskID: task.ID, Kind: models.ReceivablePrepaid, Amount: task.PrepaidAmount}).Error)
	}
	require.NoError(t, db.Create(&models.Receivable{TaskID: task.ID, Kind: models.ReceivableMain, Amount: task.MainCeiling()}).Error)
	return task
}

func Receivable(t testing.TB, db *gorm.DB, taskID uint, kind models.ReceivableKind) models.Receivable {
	t.Helper()
	var rec models.Receivable
	require.NoError(t, db.Preload("Payments").Preload("Allocations").
		Where("task_id = ? AND kind = ?", taskID, kind).First(&rec).Error)
	return rec
}

func Payment(t testing.TB, db *gorm.DB, receivableID uint, amount string) models.Payment {
	t.Helper()
	p := models.Payment{ReceivableID: receivableID, Amount: Money(amount), Method: "bank", PaidAt: time.Now()}
	require.NoError(t, db.Create(&p).Error)
	return p
}

// Allocation списывает amount с кредита и вешает зачет на дебиторку.
func Allocation(t testing.TB, db *gorm.DB, receivableID uint, credit *models.ClientCredit, amount string) models.Allocation {
	t.Helper()
	a := models.Allocation{ReceivableID: receivableID, ClientCreditID: credit.ID, Amount: Money(amount), AllocatedAt: time.Now()}
	require.NoError(t, db.Create(&a).Error)
	credit.Balance = credit.Balance.Sub(a.Amount)
	require.NoError(t, db.Model(&models.ClientCredit{}).Where("id = ?", credit.ID).Update("balance", credit.Balance).Error)
	return a
}

func Credit(t testing.TB, db *gorm.DB, clientID uint, amount string) models.ClientCredit {
	t.Helper()
	c := models.ClientCredit{ClientID: clientID, Source: models.CreditManual, Amount: Money(amount), Balance: Money(amount)}
	require.NoError(t, db.Create(&c).Error)
	return c
}
