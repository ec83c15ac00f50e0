// Package store - общие запросы к задачам для ledger и lifecycle:
// загрузка с блокировкой, проверка версии, журнал.
package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"agency-crm/internal/apperr"
	"agency-crm/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func byID(db *gorm.DB) *gorm.DB { return db.Order("id") }

// LoadTask читает задачу с дебиторками и чек-листом. lock блокирует строку задачи
// до конца транзакции; все изменения по задаче идут через эту блокировку.
func LoadTask(tx *gorm.DB, id uint, lock bool) (*models.Task, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var task models.Task
	if err := q.First(&task, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("task", id)
		}
		return nil, fmt.Errorf("load task %d: %w", id, err)
	}
	recs, err := LoadReceivables(tx, id)
	if err != nil {
		return nil, err
	}
	task.Receivables = recs
	if err := tx.Where("task_id = ?", id).Order("id").Find(&task.Requirements).Error; err != nil {
		return nil, fmt.Errorf("load requirements: %w", err)
	}
	return &task, nil
}

func LoadReceivables(tx *gorm.DB, taskID uint) ([]models.Receivable, error) {
	var recs []models.Receivable
	err := tx.Preload("Payments", byID).Preload("Allocations", byID).
		Where("task_id = ?", taskID).Order("id").Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("load receivables of task %d: %w", taskID, err)
	}
	return recs, nil
}

// CheckVersion сравнивает версию задачи с той, которую видел клиент. nil - без проверки.
func CheckVersion(task *models.Task, expected *int) error {
	if expected != nil && *expected != task.Version {
		return apperr.Concurrent("task", task.ID,
			"task %d was modified: version is %d, request was made against %d", task.ID, task.Version, *expected)
	}
	return nil
}

// BumpVersion сохраняет поля задачи и увеличивает версию.
// Условие по версии страхует базы без построчных блокировок.
func BumpVersion(tx *gorm.DB, task *models.Task, fields map[string]any) error {
	if fields == nil {
		fields = map[string]any{}
	}
	fields["version"] = task.Version + 1
	res := tx.Model(&models.Task{}).Where("id = ? AND version = ?", task.ID, task.Version).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update task %d: %w", task.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Concurrent("task", task.ID, "task %d was modified by another request", task.ID)
	}
	task.Version++
	return nil
}

// Audit пишет запись журнала. details сохраняется как JSON.
func Audit(tx *gorm.DB, taskID uint, action string, actor uint, details any) error {
	raw, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	entry := models.AuditEntry{TaskID: taskID, Action: action, ActorID: actor, Details: datatypes.JSON(raw)}
	if err := tx.Create(&entry).Error; err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}

// AuditTrail - журнал задачи от новых записей к старым.
func AuditTrail(db *gorm.DB, taskID uint) ([]models.AuditEntry, error) {
	var entries []models.AuditEntry
	if err := db.Where("task_id = ?", taskID).Order("id desc").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load audit of task %d: %w", taskID, err)
	}
	return entries, nil
}
