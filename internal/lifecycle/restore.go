package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agency-crm/internal/apperr"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ValidateRestore перечисляет, что удалит возврат завершенной задачи в работу.
func (c *Controller) ValidateRestore(ctx context.Context, id uint) (*dto.RestoreValidation, error) {
	db := c.db.WithContext(ctx)
	task, err := store.LoadTask(db, id, false)
	if err != nil {
		return nil, err
	}
	return validateRestore(db, task)
}

func validateRestore(tx *gorm.DB, task *models.Task) (*dto.RestoreValidation, error) {
	v := &dto.RestoreValidation{
		Allowed: true,
		Consequences: dto.RestoreConsequences{
			Task:             dto.TaskRef{ID: task.ID, Title: task.Title, Status: task.Status},
			InvoicesToDelete: []dto.InvoiceConsequence{},
		},
	}

	var invoices []models.Invoice
	if err := tx.Where("task_id = ?", task.ID).Order("id").Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("load invoices: %w", err)
	}
	collected := make(map[uint]bool, len(task.Receivables))
	for i := range task.Receivables {
		collected[task.Receivables[i].ID] = task.Receivables[i].Collected().IsPositive()
	}
	for _, inv := range invoices {
		v.Consequences.InvoicesToDelete = append(v.Consequences.InvoicesToDelete, dto.InvoiceConsequence{
			ID:          inv.ID,
			Number:      inv.Number,
			Amount:      inv.Amount,
			HasPayments: collected[inv.ReceivableID],
		})
	}

	commission, err := activeCommission(tx, task.ID)
	if err != nil {
		return nil, err
	}
	if commission != nil {
		v.Consequences.CommissionToDelete = &dto.CommissionConsequence{
			ID:         commission.ID,
			EmployeeID: commission.EmployeeID,
			Amount:     commission.Amount,
			Status:     commission.Status,
		}
	}

	switch {
	case task.Status != models.StatusCompleted:
		v.Allowed = false
		v.Reason = fmt.Sprintf("task is %q, only completed tasks can be restored", task.Status)
	case commission != nil && commission.Status == models.CommissionPaid:
		v.Allowed = false
		v.Reason = "commission for this task is already paid out"
	}
	return v, nil
}

func activeCommission(tx *gorm.DB, taskID uint) (*models.Commission, error) {
	var commission models.Commission
	err := tx.Where("task_id = ? AND status <> ?", taskID, models.CommissionVoided).Order("id desc").First(&commission).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load commission: %w", err)
	}
	return &commission, nil
}

// Restore возвращает завершенную задачу в New. Проверка повторяется под блокировкой:
// между validate-restore и подтверждением комиссию могли выплатить.
func (c *Controller) Restore(ctx context.Context, id uint, req dto.RestoreRequest, actor uint) (*models.Task, error) {
	var restored *models.Task
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := store.LoadTask(tx, id, true)
		if err != nil {
			return err
		}
		if err := store.CheckVersion(task, req.ExpectedVersion); err != nil {
			return err
		}
		v, err := validateRestore(tx, task)
		if err != nil {
			return err
		}
		if !v.Allowed {
			return apperr.RejectedWith(v, "restore is blocked: %s", v.Reason)
		}
		if !req.Confirm {
			return apperr.RejectedWith(v, "restore must be confirmed after reviewing its consequences")
		}
		to, err := Next(task.Status, ActionRestore)
		if err != nil {
			return apperr.Rejected("%v", err)
		}

		if err := tx.Where("task_id = ?", task.ID).Delete(&models.Invoice{}).Error; err != nil {
			return fmt.Errorf("delete invoices: %w", err)
		}
		if cc := v.Consequences.CommissionToDelete; cc != nil {
			if err := tx.Model(&models.Commission{}).Where("id = ?", cc.ID).Update("status", models.CommissionVoided).Error; err != nil {
				return fmt.Errorf("void commission: %w", err)
			}
		}
		if err := store.BumpVersion(tx, task, map[string]any{"status": to, "completed_at": nil}); err != nil {
			return err
		}
		if err := store.Audit(tx, task.ID, string(ActionRestore), actor, v.Consequences); err != nil {
			return err
		}
		restored, err = store.LoadTask(tx, task.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Задача возвращена в работу", "task_id", id, "actor", actor)
	return restored, nil
}

// MarkCommissionPaid отмечает выплату комиссии. После этого задачу уже нельзя вернуть в работу.
func (c *Controller) MarkCommissionPaid(ctx context.Context, id uint, actor uint) (*models.Commission, error) {
	var commission models.Commission
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&commission, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("commission", id)
		}
		if err != nil {
			return fmt.Errorf("load commission: %w", err)
		}
		if commission.Status != models.CommissionPending {
			return apperr.Rejected("commission %d is %s, only pending commissions can be paid", id, commission.Status)
		}
		now := c.now()
		if err := tx.Model(&commission).Updates(map[string]any{"status": models.CommissionPaid, "paid_at": now}).Error; err != nil {
			return fmt.Errorf("pay commission: %w", err)
		}
		commission.Status = models.CommissionPaid
		commission.PaidAt = &now
		return store.Audit(tx, commission.TaskID, "commission_paid", actor, map[string]any{"commission_id": id, "amount": commission.Amount})
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Комиссия выплачена", "commission_id", id, "task_id", commission.TaskID, "actor", actor)
	return &commission, nil
}
