package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"agency-crm/internal/apperr"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ApplyTaskEdit применяет обычное редактирование задачи.
// Если новые суммы не вмещают уже собранные деньги, возвращает конфликт с отчетом
// и ничего не меняет: такие правки проходят только через Resolve*.
func (s *Service) ApplyTaskEdit(ctx context.Context, taskID uint, req dto.UpdateTaskRequest, actor uint) (*models.Task, error) {
	var updated *models.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := store.LoadTask(tx, taskID, true)
		if err != nil {
			return err
		}
		if err := store.CheckVersion(task, &req.Version); err != nil {
			return err
		}

		newAmount := task.Amount
		if req.Amount != nil {
			newAmount = *req.Amount
		}
		newPrepaid := task.PrepaidAmount
		if req.PrepaidAmount != nil {
			newPrepaid = *req.PrepaidAmount
		}
		if newAmount.IsNegative() {
			return apperr.Rejected("task amount cannot be negative")
		}
		if err := validatePrepaid(newAmount, newPrepaid); err != nil {
			return err
		}
		if req.ExpenseAmount != nil && req.ExpenseAmount.IsNegative() {
			return apperr.Rejected("expense amount cannot be negative")
		}

		amountChanged := !newAmount.Equal(task.Amount)
		prepaidChanged := !newPrepaid.Equal(task.PrepaidAmount)
		expenseChanged := req.ExpenseAmount != nil && !req.ExpenseAmount.Equal(task.ExpenseAmount)
		if amountChanged || prepaidChanged || expenseChanged {
			if err := checkEditable(task); err != nil {
				return err
			}
		}

		if prepaidChanged {
			if report := prepaidReport(task, newPrepaid); report.HasConflict {
				if amountChanged {
					report.PendingTaskAmount = &newAmount
				}
				return apperr.Conflict(dto.ConflictTypePrepaid, report)
			}
		}
		if main := task.Receivable(models.ReceivableMain); main != nil {
			collected := main.Collected()
			if collected.GreaterThan(newAmount.Sub(newPrepaid)) {
				ceiling := newAmount.Sub(task.PrepaidAmount)
				if amountChanged && collected.GreaterThan(ceiling) {
					report := amountReport(task, newAmount, ceiling)
					if prepaidChanged {
						report.PendingPrepaidAmount = &newPrepaid
					}
					return apperr.Conflict(dto.ConflictTypeAmount, report)
				}
				return apperr.RejectedWith(amountReport(task, newAmount, newAmount.Sub(newPrepaid)),
					"raising prepaid to %s leaves main receivable %s below the %s already collected; resolve the main receivable first",
					newPrepaid.StringFixed(2), newAmount.Sub(newPrepaid).StringFixed(2), collected.StringFixed(2))
			}
		}

		fields := map[string]any{}
		if req.Title != nil {
			fields["title"] = *req.Title
		}
		if req.Description != nil {
			fields["description"] = *req.Description
		}
		switch {
		case req.AssigneeID == nil:
		case *req.AssigneeID == 0:
			fields["assignee_id"] = nil
		default:
			fields["assignee_id"] = *req.AssigneeID
		}
		if req.ExpenseAmount != nil {
			fields["expense_amount"] = *req.ExpenseAmount
		}
		if req.StartDate != nil {
			fields["start_date"] = *req.StartDate
		}
		if req.EndDate != nil {
			fields["end_date"] = *req.EndDate
		}
		if req.Tags != nil {
			fields["tags"] = models.TagList(req.Tags)
		}
		if amountChanged || prepaidChanged {
			fields["amount"] = newAmount
			fields["prepaid_amount"] = newPrepaid
			if err := syncReceivables(tx, task, newAmount, newPrepaid); err != nil {
				return err
			}
			if err := store.Audit(tx, task.ID, "task_edit", actor, map[string]any{
				"amount":         map[string]decimal.Decimal{"from": task.Amount, "to": newAmount},
				"prepaid_amount": map[string]decimal.Decimal{"from": task.PrepaidAmount, "to": newPrepaid},
			}); err != nil {
				return err
			}
		}
		if err := store.BumpVersion(tx, task, fields); err != nil {
			return err
		}

		updated, err = store.LoadTask(tx, task.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Задача обновлена", "task_id", taskID, "actor", actor, "version", updated.Version)
	return updated, nil
}

// syncReceivables подгоняет дебиторки под суммы задачи. Вызывается только когда
// собранные деньги уже проверены на вместимость.
func syncReceivables(tx *gorm.DB, task *models.Task, amount, prepaid decimal.Decimal) error {
	rec := task.Receivable(models.ReceivablePrepaid)
	switch {
	case prepaid.IsPositive() && rec == nil:
		created := models.Receivable{TaskID: task.ID, Kind: models.ReceivablePrepaid, Amount: prepaid, DueDate: task.StartDate}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("create prepaid receivable: %w", err)
		}
	case prepaid.IsPositive():
		if err := setReceivableAmount(tx, rec, prepaid); err != nil {
			return err
		}
	case rec != nil:
		if err := tx.Delete(&models.Receivable{}, rec.ID).Error; err != nil {
			return fmt.Errorf("delete prepaid receivable: %w", err)
		}
	}

	main, err := ensureMain(tx, task)
	if err != nil {
		return err
	}
	return setReceivableAmount(tx, main, amount.Sub(prepaid))
}
