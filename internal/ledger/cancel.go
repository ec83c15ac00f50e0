package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"agency-crm/internal/apperr"
	"agency-crm/internal/lifecycle"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/decision"
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CancelTask отменяет или удаляет задачу вместе с решениями по её деньгам.
// cancel оставляет задачу в статусе Cancelled, delete стирает её полностью.
func (s *Service) CancelTask(ctx context.Context, taskID uint, req dto.CancelTaskRequest, actor uint) (*dto.ResolutionSummary, error) {
	if !req.TaskAction.Valid() {
		return nil, fmt.Errorf("%w: unknown task_action %q", decision.ErrInvalidDecision, req.TaskAction)
	}
	opts := decision.Options{}
	prepaidSet, err := decodeOptional(req.PrepaidReceivableDecisions, opts)
	if err != nil {
		return nil, err
	}
	mainSet, err := decodeOptional(req.MainReceivableDecisions, opts)
	if err != nil {
		return nil, err
	}
	if req.TaskAction == decision.TaskActionDelete {
		if err := forbidKeep(prepaidSet); err != nil {
			return nil, err
		}
		if err := forbidKeep(mainSet); err != nil {
			return nil, err
		}
	}

	var summary *dto.ResolutionSummary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := store.LoadTask(tx, taskID, true)
		if err != nil {
			return err
		}
		if err := store.CheckVersion(task, req.ExpectedVersion); err != nil {
			return err
		}
		to, err := lifecycle.Next(task.Status, lifecycle.ActionCancel)
		if err != nil {
			return apperr.Rejected("%v", err)
		}

		sets := map[models.ReceivableKind]decision.Set{
			models.ReceivablePrepaid: prepaidSet,
			models.ReceivableMain:    mainSet,
		}
		var applied []dto.AppliedAction
		for i := range task.Receivables {
			rec := &task.Receivables[i]
			set := sets[rec.Kind]
			if err := matchDecisions(rec, set); err != nil {
				return err
			}
			acts, err := s.applyDecisions(tx, task, rec, set, opts, decimal.NullDecimal{})
			if err != nil {
				return err
			}
			applied = append(applied, acts...)
		}
		if err := matchOrphans(task, sets); err != nil {
			return err
		}

		if req.TaskAction == decision.TaskActionDelete {
			if err := store.Audit(tx, task.ID, "delete_task", actor, map[string]any{"status": task.Status, "applied": applied}); err != nil {
				return err
			}
			if err := purgeTask(tx, task); err != nil {
				return err
			}
			balance, err := creditBalance(tx, task.ClientID)
			if err != nil {
				return err
			}
			if applied == nil {
				applied = []dto.AppliedAction{}
			}
			summary = &dto.ResolutionSummary{
				TaskDeleted:         true,
				Receivables:         []dto.ReceivableBalance{},
				ClientCreditBalance: balance,
				Applied:             applied,
			}
			return nil
		}

		// дебиторки сжимаются до того, что на них осталось
		recs, err := store.LoadReceivables(tx, task.ID)
		if err != nil {
			return err
		}
		for i := range recs {
			if err := setReceivableAmount(tx, &recs[i], recs[i].Collected()); err != nil {
				return err
			}
		}
		if err := store.Audit(tx, task.ID, "cancel_task", actor, map[string]any{"status": task.Status, "applied": applied}); err != nil {
			return err
		}
		if err := store.BumpVersion(tx, task, map[string]any{"status": to}); err != nil {
			return err
		}
		summary, err = summarize(tx, task.ID, task.ClientID, applied)
		return err
	})
	if err != nil {
		slog.Warn("Отмена задачи отклонена", "task_id", taskID, "actor", actor, "task_action", req.TaskAction, "error", err)
		return nil, err
	}
	slog.Info("Задача отменена", "task_id", taskID, "actor", actor, "task_action", req.TaskAction, "deleted", summary.TaskDeleted)
	return summary, nil
}

func decodeOptional(d *dto.ReceivableDecisions, opts decision.Options) (decision.Set, error) {
	if d == nil {
		return decision.NewSet(), nil
	}
	return d.Decode(opts)
}

func forbidKeep(set decision.Set) error {
	for id, d := range set.Payments {
		if _, ok := d.(decision.KeepPayment); ok {
			return fmt.Errorf("%w: payment %d: keep is not allowed when deleting the task", decision.ErrInvalidDecision, id)
		}
	}
	for id, d := range set.Allocations {
		if _, ok := d.(decision.KeepAllocation); ok {
			return fmt.Errorf("%w: allocation %d: keep is not allowed when deleting the task", decision.ErrInvalidDecision, id)
		}
	}
	return nil
}

// matchOrphans ловит решения для дебиторки, которой у задачи уже нет.
func matchOrphans(task *models.Task, sets map[models.ReceivableKind]decision.Set) error {
	for kind, set := range sets {
		if task.Receivable(kind) != nil || set.Empty() {
			continue
		}
		payments, allocations := set.Unknown(nil, nil)
		if len(payments) > 0 {
			return apperr.Concurrent("payment", payments[0], "task %d has no %s receivable for payment %d", task.ID, kind, payments[0])
		}
		return apperr.Concurrent("allocation", allocations[0], "task %d has no %s receivable for allocation %d", task.ID, kind, allocations[0])
	}
	return nil
}

// purgeTask физически удаляет задачу со всеми дочерними записями.
func purgeTask(tx *gorm.DB, task *models.Task) error {
	var ids []uint
	if err := tx.Unscoped().Model(&models.Receivable{}).Where("task_id = ?", task.ID).Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("list receivables: %w", err)
	}
	if len(ids) > 0 {
		// кредиты из конвертации переживают задачу, ссылка на платеж остается только в заметке
		paymentIDs := tx.Unscoped().Model(&models.Payment{}).Select("id").Where("receivable_id IN ?", ids)
		if err := tx.Model(&models.ClientCredit{}).Where("source_payment_id IN (?)", paymentIDs).
			Update("source_payment_id", nil).Error; err != nil {
			return fmt.Errorf("detach converted credits: %w", err)
		}
		if err := tx.Unscoped().Where("receivable_id IN ?", ids).Delete(&models.Payment{}).Error; err != nil {
			return fmt.Errorf("purge payments: %w", err)
		}
		if err := tx.Unscoped().Where("receivable_id IN ?", ids).Delete(&models.Allocation{}).Error; err != nil {
			return fmt.Errorf("purge allocations: %w", err)
		}
	}
	if err := tx.Unscoped().Where("task_id = ?", task.ID).Delete(&models.Receivable{}).Error; err != nil {
		return fmt.Errorf("purge receivables: %w", err)
	}
	if err := tx.Unscoped().Where("task_id = ?", task.ID).Delete(&models.TaskRequirement{}).Error; err != nil {
		return fmt.Errorf("purge requirements: %w", err)
	}
	if err := tx.Unscoped().Delete(&models.Task{}, task.ID).Error; err != nil {
		return fmt.Errorf("purge task: %w", err)
	}
	return nil
}
