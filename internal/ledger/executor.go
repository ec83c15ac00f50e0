package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"agency-crm/internal/apperr"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/decision"
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ResolvePrepaidChange меняет сумму предоплаты, применяя решения оператора по каждому
// платежу и зачету предоплатной дебиторки. Всё или ничего.
func (s *Service) ResolvePrepaidChange(ctx context.Context, taskID uint, req dto.ResolvePrepaidChangeRequest, actor uint) (*dto.ResolutionSummary, error) {
	rd := req.Decisions.ReceivableDecision
	if !rd.Valid() {
		return nil, fmt.Errorf("%w: unknown receivable_decision %q", decision.ErrInvalidDecision, rd)
	}
	newPrepaid := req.NewPrepaidAmount
	switch {
	case rd == decision.EliminatePrepaid && !newPrepaid.IsZero():
		return nil, apperr.Rejected("eliminate_prepaid requires new prepaid amount 0, got %s", newPrepaid.StringFixed(2))
	case rd == decision.AdjustToNewAmount && !newPrepaid.IsPositive():
		return nil, apperr.Rejected("adjust_to_new_amount requires a positive prepaid amount; use eliminate_prepaid to drop it")
	}
	opts := decision.Options{AllowReduce: true}
	set, err := req.Decisions.Decode(opts)
	if err != nil {
		return nil, err
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
		if err := checkEditable(task); err != nil {
			return err
		}
		if err := validatePrepaid(task.Amount, newPrepaid); err != nil {
			return err
		}
		rec := task.Receivable(models.ReceivablePrepaid)
		if rec == nil {
			return apperr.NotFound("prepaid receivable of task", task.ID)
		}
		if err := matchDecisions(rec, set); err != nil {
			return err
		}

		main, err := ensureMain(tx, task)
		if err != nil {
			return err
		}
		ceiling := newPrepaid
		if rd == decision.EliminatePrepaid {
			// платежи переезжают в основную дебиторку, их потолок - её свободный остаток
			ceiling = task.Amount.Sub(main.Collected())
		}
		applied, err := s.applyDecisions(tx, task, rec, set, opts, decimal.NewNullDecimal(ceiling))
		if err != nil {
			return err
		}

		switch rd {
		case decision.AdjustToNewAmount:
			if err := setReceivableAmount(tx, rec, newPrepaid); err != nil {
				return err
			}
		case decision.EliminatePrepaid:
			if err := moveRecords(tx, rec.ID, main.ID); err != nil {
				return err
			}
			if err := tx.Delete(&models.Receivable{}, rec.ID).Error; err != nil {
				return fmt.Errorf("delete prepaid receivable: %w", err)
			}
		}
		if err := setReceivableAmount(tx, main, task.Amount.Sub(newPrepaid)); err != nil {
			return err
		}

		if err := verify(tx, task.ID); err != nil {
			return err
		}
		if err := store.Audit(tx, task.ID, "resolve_prepaid_change", actor, map[string]any{
			"from":                task.PrepaidAmount,
			"to":                  newPrepaid,
			"receivable_decision": rd,
			"applied":             applied,
		}); err != nil {
			return err
		}
		if err := store.BumpVersion(tx, task, map[string]any{"prepaid_amount": newPrepaid}); err != nil {
			return err
		}
		summary, err = summarize(tx, task.ID, task.ClientID, applied)
		return err
	})
	if err != nil {
		slog.Warn("Изменение предоплаты отклонено", "task_id", taskID, "actor", actor, "error", err)
		return nil, err
	}
	slog.Info("Предоплата изменена", "task_id", taskID, "actor", actor, "new_prepaid", newPrepaid.StringFixed(2), "applied", len(summary.Applied))
	return summary, nil
}

// ResolveAmountChange меняет сумму задачи с решениями по основной дебиторке.
func (s *Service) ResolveAmountChange(ctx context.Context, taskID uint, req dto.ResolveAmountChangeRequest, actor uint) (*dto.ResolutionSummary, error) {
	opts := decision.Options{AllowReduce: true}
	set, err := req.MainReceivableDecisions.Decode(opts)
	if err != nil {
		return nil, err
	}
	newAmount := req.NewTaskAmount

	var summary *dto.ResolutionSummary
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := store.LoadTask(tx, taskID, true)
		if err != nil {
			return err
		}
		if err := store.CheckVersion(task, req.ExpectedVersion); err != nil {
			return err
		}
		if err := checkEditable(task); err != nil {
			return err
		}
		if err := validateAmount(newAmount, task.PrepaidAmount); err != nil {
			return err
		}
		main := task.Receivable(models.ReceivableMain)
		if main == nil {
			return apperr.NotFound("main receivable of task", task.ID)
		}
		if err := matchDecisions(main, set); err != nil {
			return err
		}

		ceiling := newAmount.Sub(task.PrepaidAmount)
		applied, err := s.applyDecisions(tx, task, main, set, opts, decimal.NewNullDecimal(ceiling))
		if err != nil {
			return err
		}
		if err := setReceivableAmount(tx, main, ceiling); err != nil {
			return err
		}
		if err := verify(tx, task.ID); err != nil {
			return err
		}
		if err := store.Audit(tx, task.ID, "resolve_amount_change", actor, map[string]any{
			"from":    task.Amount,
			"to":      newAmount,
			"applied": applied,
		}); err != nil {
			return err
		}
		if err := store.BumpVersion(tx, task, map[string]any{"amount": newAmount}); err != nil {
			return err
		}
		summary, err = summarize(tx, task.ID, task.ClientID, applied)
		return err
	})
	if err != nil {
		slog.Warn("Изменение суммы задачи отклонено", "task_id", taskID, "actor", actor, "error", err)
		return nil, err
	}
	slog.Info("Сумма задачи изменена", "task_id", taskID, "actor", actor, "new_amount", newAmount.StringFixed(2), "applied", len(summary.Applied))
	return summary, nil
}

// matchDecisions сверяет решения с записями, которые сейчас висят на дебиторке.
// Решение по исчезнувшей записи значит, что данные поменялись после загрузки.
func matchDecisions(rec *models.Receivable, set decision.Set) error {
	paymentIDs, allocationIDs := rec.PaymentIDs(), rec.AllocationIDs()
	payments, allocations := set.Unknown(paymentIDs, allocationIDs)
	if len(payments) > 0 {
		return apperr.Concurrent("payment", payments[0],
			"payment %d is no longer attached to %s receivable %d", payments[0], rec.Kind, rec.ID)
	}
	if len(allocations) > 0 {
		return apperr.Concurrent("allocation", allocations[0],
			"allocation %d is no longer attached to %s receivable %d", allocations[0], rec.Kind, rec.ID)
	}
	return set.Missing(paymentIDs, allocationIDs)
}

// applyDecisions исполняет решения по записям дебиторки внутри транзакции tx.
func (s *Service) applyDecisions(tx *gorm.DB, task *models.Task, rec *models.Receivable, set decision.Set,
	opts decision.Options, ceiling decimal.NullDecimal) ([]dto.AppliedAction, error) {
	applied := make([]dto.AppliedAction, 0, len(rec.Payments)+len(rec.Allocations))

	for _, p := range rec.Payments {
		d := set.Payments[p.ID]
		act := dto.AppliedAction{RecordType: "payment", RecordID: p.ID, Action: d.Action(), Amount: p.Amount}
		switch d := d.(type) {
		case decision.KeepPayment:
		case decision.DeletePayment:
			if err := tx.Delete(&models.Payment{}, p.ID).Error; err != nil {
				return nil, fmt.Errorf("delete payment %d: %w", p.ID, err)
			}
		case decision.ConvertPaymentToCredit:
			pid := p.ID
			credit := models.ClientCredit{
				ClientID:        task.ClientID,
				Source:          models.CreditFromPaymentConversion,
				Amount:          p.Amount,
				Balance:         p.Amount,
				SourcePaymentID: &pid,
				Note:            fmt.Sprintf("payment %d of task %d", p.ID, task.ID),
			}
			if err := tx.Create(&credit).Error; err != nil {
				return nil, fmt.Errorf("convert payment %d: %w", p.ID, err)
			}
			if err := tx.Delete(&models.Payment{}, p.ID).Error; err != nil {
				return nil, fmt.Errorf("convert payment %d: %w", p.ID, err)
			}
			act.ClientCreditID = &credit.ID
		case decision.ReducePayment:
			if err := decision.ValidateReduce(p.ID, d.Amount, p.Amount, ceiling, opts); err != nil {
				return nil, apperr.Rejected("%v", err)
			}
			if err := tx.Model(&models.Payment{}).Where("id = ?", p.ID).Update("amount", d.Amount).Error; err != nil {
				return nil, fmt.Errorf("reduce payment %d: %w", p.ID, err)
			}
			act.Amount = d.Amount
		}
		applied = append(applied, act)
	}

	for _, a := range rec.Allocations {
		d := set.Allocations[a.ID]
		act := dto.AppliedAction{RecordType: "allocation", RecordID: a.ID, Action: d.Action(), Amount: a.Amount}
		switch d.(type) {
		case decision.KeepAllocation:
		case decision.ReturnAllocationToCredit:
			if err := refundCredit(tx, a); err != nil {
				return nil, err
			}
			creditID := a.ClientCreditID
			act.ClientCreditID = &creditID
			if err := tx.Delete(&models.Allocation{}, a.ID).Error; err != nil {
				return nil, fmt.Errorf("return allocation %d: %w", a.ID, err)
			}
		case decision.DeleteAllocation:
			if err := tx.Delete(&models.Allocation{}, a.ID).Error; err != nil {
				return nil, fmt.Errorf("delete allocation %d: %w", a.ID, err)
			}
		}
		applied = append(applied, act)
	}
	return applied, nil
}

// refundCredit возвращает сумму зачета в кредит, из которого она была взята.
func refundCredit(tx *gorm.DB, a models.Allocation) error {
	var credit models.ClientCredit
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&credit, a.ClientCreditID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.Concurrent("client_credit", a.ClientCreditID,
			"client credit %d behind allocation %d no longer exists", a.ClientCreditID, a.ID)
	}
	if err != nil {
		return fmt.Errorf("load client credit %d: %w", a.ClientCreditID, err)
	}
	balance := credit.Balance.Add(a.Amount)
	if err := tx.Model(&models.ClientCredit{}).Where("id = ?", credit.ID).Update("balance", balance).Error; err != nil {
		return fmt.Errorf("refund client credit %d: %w", credit.ID, err)
	}
	return nil
}

// moveRecords переносит оставшиеся платежи и зачеты на другую дебиторку.
func moveRecords(tx *gorm.DB, from, to uint) error {
	if err := tx.Model(&models.Payment{}).Where("receivable_id = ?", from).Update("receivable_id", to).Error; err != nil {
		return fmt.Errorf("move payments: %w", err)
	}
	if err := tx.Model(&models.Allocation{}).Where("receivable_id = ?", from).Update("receivable_id", to).Error; err != nil {
		return fmt.Errorf("move allocations: %w", err)
	}
	return nil
}

// verify перечитывает дебиторки и проверяет, что ни одна не переполнена.
func verify(tx *gorm.DB, taskID uint) error {
	recs, err := store.LoadReceivables(tx, taskID)
	if err != nil {
		return err
	}
	return checkInvariant(recs)
}
