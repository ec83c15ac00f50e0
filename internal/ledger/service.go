// Package ledger отвечает за денежную часть задач: дебиторки, платежи,
// зачеты кредита и разрешение конфликтов при изменении сумм.
package ledger

import (
	"fmt"
	"time"

	"agency-crm/internal/apperr"
	"agency-crm/internal/lifecycle"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	now func() time.Time
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, now: time.Now}
}

func setReceivableAmount(tx *gorm.DB, rec *models.Receivable, amount decimal.Decimal) error {
	if err := tx.Model(&models.Receivable{}).Where("id = ?", rec.ID).Update("amount", amount).Error; err != nil {
		return fmt.Errorf("resize receivable %d: %w", rec.ID, err)
	}
	rec.Amount = amount
	return nil
}

// ensureMain возвращает основную дебиторку, создавая её при отсутствии.
func ensureMain(tx *gorm.DB, task *models.Task) (*models.Receivable, error) {
	if rec := task.Receivable(models.ReceivableMain); rec != nil {
		return rec, nil
	}
	rec := models.Receivable{TaskID: task.ID, Kind: models.ReceivableMain, Amount: task.MainCeiling(), DueDate: task.EndDate}
	if err := tx.Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("create main receivable: %w", err)
	}
	task.Receivables = append(task.Receivables, rec)
	return task.Receivable(models.ReceivableMain), nil
}

// checkEditable запрещает менять деньги завершенной или отмененной задачи.
func checkEditable(task *models.Task) error {
	if lifecycle.Editable(task.Status) {
		return nil
	}
	return apperr.Rejected("task is %s: amounts can only change while it is New, Deferred or Pending Review", task.Status)
}

// checkInvariant: платежи и зачеты дебиторки не превышают её сумму.
func checkInvariant(recs []models.Receivable) error {
	for i := range recs {
		rec := &recs[i]
		collected := rec.Collected()
		if collected.GreaterThan(rec.Amount) {
			surplus := collected.Sub(rec.Amount)
			return apperr.RejectedWith(
				map[string]any{"receivable_id": rec.ID, "kind": rec.Kind, "amount": rec.Amount, "collected": collected, "surplus": surplus},
				"%s receivable %d still holds %s over its amount %s",
				rec.Kind, rec.ID, surplus.StringFixed(2), rec.Amount.StringFixed(2),
			)
		}
	}
	return nil
}

func creditBalance(tx *gorm.DB, clientID uint) (decimal.Decimal, error) {
	var balances []decimal.Decimal
	if err := tx.Model(&models.ClientCredit{}).Where("client_id = ?", clientID).Pluck("balance", &balances).Error; err != nil {
		return decimal.Zero, fmt.Errorf("load client credit balance: %w", err)
	}
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b)
	}
	return total, nil
}

// summarize перечитывает задачу и собирает итог операции.
func summarize(tx *gorm.DB, taskID, clientID uint, applied []dto.AppliedAction) (*dto.ResolutionSummary, error) {
	task, err := store.LoadTask(tx, taskID, false)
	if err != nil {
		return nil, err
	}
	balance, err := creditBalance(tx, clientID)
	if err != nil {
		return nil, err
	}
	out := task.DTO()
	if applied == nil {
		applied = []dto.AppliedAction{}
	}
	receivables := out.Receivables
	if receivables == nil {
		receivables = []dto.ReceivableBalance{}
	}
	return &dto.ResolutionSummary{
		Task:                &out,
		Receivables:         receivables,
		ClientCreditBalance: balance,
		Applied:             applied,
	}, nil
}
