package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agency-crm/internal/apperr"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// lockReceivable находит дебиторку и блокирует задачу, к которой она относится.
func lockReceivable(tx *gorm.DB, id uint) (*models.Task, *models.Receivable, error) {
	var rec models.Receivable
	if err := tx.First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, apperr.NotFound("receivable", id)
		}
		return nil, nil, fmt.Errorf("load receivable %d: %w", id, err)
	}
	task, err := store.LoadTask(tx, rec.TaskID, true)
	if err != nil {
		return nil, nil, err
	}
	for i := range task.Receivables {
		if task.Receivables[i].ID == id {
			return task, &task.Receivables[i], nil
		}
	}
	return nil, nil, apperr.Concurrent("receivable", id, "receivable %d was removed", id)
}

// checkRoom: новая сумма помещается в остаток дебиторки.
func checkRoom(task *models.Task, rec *models.Receivable, add decimal.Decimal) error {
	if task.Status == models.StatusCancelled {
		return apperr.Rejected("task %d is cancelled", task.ID)
	}
	if add.GreaterThan(rec.Outstanding()) {
		return apperr.Rejected("%s receivable %d has only %s outstanding, cannot take %s",
			rec.Kind, rec.ID, rec.Outstanding().StringFixed(2), add.StringFixed(2))
	}
	return nil
}

// RecordPayment вносит платеж по дебиторке. Переплата не принимается.
func (s *Service) RecordPayment(ctx context.Context, receivableID uint, req dto.PaymentRequest, actor uint) (*models.Payment, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Rejected("payment amount must be positive")
	}
	var payment models.Payment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, rec, err := lockReceivable(tx, receivableID)
		if err != nil {
			return err
		}
		if err := checkRoom(task, rec, req.Amount); err != nil {
			return err
		}
		paidAt := s.now()
		if req.PaidAt != nil {
			paidAt = *req.PaidAt
		}
		payment = models.Payment{ReceivableID: rec.ID, Amount: req.Amount, Method: strings.TrimSpace(req.Method), PaidAt: paidAt, CreatedByID: actor}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		if err := store.Audit(tx, task.ID, "record_payment", actor, map[string]any{"receivable_id": rec.ID, "payment_id": payment.ID, "amount": req.Amount}); err != nil {
			return err
		}
		return store.BumpVersion(tx, task, nil)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Платеж внесен", "payment_id", payment.ID, "receivable_id", receivableID, "amount", req.Amount.StringFixed(2), "actor", actor)
	return &payment, nil
}

// AllocateCredit зачитывает часть кредита клиента в дебиторку его же задачи.
func (s *Service) AllocateCredit(ctx context.Context, receivableID uint, req dto.AllocationRequest, actor uint) (*models.Allocation, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Rejected("allocation amount must be positive")
	}
	var allocation models.Allocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, rec, err := lockReceivable(tx, receivableID)
		if err != nil {
			return err
		}
		if err := checkRoom(task, rec, req.Amount); err != nil {
			return err
		}

		var credit models.ClientCredit
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&credit, req.ClientCreditID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("client_credit", req.ClientCreditID)
		}
		if err != nil {
			return fmt.Errorf("load client credit: %w", err)
		}
		if credit.ClientID != task.ClientID {
			return apperr.Rejected("client credit %d belongs to another client", credit.ID)
		}
		if req.Amount.GreaterThan(credit.Balance) {
			return apperr.Rejected("client credit %d has only %s left", credit.ID, credit.Balance.StringFixed(2))
		}

		balance := credit.Balance.Sub(req.Amount)
		if err := tx.Model(&models.ClientCredit{}).Where("id = ?", credit.ID).Update("balance", balance).Error; err != nil {
			return fmt.Errorf("draw client credit: %w", err)
		}
		allocation = models.Allocation{ReceivableID: rec.ID, ClientCreditID: credit.ID, Amount: req.Amount, AllocatedAt: s.now()}
		if err := tx.Create(&allocation).Error; err != nil {
			return fmt.Errorf("create allocation: %w", err)
		}
		if err := store.Audit(tx, task.ID, "allocate_credit", actor, map[string]any{
			"receivable_id": rec.ID, "allocation_id": allocation.ID, "client_credit_id": credit.ID, "amount": req.Amount,
		}); err != nil {
			return err
		}
		return store.BumpVersion(tx, task, nil)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Кредит клиента зачтен", "allocation_id", allocation.ID, "receivable_id", receivableID, "amount", req.Amount.StringFixed(2), "actor", actor)
	return &allocation, nil
}

func (s *Service) CreateClient(ctx context.Context, req dto.CreateClientRequest) (*models.Client, error) {
	kind := models.ClientType(req.Type)
	if !kind.Valid() {
		return nil, apperr.Rejected("unknown client type %q", req.Type)
	}
	client := models.Client{Name: strings.TrimSpace(req.Name), Type: kind, Email: req.Email, Phone: req.Phone}
	if client.Name == "" {
		return nil, apperr.Rejected("client name is empty")
	}
	if err := s.db.WithContext(ctx).Create(&client).Error; err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	slog.Info("Клиент создан", "client_id", client.ID, "type", client.Type)
	return &client, nil
}

func (s *Service) GetClient(ctx context.Context, id uint) (*models.Client, error) {
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("client", id)
		}
		return nil, fmt.Errorf("load client %d: %w", id, err)
	}
	return &client, nil
}

// ClientCredits возвращает кредитный пул клиента: общий остаток и все записи.
func (s *Service) ClientCredits(ctx context.Context, clientID uint) (*dto.ClientCredits, error) {
	db := s.db.WithContext(ctx)
	if _, err := s.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	var credits []models.ClientCredit
	if err := db.Where("client_id = ?", clientID).Order("id").Find(&credits).Error; err != nil {
		return nil, fmt.Errorf("load client credits: %w", err)
	}
	out := &dto.ClientCredits{ClientID: clientID, Credits: make([]dto.Credit, 0, len(credits))}
	for i := range credits {
		out.Balance = out.Balance.Add(credits[i].Balance)
		out.Credits = append(out.Credits, credits[i].DTO())
	}
	return out, nil
}

// GrantCredit заводит кредит вручную, например при возврате денег вне задач.
func (s *Service) GrantCredit(ctx context.Context, clientID uint, req dto.CreditRequest, actor uint) (*models.ClientCredit, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Rejected("credit amount must be positive")
	}
	if _, err := s.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	credit := models.ClientCredit{ClientID: clientID, Source: models.CreditManual, Amount: req.Amount, Balance: req.Amount, Note: req.Note}
	if err := s.db.WithContext(ctx).Create(&credit).Error; err != nil {
		return nil, fmt.Errorf("create client credit: %w", err)
	}
	slog.Info("Кредит клиенту выдан", "client_id", clientID, "credit_id", credit.ID, "amount", req.Amount.StringFixed(2), "actor", actor)
	return &credit, nil
}
