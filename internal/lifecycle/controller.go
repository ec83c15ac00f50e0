package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"agency-crm/internal/apperr"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"gorm.io/gorm"
)

// Controller меняет статусы задач. Каждая операция - одна транзакция
// с блокировкой строки задачи и проверкой версии.
type Controller struct {
	db       *gorm.DB
	formula  *Formula
	currency Currency
	now      func() time.Time
}

func NewController(db *gorm.DB, formula *Formula) *Controller {
	return &Controller{db: db, formula: formula, currency: DefaultCurrency, now: time.Now}
}

// WithCurrency задает валюту для суммы прописью в счетах.
func (c *Controller) WithCurrency(cur Currency) *Controller {
	if cur.Major != "" {
		c.currency = cur
	}
	return c
}

// CreateTask заводит задачу в статусе New вместе с дебиторками.
func (c *Controller) CreateTask(ctx context.Context, req dto.CreateTaskRequest, actor uint) (*models.Task, error) {
	if req.Amount.IsNegative() || req.PrepaidAmount.IsNegative() || req.ExpenseAmount.IsNegative() {
		return nil, apperr.Rejected("amounts cannot be negative")
	}
	if req.PrepaidAmount.GreaterThan(req.Amount) {
		return nil, apperr.Rejected("prepaid amount %s exceeds task amount %s", req.PrepaidAmount.StringFixed(2), req.Amount.StringFixed(2))
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperr.Rejected("task title is empty")
	}

	var created *models.Task
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var client models.Client
		if err := tx.First(&client, req.ClientID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("client", req.ClientID)
			}
			return fmt.Errorf("load client: %w", err)
		}

		task := models.Task{
			ClientID:      client.ID,
			AssigneeID:    req.AssigneeID,
			Title:         title,
			Description:   req.Description,
			Amount:        req.Amount,
			PrepaidAmount: req.PrepaidAmount,
			ExpenseAmount: req.ExpenseAmount,
			Status:        models.StatusNew,
			StartDate:     req.StartDate,
			EndDate:       req.EndDate,
			Tags:          models.TagList(req.Tags),
			Version:       1,
		}
		if err := tx.Create(&task).Error; err != nil {
			return fmt.Errorf("create task: %w", err)
		}
		for _, r := range req.Requirements {
			if strings.TrimSpace(r) == "" {
				continue
			}
			if err := tx.Create(&models.TaskRequirement{TaskID: task.ID, Title: strings.TrimSpace(r)}).Error; err != nil {
				return fmt.Errorf("create requirement: %w", err)
			}
		}
		if task.PrepaidAmount.IsPositive() {
			prepaid := models.Receivable{TaskID: task.ID, Kind: models.ReceivablePrepaid, Amount: task.PrepaidAmount, DueDate: task.StartDate}
			if err := tx.Create(&prepaid).Error; err != nil {
				return fmt.Errorf("create prepaid receivable: %w", err)
			}
		}
		main := models.Receivable{TaskID: task.ID, Kind: models.ReceivableMain, Amount: task.MainCeiling(), DueDate: task.EndDate}
		if err := tx.Create(&main).Error; err != nil {
			return fmt.Errorf("create main receivable: %w", err)
		}
		if err := store.Audit(tx, task.ID, "create_task", actor, map[string]any{"amount": task.Amount, "prepaid_amount": task.PrepaidAmount}); err != nil {
			return err
		}

		var err error
		created, err = store.LoadTask(tx, task.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Задача создана", "task_id", created.ID, "client_id", created.ClientID, "actor", actor)
	return created, nil
}

func (c *Controller) GetTask(ctx context.Context, id uint) (*models.Task, error) {
	return store.LoadTask(c.db.WithContext(ctx), id, false)
}

func (c *Controller) Defer(ctx context.Context, id uint, req dto.TransitionRequest, actor uint) (*models.Task, error) {
	return c.move(ctx, id, ActionDefer, req.Version, actor, nil)
}

func (c *Controller) Resume(ctx context.Context, id uint, req dto.TransitionRequest, actor uint) (*models.Task, error) {
	return c.move(ctx, id, ActionResume, req.Version, actor, nil)
}

func (c *Controller) Submit(ctx context.Context, id uint, req dto.TransitionRequest, actor uint) (*models.Task, error) {
	return c.move(ctx, id, ActionSubmit, req.Version, actor, nil)
}

// Reject возвращает задачу исполнителю с причиной.
func (c *Controller) Reject(ctx context.Context, id uint, req dto.TransitionRequest, actor uint) (*models.Task, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperr.Rejected("rejection reason is required")
	}
	return c.move(ctx, id, ActionReject, req.Version, actor, func(tx *gorm.DB, task *models.Task) (map[string]any, error) {
		return map[string]any{"rejection_reason": reason}, nil
	})
}

// Approve завершает задачу: выставляет счета по дебиторкам и начисляет комиссию исполнителю.
func (c *Controller) Approve(ctx context.Context, id uint, req dto.TransitionRequest, actor uint) (*models.Task, error) {
	return c.move(ctx, id, ActionApprove, req.Version, actor, func(tx *gorm.DB, task *models.Task) (map[string]any, error) {
		now := c.now()
		issued := *task
		issued.Version++
		for _, rec := range task.Receivables {
			if !rec.Amount.IsPositive() {
				continue
			}
			inv := models.Invoice{
				TaskID:        task.ID,
				ReceivableID:  rec.ID,
				Number:        invoiceNumber(&issued, rec.Kind),
				Amount:        rec.Amount,
				AmountInWords: c.currency.AmountInWords(rec.Amount),
				IssuedAt:      now,
				Status:        models.InvoiceIssued,
			}
			if err := tx.Create(&inv).Error; err != nil {
				return nil, fmt.Errorf("issue invoice: %w", err)
			}
		}

		if task.AssigneeID != nil && c.formula != nil {
			amount, err := c.formula.Commission(task)
			if err != nil {
				return nil, err
			}
			commission := models.Commission{
				TaskID:     task.ID,
				EmployeeID: *task.AssigneeID,
				Amount:     amount,
				Formula:    c.formula.String(),
				Status:     models.CommissionPending,
			}
			if err := tx.Create(&commission).Error; err != nil {
				return nil, fmt.Errorf("accrue commission: %w", err)
			}
		}
		return map[string]any{"completed_at": now, "rejection_reason": ""}, nil
	})
}

// transitionFunc добавляет к переходу свои изменения и возвращает поля задачи для сохранения.
type transitionFunc func(tx *gorm.DB, task *models.Task) (map[string]any, error)

func (c *Controller) move(ctx context.Context, id uint, action Action, expected *int, actor uint, extra transitionFunc) (*models.Task, error) {
	var moved *models.Task
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		task, err := store.LoadTask(tx, id, true)
		if err != nil {
			return err
		}
		if err := store.CheckVersion(task, expected); err != nil {
			return err
		}
		to, err := Next(task.Status, action)
		if err != nil {
			return apperr.Rejected("%v", err)
		}

		fields := map[string]any{}
		if extra != nil {
			if fields, err = extra(tx, task); err != nil {
				return err
			}
		}
		fields["status"] = to
		from := task.Status
		if err := store.BumpVersion(tx, task, fields); err != nil {
			return err
		}
		if err := store.Audit(tx, task.ID, string(action), actor, map[string]any{"from": from, "to": to}); err != nil {
			return err
		}
		moved, err = store.LoadTask(tx, task.ID, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Статус задачи изменен", "task_id", id, "action", action, "status", moved.Status, "actor", actor)
	return moved, nil
}
