package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TaskStatus = dto.TaskStatus

const (
	StatusNew           = dto.StatusNew
	StatusDeferred      = dto.StatusDeferred
	StatusPendingReview = dto.StatusPendingReview
	StatusCompleted     = dto.StatusCompleted
	StatusCancelled     = dto.StatusCancelled
)

// TagList - это специальный тип для хранения тегов задачи в JSONB.
type TagList []string

// Value преобразует массив тегов в JSON для сохранения в БД.
func (t TagList) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal(t)
	return string(b), err
}

// Scan считывает JSON из БД и преобразует его в массив тегов.
func (t *TagList) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*t = nil
		return nil
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	}
	return errors.New("type assertion to []byte failed")
}

// Task - работа, выполняемая для клиента.
type Task struct {
	gorm.Model
	ClientID   uint    `json:"client_id" gorm:"not null;index"`
	Client     *Client `json:"client,omitempty"`
	AssigneeID *uint   `json:"assignee_id" gorm:"index"`
	Assignee   *User   `json:"assignee,omitempty" gorm:"foreignKey:AssigneeID"`

	Title       string `json:"title" gorm:"not null"`
	Description string `json:"description"`

	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null;default:0"`
	PrepaidAmount decimal.Decimal `json:"prepaid_amount" gorm:"type:numeric(12,2);not null;default:0"`
	ExpenseAmount decimal.Decimal `json:"expense_amount" gorm:"type:numeric(12,2);not null;default:0"`

	Status          TaskStatus `json:"status" gorm:"type:varchar(32);not null;default:'New';index"`
	StartDate       *time.Time `json:"start_date"`
	EndDate         *time.Time `json:"end_date"`
	Tags            TagList    `json:"tags" gorm:"type:jsonb"`
	CompletedAt     *time.Time `json:"completed_at"`
	RejectionReason string     `json:"rejection_reason"`

	// Version растет при каждом изменении задачи. По нему ловим параллельные правки.
	Version int `json:"version" gorm:"not null;default:1"`

	Requirements []TaskRequirement `json:"requirements,omitempty" gorm:"foreignKey:TaskID"`
	Receivables  []Receivable      `json:"receivables,omitempty" gorm:"foreignKey:TaskID"`
}

// TaskRequirement - пункт чек-листа задачи.
type TaskRequirement struct {
	gorm.Model
	TaskID uint   `json:"task_id" gorm:"not null;index"`
	Title  string `json:"title" gorm:"not null"`
	Done   bool   `json:"done"`
}

// Receivable возвращает дебиторку нужного вида, если она загружена.
func (t *Task) Receivable(kind ReceivableKind) *Receivable {
	for i := range t.Receivables {
		if t.Receivables[i].Kind == kind {
			return &t.Receivables[i]
		}
	}
	return nil
}

// MainCeiling - сумма основной дебиторки: всё, что не покрыто предоплатой.
func (t *Task) MainCeiling() decimal.Decimal {
	return t.Amount.Sub(t.PrepaidAmount)
}

// DTO переводит задачу в формат API.
func (t *Task) DTO() dto.Task {
	out := dto.Task{
		ID:              t.ID,
		ClientID:        t.ClientID,
		AssigneeID:      t.AssigneeID,
		Title:           t.Title,
		Description:     t.Description,
		Amount:          t.Amount,
		PrepaidAmount:   t.PrepaidAmount,
		ExpenseAmount:   t.ExpenseAmount,
		Status:          t.Status,
		StartDate:       t.StartDate,
		EndDate:         t.EndDate,
		Tags:            []string(t.Tags),
		Version:         t.Version,
		CompletedAt:     t.CompletedAt,
		RejectionReason: t.RejectionReason,
		UpdatedAt:       t.UpdatedAt,
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	for _, r := range t.Requirements {
		out.Requirements = append(out.Requirements, dto.Requirement{ID: r.ID, Title: r.Title, Done: r.Done})
	}
	for i := range t.Receivables {
		out.Receivables = append(out.Receivables, t.Receivables[i].Balance())
	}
	return out
}
