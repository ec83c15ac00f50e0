// Package dto содержит типы запросов и ответов API задач.
// Их используют и сервер, и Go-клиент дашборда.
package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type TaskStatus string

const (
	StatusNew           TaskStatus = "New"
	StatusDeferred      TaskStatus = "Deferred"
	StatusPendingReview TaskStatus = "Pending Review"
	StatusCompleted     TaskStatus = "Completed"
	StatusCancelled     TaskStatus = "Cancelled"
)

// Task - задача в том виде, в каком её отдает API.
type Task struct {
	ID              uint                `json:"id"`
	ClientID        uint                `json:"client_id"`
	AssigneeID      *uint               `json:"assignee_id,omitempty"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	Amount          decimal.Decimal     `json:"amount"`
	PrepaidAmount   decimal.Decimal     `json:"prepaid_amount"`
	ExpenseAmount   decimal.Decimal     `json:"expense_amount"`
	Status          TaskStatus          `json:"status"`
	StartDate       *time.Time          `json:"start_date,omitempty"`
	EndDate         *time.Time          `json:"end_date,omitempty"`
	Tags            []string            `json:"tags"`
	Requirements    []Requirement       `json:"requirements,omitempty"`
	Version         int                 `json:"version"`
	CompletedAt     *time.Time          `json:"completed_at,omitempty"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	Receivables     []ReceivableBalance `json:"receivables,omitempty"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type Requirement struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// ReceivableBalance - состояние дебиторки после операции.
type ReceivableBalance struct {
	ID          uint            `json:"id"`
	Kind        string          `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	Paid        decimal.Decimal `json:"paid"`
	Allocated   decimal.Decimal `json:"allocated"`
	Outstanding decimal.Decimal `json:"outstanding"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
}

// Page повторяет формат пагинированного ответа API.
type Page[T any] struct {
	Data        []T   `json:"data"`
	TotalRows   int64 `json:"totalRows"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	PageSize    int   `json:"pageSize"`
}

type CreateTaskRequest struct {
	ClientID      uint            `json:"client_id" binding:"required"`
	AssigneeID    *uint           `json:"assignee_id"`
	Title         string          `json:"title" binding:"required"`
	Description   string          `json:"description"`
	Amount        decimal.Decimal `json:"amount"`
	PrepaidAmount decimal.Decimal `json:"prepaid_amount"`
	ExpenseAmount decimal.Decimal `json:"expense_amount"`
	StartDate     *time.Time      `json:"start_date"`
	EndDate       *time.Time      `json:"end_date"`
	Tags          []string        `json:"tags"`
	Requirements  []string        `json:"requirements"`
}

// UpdateTaskRequest - обычное редактирование задачи. nil-поля не меняются.
// Version - версия задачи, которую видел клиент.
type UpdateTaskRequest struct {
	Version       int              `json:"version"`
	Title         *string          `json:"title,omitempty"`
	Description   *string          `json:"description,omitempty"`
	AssigneeID    *uint            `json:"assignee_id,omitempty"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	PrepaidAmount *decimal.Decimal `json:"prepaid_amount,omitempty"`
	ExpenseAmount *decimal.Decimal `json:"expense_amount,omitempty"`
	StartDate     *time.Time       `json:"start_date,omitempty"`
	EndDate       *time.Time       `json:"end_date,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
}

// TransitionRequest - тело запросов defer/resume/submit/approve/reject.
type TransitionRequest struct {
	Version *int   `json:"version,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	PaidAt *time.Time      `json:"paid_at"`
}

type AllocationRequest struct {
	ClientCreditID uint            `json:"client_credit_id" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
}

type CreditRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

type CreateClientRequest struct {
	Name  string `json:"name" binding:"required"`
	Type  string `json:"type" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Credit struct {
	ID              uint            `json:"id"`
	Source          string          `json:"source"`
	Amount          decimal.Decimal `json:"amount"`
	Balance         decimal.Decimal `json:"balance"`
	SourcePaymentID *uint           `json:"source_payment_id,omitempty"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ClientCredits - кредитный пул клиента.
type ClientCredits struct {
	ClientID uint            `json:"client_id"`
	Balance  decimal.Decimal `json:"balance"`
	Credits  []Credit        `json:"credits"`
}
