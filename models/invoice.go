package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	InvoiceIssued = "Issued"

	CommissionPending = "pending"
	CommissionPaid    = "paid"
	CommissionVoided  = "voided"
)

// Invoice - счет, выставляемый клиенту при завершении задачи.
type Invoice struct {
	gorm.Model
	TaskID        uint            `json:"task_id" gorm:"not null;index"`
	ReceivableID  uint            `json:"receivable_id" gorm:"not null;index"`
	Number        string          `json:"number" gorm:"not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	AmountInWords string          `json:"amount_in_words"`
	IssuedAt      time.Time       `json:"issued_at"`
	Status        string          `json:"status" gorm:"default:'Issued'"`
}

// Commission - вознаграждение исполнителя за завершенную задачу.
type Commission struct {
	gorm.Model
	TaskID     uint            `json:"task_id" gorm:"not null;index"`
	EmployeeID uint            `json:"employee_id" gorm:"not null;index"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Formula    string          `json:"formula"`
	Status     string          `json:"status" gorm:"type:varchar(16);not null;default:'pending'"`
	PaidAt     *time.Time      `json:"paid_at"`
}

// AuditEntry - запись журнала по денежным операциям над задачей.
// TaskID не внешний ключ: запись переживает удаление задачи.
type AuditEntry struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	TaskID    uint           `json:"task_id" gorm:"not null;index"`
	Action    string         `json:"action" gorm:"type:varchar(64);not null"`
	ActorID   uint           `json:"actor_id"`
	Details   datatypes.JSON `json:"details" gorm:"type:jsonb"`
}
