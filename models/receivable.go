package models

import (
	"time"

	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ReceivableKind string

const (
	ReceivablePrepaid ReceivableKind = "prepaid"
	ReceivableMain    ReceivableKind = "main"
)

// Receivable - долг клиента по задаче: предоплата или основной остаток.
type Receivable struct {
	gorm.Model
	TaskID      uint            `json:"task_id" gorm:"not null;index"`
	Kind        ReceivableKind  `json:"kind" gorm:"type:varchar(16);not null"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null;default:0"`
	DueDate     *time.Time      `json:"due_date"`
	Payments    []Payment       `json:"payments,omitempty" gorm:"foreignKey:ReceivableID"`
	Allocations []Allocation    `json:"allocations,omitempty" gorm:"foreignKey:ReceivableID"`
}

// Payment - фактически полученные деньги по дебиторке.
type Payment struct {
	gorm.Model
	ReceivableID uint            `json:"receivable_id" gorm:"not null;index"`
	Amount       decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Method       string          `json:"method"`
	PaidAt       time.Time       `json:"paid_at" gorm:"not null"`
	CreatedByID  uint            `json:"created_by"`
}

// Allocation - зачет ранее накопленного кредита клиента в счет дебиторки.
type Allocation struct {
	gorm.Model
	ReceivableID   uint            `json:"receivable_id" gorm:"not null;index"`
	ClientCreditID uint            `json:"client_credit_id" gorm:"not null;index"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	AllocatedAt    time.Time       `json:"allocated_at" gorm:"not null"`
}

func (r *Receivable) Paid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

func (r *Receivable) Allocated() decimal.Decimal {
	total := decimal.Zero
	for _, a := range r.Allocations {
		total = total.Add(a.Amount)
	}
	return total
}

// Collected - сумма платежей и зачетов. Не должна превышать Amount.
func (r *Receivable) Collected() decimal.Decimal {
	return r.Paid().Add(r.Allocated())
}

func (r *Receivable) Outstanding() decimal.Decimal {
	return r.Amount.Sub(r.Collected())
}

func (r *Receivable) Balance() dto.ReceivableBalance {
	return dto.ReceivableBalance{
		ID:          r.ID,
		Kind:        string(r.Kind),
		Amount:      r.Amount,
		Paid:        r.Paid(),
		Allocated:   r.Allocated(),
		Outstanding: r.Outstanding(),
		DueDate:     r.DueDate,
	}
}

func (r *Receivable) PaymentIDs() []uint {
	ids := make([]uint, 0, len(r.Payments))
	for _, p := range r.Payments {
		ids = append(ids, p.ID)
	}
	return ids
}

func (r *Receivable) AllocationIDs() []uint {
	ids := make([]uint, 0, len(r.Allocations))
	for _, a := range r.Allocations {
		ids = append(ids, a.ID)
	}
	return ids
}
