package dto

import (
	"time"

	"agency-crm/pkg/decision"

	"github.com/shopspring/decimal"
)

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) rank() int {
	switch s {
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	}
	return 0
}

type ConflictKind string

const (
	ConflictOverpaid                 ConflictKind = "overpaid"
	ConflictOverAllocated            ConflictKind = "over_allocated"
	ConflictOrphaned                 ConflictKind = "orphaned"
	ConflictCreditAllocationsPresent ConflictKind = "credit_allocations_present"
)

type Conflict struct {
	Type     ConflictKind `json:"type"`
	Severity Severity     `json:"severity"`
	Message  string       `json:"message"`
}

type PaymentRecord struct {
	ID     uint            `json:"id"`
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method"`
	PaidAt time.Time       `json:"paid_at"`
}

type AllocationRecord struct {
	ID             uint            `json:"id"`
	ClientCreditID uint            `json:"client_credit_id"`
	Amount         decimal.Decimal `json:"amount"`
	AllocatedAt    time.Time       `json:"allocated_at"`
}

// ConflictReport - результат проверки предлагаемого изменения суммы по одной дебиторке.
type ConflictReport struct {
	TaskID                   uint               `json:"task_id"`
	Field                    string             `json:"field"`
	ReceivableKind           string             `json:"receivable_kind"`
	ReceivableID             *uint              `json:"receivable_id,omitempty"`
	CurrentAmount            decimal.Decimal    `json:"current_amount"`
	ProposedAmount           decimal.Decimal    `json:"proposed_amount"`
	CurrentReceivableAmount  decimal.Decimal    `json:"current_receivable_amount"`
	ProposedReceivableAmount decimal.Decimal    `json:"proposed_receivable_amount"`
	TotalPaid                decimal.Decimal    `json:"total_paid"`
	TotalAllocated           decimal.Decimal    `json:"total_allocated"`
	TotalPaidOrAllocated     decimal.Decimal    `json:"total_paid_or_allocated"`
	Surplus                  decimal.Decimal    `json:"surplus"`
	HasConflict              bool               `json:"has_conflict"`
	Conflicts                []Conflict         `json:"conflicts"`
	Payments                 []PaymentRecord    `json:"payments"`
	Allocations              []AllocationRecord `json:"allocations"`
	// Вторая половина совместной правки, которая не сохранена и ждет решения по конфликту.
	PendingTaskAmount    *decimal.Decimal `json:"pending_task_amount,omitempty"`
	PendingPrepaidAmount *decimal.Decimal `json:"pending_prepaid_amount,omitempty"`
}

// MaxSeverity возвращает наибольшую серьезность среди конфликтов.
func (r *ConflictReport) MaxSeverity() Severity {
	var top Severity
	for _, c := range r.Conflicts {
		if c.Severity.rank() > top.rank() {
			top = c.Severity
		}
	}
	return top
}

// Records возвращает записи дебиторки в виде, нужном для decision.Collector.
func (r *ConflictReport) Records() (payments, allocations []decision.Record) {
	for _, p := range r.Payments {
		payments = append(payments, decision.Record{ID: p.ID, Amount: p.Amount})
	}
	for _, a := range r.Allocations {
		allocations = append(allocations, decision.Record{ID: a.ID, Amount: a.Amount})
	}
	return payments, allocations
}

func (r *ConflictReport) HasRecords() bool {
	return len(r.Payments) > 0 || len(r.Allocations) > 0
}

// CancellationAnalysis - обе дебиторки задачи перед отменой.
type CancellationAnalysis struct {
	TaskID            uint            `json:"task_id"`
	Status            TaskStatus      `json:"status"`
	Prepaid           *ConflictReport `json:"prepaid,omitempty"`
	Main              *ConflictReport `json:"main,omitempty"`
	RequiresDecisions bool            `json:"requires_decisions"`
}

// ReceivableDecisions - решения по платежам и распределениям одной дебиторки.
type ReceivableDecisions struct {
	PaymentDecisions    []decision.PaymentItem    `json:"payment_decisions"`
	AllocationDecisions []decision.AllocationItem `json:"allocation_decisions"`
}

// NewReceivableDecisions переводит набор решений в формат API.
func NewReceivableDecisions(set decision.Set) ReceivableDecisions {
	payments, allocations := set.Items()
	return ReceivableDecisions{PaymentDecisions: payments, AllocationDecisions: allocations}
}

func (d ReceivableDecisions) Decode(opts decision.Options) (decision.Set, error) {
	return decision.Decode(d.PaymentDecisions, d.AllocationDecisions, opts)
}

type PrepaidDecisions struct {
	ReceivableDecision decision.ReceivableDecision `json:"receivable_decision"`
	ReceivableDecisions
}

type ResolvePrepaidChangeRequest struct {
	NewPrepaidAmount decimal.Decimal  `json:"new_prepaid_amount"`
	Decisions        PrepaidDecisions `json:"decisions"`
	ExpectedVersion  *int             `json:"expected_version,omitempty"`
}

type ResolveAmountChangeRequest struct {
	NewTaskAmount           decimal.Decimal     `json:"new_task_amount"`
	MainReceivableDecisions ReceivableDecisions `json:"main_receivable_decisions"`
	ExpectedVersion         *int                `json:"expected_version,omitempty"`
}

type CancelTaskRequest struct {
	TaskAction                 decision.TaskAction  `json:"task_action"`
	PrepaidReceivableDecisions *ReceivableDecisions `json:"prepaid_receivable_decisions,omitempty"`
	MainReceivableDecisions    *ReceivableDecisions `json:"main_receivable_decisions,omitempty"`
	ExpectedVersion            *int                 `json:"expected_version,omitempty"`
}

type AppliedAction struct {
	RecordType     string          `json:"record_type"`
	RecordID       uint            `json:"record_id"`
	Action         decision.Action `json:"action"`
	Amount         decimal.Decimal `json:"amount"`
	ClientCreditID *uint           `json:"client_credit_id,omitempty"`
}

// ResolutionSummary - итог применения решений.
type ResolutionSummary struct {
	Task                *Task               `json:"task,omitempty"`
	TaskDeleted         bool                `json:"task_deleted"`
	Receivables         []ReceivableBalance `json:"receivables"`
	ClientCreditBalance decimal.Decimal     `json:"client_credit_balance"`
	Applied             []AppliedAction     `json:"applied"`
}
