// Package decision описывает решения оператора по платежам и распределениям кредита,
// затронутым изменением суммы задачи или её отменой.
package decision

import (
	"github.com/shopspring/decimal"
)

// Action - значение поля action в JSON-запросе.
type Action string

const (
	ActionKeep             Action = "keep"
	ActionDelete           Action = "delete"
	ActionConvertToCredit  Action = "convert_to_credit"
	ActionReduceTo         Action = "reduce_to"
	ActionReturnToCredit   Action = "return_to_credit"
	ActionDeleteAllocation Action = "delete_allocation"
)

// PaymentDecision - закрытое множество решений по платежу.
type PaymentDecision interface {
	Action() Action
	isPaymentDecision()
}

// KeepPayment оставляет платеж как есть.
type KeepPayment struct{}

// DeletePayment удаляет платеж, деньги аннулируются.
type DeletePayment struct{}

// ConvertPaymentToCredit снимает платеж с дебиторки и зачисляет всю сумму в кредит клиента.
type ConvertPaymentToCredit struct{}

// ReducePayment уменьшает платеж до Amount. Разница аннулируется.
type ReducePayment struct {
	Amount decimal.Decimal
}

func (KeepPayment) Action() Action            { return ActionKeep }
func (DeletePayment) Action() Action          { return ActionDelete }
func (ConvertPaymentToCredit) Action() Action { return ActionConvertToCredit }
func (ReducePayment) Action() Action          { return ActionReduceTo }

func (KeepPayment) isPaymentDecision()            {}
func (DeletePayment) isPaymentDecision()          {}
func (ConvertPaymentToCredit) isPaymentDecision() {}
func (ReducePayment) isPaymentDecision()          {}

// AllocationDecision - закрытое множество решений по распределению кредита.
type AllocationDecision interface {
	Action() Action
	isAllocationDecision()
}

// KeepAllocation оставляет распределение.
type KeepAllocation struct{}

// ReturnAllocationToCredit отменяет распределение и возвращает сумму в исходный кредит.
type ReturnAllocationToCredit struct{}

// DeleteAllocation удаляет распределение без возврата в кредит.
type DeleteAllocation struct{}

func (KeepAllocation) Action() Action           { return ActionKeep }
func (ReturnAllocationToCredit) Action() Action { return ActionReturnToCredit }
func (DeleteAllocation) Action() Action         { return ActionDeleteAllocation }

func (KeepAllocation) isAllocationDecision()           {}
func (ReturnAllocationToCredit) isAllocationDecision() {}
func (DeleteAllocation) isAllocationDecision()         {}

// ReceivableDecision - судьба предоплатной дебиторки при изменении предоплаты.
type ReceivableDecision string

const (
	EliminatePrepaid  ReceivableDecision = "eliminate_prepaid"
	AdjustToNewAmount ReceivableDecision = "adjust_to_new_amount"
)

func (d ReceivableDecision) Valid() bool {
	return d == EliminatePrepaid || d == AdjustToNewAmount
}

// TaskAction - что делать с самой задачей при отмене.
type TaskAction string

const (
	TaskActionCancel TaskAction = "cancel"
	TaskActionDelete TaskAction = "delete"
)

func (a TaskAction) Valid() bool {
	return a == TaskActionCancel || a == TaskActionDelete
}

// Keeps - решение оставляет деньги на дебиторке.
func Keeps(d PaymentDecision) bool {
	switch d.(type) {
	case KeepPayment, ReducePayment:
		return true
	}
	return false
}
