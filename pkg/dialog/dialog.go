// Package dialog описывает окна дашборда задач как закрытый набор вариантов
// и контроллер, который ими управляет. Контроллер передается явно, глобального
// состояния нет.
package dialog

import (
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindTaskDrawer      Kind = "task_drawer"
	KindPrepaidConflict Kind = "prepaid_conflict"
	KindAmountConflict  Kind = "amount_conflict"
	KindCancelTask      Kind = "cancel_task"
	KindRestoreConfirm  Kind = "restore_confirm"
)

// Dialog реализуют только типы этого пакета.
type Dialog interface {
	Kind() Kind
	TaskID() uint
	sealed()
}

// TaskDrawer - карточка задачи с формой редактирования.
type TaskDrawer struct {
	Task dto.Task
}

// PrepaidConflict открывается, когда новая предоплата меньше собранных по ней денег.
type PrepaidConflict struct {
	Report     *dto.ConflictReport
	NewPrepaid decimal.Decimal
	Version    int
}

type AmountConflict struct {
	Report    *dto.ConflictReport
	NewAmount decimal.Decimal
	Version   int
}

type CancelTask struct {
	Analysis *dto.CancellationAnalysis
	Version  int
}

// RestoreConfirm перечисляет счета и комиссию, которые удалит возврат задачи.
type RestoreConfirm struct {
	Validation *dto.RestoreValidation
}

func (TaskDrawer) Kind() Kind      { return KindTaskDrawer }
func (PrepaidConflict) Kind() Kind { return KindPrepaidConflict }
func (AmountConflict) Kind() Kind  { return KindAmountConflict }
func (CancelTask) Kind() Kind      { return KindCancelTask }
func (RestoreConfirm) Kind() Kind  { return KindRestoreConfirm }

func (d TaskDrawer) TaskID() uint      { return d.Task.ID }
func (d PrepaidConflict) TaskID() uint { return d.Report.TaskID }
func (d AmountConflict) TaskID() uint  { return d.Report.TaskID }
func (d CancelTask) TaskID() uint      { return d.Analysis.TaskID }
func (d RestoreConfirm) TaskID() uint  { return d.Validation.Consequences.Task.ID }

func (TaskDrawer) sealed()      {}
func (PrepaidConflict) sealed() {}
func (AmountConflict) sealed()  {}
func (CancelTask) sealed()      {}
func (RestoreConfirm) sealed()  {}
