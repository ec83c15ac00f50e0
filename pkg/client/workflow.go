package client

import (
	"context"
	"errors"
	"fmt"

	"agency-crm/pkg/decision"
	"agency-crm/pkg/dialog"
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
)

// WorkflowAPI - запросы, которые выполняют сценарии редактирования.
type WorkflowAPI interface {
	UpdateTask(ctx context.Context, id uint, req dto.UpdateTaskRequest) (*dto.Task, error)
	CancelAnalysis(ctx context.Context, id uint) (*dto.CancellationAnalysis, error)
	ResolvePrepaidChange(ctx context.Context, id uint, req dto.ResolvePrepaidChangeRequest) (*dto.ResolutionSummary, error)
	ResolveAmountChange(ctx context.Context, id uint, req dto.ResolveAmountChangeRequest) (*dto.ResolutionSummary, error)
	CancelTask(ctx context.Context, id uint, req dto.CancelTaskRequest) (*dto.ResolutionSummary, error)
	ValidateRestore(ctx context.Context, id uint) (*dto.RestoreValidation, error)
	Restore(ctx context.Context, id uint, req dto.RestoreRequest) (*dto.Task, error)
}

// Workflow ведет оператора от правки задачи к решению денежного конфликта.
// Неполный набор решений на сервер не уходит, разрушающие действия
// отправляются только после подтверждения.
type Workflow struct {
	api       WorkflowAPI
	board     *Board
	dialogs   dialog.Controller
	notifier  Notifier
	confirmer Confirmer
}

func NewWorkflow(api WorkflowAPI, board *Board, dialogs dialog.Controller, notifier Notifier, confirmer Confirmer) *Workflow {
	return &Workflow{api: api, board: board, dialogs: dialogs, notifier: notifier, confirmer: confirmer}
}

func (w *Workflow) OpenTask(task dto.Task) {
	w.dialogs.Open(dialog.TaskDrawer{Task: task})
}

// EditTask сохраняет правку. На денежный конфликт открывает окно конфликта
// и возвращает ошибку ConflictDetected.
func (w *Workflow) EditTask(ctx context.Context, id uint, req dto.UpdateTaskRequest) (*dto.Task, error) {
	task, err := w.api.UpdateTask(ctx, id, req)
	if err == nil {
		w.board.Put(*task)
		w.notifier.Notify(Toast{Level: LevelSuccess, Title: "Задача сохранена"})
		return task, nil
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Kind != dto.KindConflictDetected {
		return nil, w.fail(ctx, "Не удалось сохранить задачу", err)
	}
	report, rerr := apiErr.ConflictReport()
	if rerr != nil {
		return nil, w.fail(ctx, "Не удалось сохранить задачу", err)
	}
	switch apiErr.ConflictType {
	case dto.ConflictTypePrepaid:
		w.dialogs.Open(dialog.PrepaidConflict{Report: report, NewPrepaid: report.ProposedAmount, Version: req.Version})
	case dto.ConflictTypeAmount:
		w.dialogs.Open(dialog.AmountConflict{Report: report, NewAmount: report.ProposedAmount, Version: req.Version})
	default:
		return nil, w.fail(ctx, "Не удалось сохранить задачу", err)
	}
	w.notifier.Notify(Toast{
		Level:  LevelInfo,
		Title:  "Нужно решение по платежам",
		Detail: fmt.Sprintf("Собрано на %s больше новой суммы", report.Surplus.StringFixed(2)),
	})
	if pending := describePending(report); pending != "" {
		w.notifier.Notify(Toast{Level: LevelWarning, Title: "Часть правки не сохранена", Detail: pending})
	}
	return nil, err
}

// describePending напоминает про вторую сумму совместной правки: её вводят заново
// после решения конфликта.
func describePending(r *dto.ConflictReport) string {
	switch {
	case r.PendingTaskAmount != nil:
		return fmt.Sprintf("Сумму задачи %s нужно сохранить повторно после решения по предоплате", r.PendingTaskAmount.StringFixed(2))
	case r.PendingPrepaidAmount != nil:
		return fmt.Sprintf("Предоплату %s нужно сохранить повторно после решения по основной сумме", r.PendingPrepaidAmount.StringFixed(2))
	}
	return ""
}

// PrepaidCollector - форма решений для окна конфликта предоплаты.
func PrepaidCollector(d dialog.PrepaidConflict) *decision.Collector {
	payments, allocations := d.Report.Records()
	return decision.NewCollector(payments, allocations, decision.Options{AllowReduce: true}, decimal.NewNullDecimal(d.NewPrepaid))
}

func AmountCollector(d dialog.AmountConflict) *decision.Collector {
	payments, allocations := d.Report.Records()
	return decision.NewCollector(payments, allocations, decision.Options{AllowReduce: true},
		decimal.NewNullDecimal(d.Report.ProposedReceivableAmount))
}

func (w *Workflow) ResolvePrepaid(ctx context.Context, d dialog.PrepaidConflict, receivable decision.ReceivableDecision, c *decision.Collector) (*dto.ResolutionSummary, error) {
	const title = "Не удалось изменить предоплату"
	set, err := w.collect(title, c)
	if err != nil {
		return nil, err
	}
	if err := w.confirmDestructive(ctx, "Изменить предоплату", set); err != nil {
		return nil, err
	}
	version := d.Version
	summary, err := w.api.ResolvePrepaidChange(ctx, d.TaskID(), dto.ResolvePrepaidChangeRequest{
		NewPrepaidAmount: d.NewPrepaid,
		Decisions:        dto.PrepaidDecisions{ReceivableDecision: receivable, ReceivableDecisions: dto.NewReceivableDecisions(set)},
		ExpectedVersion:  &version,
	})
	if err != nil {
		return nil, w.fail(ctx, title, err)
	}
	w.applied(summary, "Предоплата изменена")
	return summary, nil
}

func (w *Workflow) ResolveAmount(ctx context.Context, d dialog.AmountConflict, c *decision.Collector) (*dto.ResolutionSummary, error) {
	const title = "Не удалось изменить сумму задачи"
	set, err := w.collect(title, c)
	if err != nil {
		return nil, err
	}
	if err := w.confirmDestructive(ctx, "Изменить сумму задачи", set); err != nil {
		return nil, err
	}
	version := d.Version
	summary, err := w.api.ResolveAmountChange(ctx, d.TaskID(), dto.ResolveAmountChangeRequest{
		NewTaskAmount:           d.NewAmount,
		MainReceivableDecisions: dto.NewReceivableDecisions(set),
		ExpectedVersion:         &version,
	})
	if err != nil {
		return nil, w.fail(ctx, title, err)
	}
	w.applied(summary, "Сумма задачи изменена")
	return summary, nil
}

// OpenCancel загружает анализ отмены и открывает окно отмены.
func (w *Workflow) OpenCancel(ctx context.Context, task dto.Task) (*dialog.CancelTask, error) {
	analysis, err := w.api.CancelAnalysis(ctx, task.ID)
	if err != nil {
		return nil, w.fail(ctx, "Не удалось подготовить отмену", err)
	}
	d := dialog.CancelTask{Analysis: analysis, Version: task.Version}
	w.dialogs.Open(d)
	return &d, nil
}

// CancelCollectors возвращает формы решений по дебиторкам, на которых есть деньги.
// При отмене уменьшать платежи нельзя.
func CancelCollectors(d dialog.CancelTask) (prepaid, main *decision.Collector) {
	build := func(r *dto.ConflictReport) *decision.Collector {
		if r == nil || !r.HasRecords() {
			return nil
		}
		payments, allocations := r.Records()
		return decision.NewCollector(payments, allocations, decision.Options{}, decimal.NullDecimal{})
	}
	return build(d.Analysis.Prepaid), build(d.Analysis.Main)
}

func (w *Workflow) Cancel(ctx context.Context, d dialog.CancelTask, action decision.TaskAction, prepaid, main *decision.Collector) (*dto.ResolutionSummary, error) {
	title := "Не удалось отменить задачу"
	if action == decision.TaskActionDelete {
		title = "Не удалось удалить задачу"
	}
	req := dto.CancelTaskRequest{TaskAction: action}
	version := d.Version
	req.ExpectedVersion = &version

	combined := decision.NewSet()
	for _, part := range []struct {
		c   *decision.Collector
		dst **dto.ReceivableDecisions
	}{{prepaid, &req.PrepaidReceivableDecisions}, {main, &req.MainReceivableDecisions}} {
		if part.c == nil {
			continue
		}
		set, err := w.collect(title, part.c)
		if err != nil {
			return nil, err
		}
		decisions := dto.NewReceivableDecisions(set)
		*part.dst = &decisions
		for id, pd := range set.Payments {
			combined.Payments[id] = pd
		}
		for id, ad := range set.Allocations {
			combined.Allocations[id] = ad
		}
	}

	confirmTitle := "Отменить задачу"
	if action == decision.TaskActionDelete {
		confirmTitle = "Удалить задачу безвозвратно"
	}
	if action == decision.TaskActionDelete || isDestructive(combined) {
		if !w.confirmer.Confirm(ctx, Confirmation{Title: confirmTitle, Lines: describeSet(combined)}) {
			return nil, ErrCancelled
		}
	}

	summary, err := w.api.CancelTask(ctx, d.TaskID(), req)
	if err != nil {
		return nil, w.fail(ctx, title, err)
	}
	if summary.TaskDeleted {
		w.board.Forget(d.TaskID())
		w.dialogs.CloseTask(d.TaskID())
		w.notifier.Notify(Toast{Level: LevelSuccess, Title: "Задача удалена"})
		return summary, nil
	}
	w.applied(summary, "Задача отменена")
	return summary, nil
}

// Restore возвращает завершенную задачу в работу. Сначала показывает, какие счета
// и комиссия будут удалены, и отправляет запрос только после подтверждения.
func (w *Workflow) Restore(ctx context.Context, taskID uint) (*dto.Task, error) {
	const title = "Не удалось вернуть задачу в работу"
	v, err := w.api.ValidateRestore(ctx, taskID)
	if err != nil {
		return nil, w.fail(ctx, title, err)
	}
	if !v.Allowed {
		w.notifier.Notify(Toast{Level: LevelError, Title: title, Detail: v.Reason})
		return nil, fmt.Errorf("%w: %s", ErrRestoreBlocked, v.Reason)
	}

	w.dialogs.Open(dialog.RestoreConfirm{Validation: v})
	if !w.confirmer.Confirm(ctx, Confirmation{Title: "Вернуть задачу в работу", Lines: describeRestore(v)}) {
		w.dialogs.Close()
		return nil, ErrCancelled
	}
	task, err := w.api.Restore(ctx, taskID, dto.RestoreRequest{Confirm: true})
	if err != nil {
		return nil, w.fail(ctx, title, err)
	}
	w.board.Put(*task)
	w.dialogs.Close()
	w.notifier.Notify(Toast{Level: LevelSuccess, Title: "Задача возвращена в работу"})
	return task, nil
}

func (w *Workflow) collect(title string, c *decision.Collector) (decision.Set, error) {
	set, err := c.Submit()
	if err != nil {
		w.notifier.Notify(ToastFromError(title, err))
		return decision.Set{}, err
	}
	return set, nil
}

func (w *Workflow) confirmDestructive(ctx context.Context, title string, set decision.Set) error {
	if !isDestructive(set) {
		return nil
	}
	if !w.confirmer.Confirm(ctx, Confirmation{Title: title, Lines: describeSet(set)}) {
		return ErrCancelled
	}
	return nil
}

// fail показывает ошибку. При конфликте версий доска перечитывается: повторять
// запрос вслепую нельзя.
func (w *Workflow) fail(ctx context.Context, title string, err error) error {
	w.notifier.Notify(ToastFromError(title, err))
	if IsKind(err, dto.KindConcurrentModification) {
		_ = w.board.Refresh(ctx)
	}
	return err
}

func (w *Workflow) applied(summary *dto.ResolutionSummary, title string) {
	if summary.Task != nil {
		w.board.Put(*summary.Task)
	}
	w.dialogs.Close()
	w.notifier.Notify(Toast{
		Level:  LevelSuccess,
		Title:  title,
		Detail: fmt.Sprintf("Кредит клиента: %s", summary.ClientCreditBalance.StringFixed(2)),
	})
}

func isDestructive(set decision.Set) bool {
	for _, d := range set.Payments {
		if _, ok := d.(decision.DeletePayment); ok {
			return true
		}
	}
	for _, d := range set.Allocations {
		switch d.(type) {
		case decision.ReturnAllocationToCredit, decision.DeleteAllocation:
			return true
		}
	}
	return false
}

func describeSet(set decision.Set) []string {
	payments, allocations := set.Items()
	lines := make([]string, 0, len(payments)+len(allocations))
	for _, p := range payments {
		line := fmt.Sprintf("Платеж #%d: %s", p.PaymentID, p.Action)
		if p.Amount != nil {
			line += " " + p.Amount.StringFixed(2)
		}
		lines = append(lines, line)
	}
	for _, a := range allocations {
		lines = append(lines, fmt.Sprintf("Зачет #%d: %s", a.AllocationID, a.Action))
	}
	return lines
}

func describeRestore(v *dto.RestoreValidation) []string {
	var lines []string
	for _, inv := range v.Consequences.InvoicesToDelete {
		line := fmt.Sprintf("Будет удален счет %s на %s", inv.Number, inv.Amount.StringFixed(2))
		if inv.HasPayments {
			line += " (по нему есть оплаты)"
		}
		lines = append(lines, line)
	}
	if c := v.Consequences.CommissionToDelete; c != nil {
		lines = append(lines, fmt.Sprintf("Будет аннулирована комиссия %s сотрудника #%d", c.Amount.StringFixed(2), c.EmployeeID))
	}
	return lines
}
