package ledger

import (
	"context"
	"fmt"

	"agency-crm/internal/apperr"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
)

// DetectPrepaidChange проверяет, поместятся ли платежи предоплаты в новую сумму предоплаты.
func (s *Service) DetectPrepaidChange(ctx context.Context, taskID uint, newPrepaid decimal.Decimal) (*dto.ConflictReport, error) {
	task, err := store.LoadTask(s.db.WithContext(ctx), taskID, false)
	if err != nil {
		return nil, err
	}
	if err := validatePrepaid(task.Amount, newPrepaid); err != nil {
		return nil, err
	}
	return prepaidReport(task, newPrepaid), nil
}

// DetectAmountChange проверяет основную дебиторку при новой сумме задачи.
func (s *Service) DetectAmountChange(ctx context.Context, taskID uint, newAmount decimal.Decimal) (*dto.ConflictReport, error) {
	task, err := store.LoadTask(s.db.WithContext(ctx), taskID, false)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(newAmount, task.PrepaidAmount); err != nil {
		return nil, err
	}
	return amountReport(task, newAmount, newAmount.Sub(task.PrepaidAmount)), nil
}

// AnalyzeCancellation показывает, что висит на каждой дебиторке, если задачу отменить.
func (s *Service) AnalyzeCancellation(ctx context.Context, taskID uint) (*dto.CancellationAnalysis, error) {
	task, err := store.LoadTask(s.db.WithContext(ctx), taskID, false)
	if err != nil {
		return nil, err
	}
	return analyzeCancellation(task), nil
}

func analyzeCancellation(task *models.Task) *dto.CancellationAnalysis {
	out := &dto.CancellationAnalysis{TaskID: task.ID, Status: task.Status}
	if rec := task.Receivable(models.ReceivablePrepaid); rec != nil {
		out.Prepaid = buildReport(task, "cancel", models.ReceivablePrepaid, rec, task.PrepaidAmount, decimal.Zero, decimal.Zero)
	}
	if rec := task.Receivable(models.ReceivableMain); rec != nil {
		out.Main = buildReport(task, "cancel", models.ReceivableMain, rec, task.Amount, decimal.Zero, decimal.Zero)
	}
	out.RequiresDecisions = (out.Prepaid != nil && out.Prepaid.HasRecords()) || (out.Main != nil && out.Main.HasRecords())
	return out
}

func prepaidReport(task *models.Task, newPrepaid decimal.Decimal) *dto.ConflictReport {
	rec := task.Receivable(models.ReceivablePrepaid)
	return buildReport(task, "prepaid_amount", models.ReceivablePrepaid, rec, task.PrepaidAmount, newPrepaid, newPrepaid)
}

func amountReport(task *models.Task, newAmount, ceiling decimal.Decimal) *dto.ConflictReport {
	rec := task.Receivable(models.ReceivableMain)
	return buildReport(task, "amount", models.ReceivableMain, rec, task.Amount, newAmount, ceiling)
}

func validatePrepaid(amount, prepaid decimal.Decimal) error {
	if prepaid.IsNegative() {
		return apperr.Rejected("prepaid amount cannot be negative")
	}
	if prepaid.GreaterThan(amount) {
		return apperr.Rejected("prepaid amount %s exceeds task amount %s", prepaid.StringFixed(2), amount.StringFixed(2))
	}
	return nil
}

func validateAmount(amount, prepaid decimal.Decimal) error {
	if amount.IsNegative() {
		return apperr.Rejected("task amount cannot be negative")
	}
	if amount.LessThan(prepaid) {
		return apperr.Rejected("task amount %s is below prepaid amount %s", amount.StringFixed(2), prepaid.StringFixed(2))
	}
	return nil
}

// buildReport сравнивает собранные по дебиторке деньги с новым потолком.
// Конфликт есть тогда и только тогда, когда собрано больше потолка.
func buildReport(task *models.Task, field string, kind models.ReceivableKind, rec *models.Receivable,
	current, proposed, ceiling decimal.Decimal) *dto.ConflictReport {
	r := &dto.ConflictReport{
		TaskID:                   task.ID,
		Field:                    field,
		ReceivableKind:           string(kind),
		CurrentAmount:            current,
		ProposedAmount:           proposed,
		CurrentReceivableAmount:  decimal.Zero,
		ProposedReceivableAmount: ceiling,
		Conflicts:                []dto.Conflict{},
		Payments:                 []dto.PaymentRecord{},
		Allocations:              []dto.AllocationRecord{},
	}
	paid, allocated := decimal.Zero, decimal.Zero
	if rec != nil {
		id := rec.ID
		r.ReceivableID = &id
		r.CurrentReceivableAmount = rec.Amount
		for _, p := range rec.Payments {
			r.Payments = append(r.Payments, dto.PaymentRecord{ID: p.ID, Amount: p.Amount, Method: p.Method, PaidAt: p.PaidAt})
		}
		for _, a := range rec.Allocations {
			r.Allocations = append(r.Allocations, dto.AllocationRecord{ID: a.ID, ClientCreditID: a.ClientCreditID, Amount: a.Amount, AllocatedAt: a.AllocatedAt})
		}
		paid, allocated = rec.Paid(), rec.Allocated()
	}

	total := paid.Add(allocated)
	r.TotalPaid = paid
	r.TotalAllocated = allocated
	r.TotalPaidOrAllocated = total
	r.Surplus = decimal.Zero
	if !total.GreaterThan(ceiling) {
		return r
	}

	r.HasConflict = true
	r.Surplus = total.Sub(ceiling)
	switch {
	case ceiling.IsZero():
		r.Conflicts = append(r.Conflicts, dto.Conflict{
			Type:     dto.ConflictOrphaned,
			Severity: dto.SeverityHigh,
			Message:  fmt.Sprintf("%s receivable goes to zero with %s already collected", kind, total.StringFixed(2)),
		})
	case paid.GreaterThan(ceiling):
		r.Conflicts = append(r.Conflicts, dto.Conflict{
			Type:     dto.ConflictOverpaid,
			Severity: dto.SeverityHigh,
			Message:  fmt.Sprintf("payments %s exceed new amount %s", paid.StringFixed(2), ceiling.StringFixed(2)),
		})
	default:
		r.Conflicts = append(r.Conflicts, dto.Conflict{
			Type:     dto.ConflictOverAllocated,
			Severity: dto.SeverityMedium,
			Message:  fmt.Sprintf("credit allocations push the total %s over new amount %s", total.StringFixed(2), ceiling.StringFixed(2)),
		})
	}
	if allocated.IsPositive() {
		r.Conflicts = append(r.Conflicts, dto.Conflict{
			Type:     dto.ConflictCreditAllocationsPresent,
			Severity: dto.SeverityLow,
			Message:  fmt.Sprintf("%s of client credit is allocated to this receivable", allocated.StringFixed(2)),
		})
	}
	return r
}
