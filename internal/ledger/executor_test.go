package ledger

import (
	"context"
	"testing"

	"agency-crm/internal/apperr"
	"agency-crm/internal/testdb"
	"agency-crm/models"
	"agency-crm/pkg/decision"
	"agency-crm/pkg/dto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func payItem(id uint, action decision.Action) decision.PaymentItem {
	return decision.PaymentItem{PaymentID: id, Action: action}
}

func reduceItem(id uint, amount string) decision.PaymentItem {
	a := money(amount)
	return decision.PaymentItem{PaymentID: id, Action: decision.ActionReduceTo, Amount: &a}
}

func allocItem(id uint, action decision.Action) decision.AllocationItem {
	return decision.AllocationItem{AllocationID: id, Action: action}
}

func reloadTask(t *testing.T, db *gorm.DB, id uint) models.Task {
	t.Helper()
	var task models.Task
	require.NoError(t, db.First(&task, id).Error)
	return task
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, money(want).Equal(got), append([]any{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestResolvePrepaidChange(t *testing.T) {
	ctx := context.Background()

	t.Run("reduce payment to the new prepaid amount", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ИП Береке")
		task := testdb.Task(t, db, client.ID, "1000", "400")
		prepaid := testdb.Receivable(t, db, task.ID, models.ReceivablePrepaid)
		pay := testdb.Payment(t, db, prepaid.ID, "400")

		report, err := svc.DetectPrepaidChange(ctx, task.ID, money("200"))
		require.NoError(t, err)
		assertMoney(t, "200", report.Surplus)

		version := 1
		summary, err := svc.ResolvePrepaidChange(ctx, task.ID, dto.ResolvePrepaidChangeRequest{
			NewPrepaidAmount: money("200"),
			Decisions: dto.PrepaidDecisions{
				ReceivableDecision:  decision.AdjustToNewAmount,
				ReceivableDecisions: dto.ReceivableDecisions{PaymentDecisions: []decision.PaymentItem{reduceItem(pay.ID, "200")}},
			},
			ExpectedVersion: &version,
		}, 7)
		require.NoError(t, err)

		require.NotNil(t, summary.Task)
		assert.Equal(t, 2, summary.Task.Version)
		assertMoney(t, "200", summary.Task.PrepaidAmount)
		require.Len(t, summary.Applied, 1)
		assert.Equal(t, decision.ActionReduceTo, summary.Applied[0].Action)
		assertMoney(t, "200", summary.Applied[0].Amount)

		prepaid = testdb.Receivable(t, db, task.ID, models.ReceivablePrepaid)
		assertMoney(t, "200", prepaid.Amount)
		assertMoney(t, "200", prepaid.Paid())
		main := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		assertMoney(t, "800", main.Amount)

		var audit []models.AuditEntry
		require.NoError(t, db.Where("task_id = ?", task.ID).Find(&audit).Error)
		require.Len(t, audit, 1)
		assert.Equal(t, "resolve_prepaid_change", audit[0].Action)
		assert.Equal(t, uint(7), audit[0].ActorID)
	})

	t.Run("eliminate prepaid moves kept payments to main", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Курылыс")
		task := testdb.Task(t, db, client.ID, "1000", "400")
		prepaid := testdb.Receivable(t, db, task.ID, models.ReceivablePrepaid)
		keep := testdb.Payment(t, db, prepaid.ID, "300")
		drop := testdb.Payment(t, db, prepaid.ID, "100")

		summary, err := svc.ResolvePrepaidChange(ctx, task.ID, dto.ResolvePrepaidChangeRequest{
			NewPrepaidAmount: decimal.Zero,
			Decisions: dto.PrepaidDecisions{
				ReceivableDecision: decision.EliminatePrepaid,
				ReceivableDecisions: dto.ReceivableDecisions{PaymentDecisions: []decision.PaymentItem{
					payItem(keep.ID, decision.ActionKeep),
					payItem(drop.ID, decision.ActionDelete),
				}},
			},
		}, 1)
		require.NoError(t, err)
		require.Len(t, summary.Receivables, 1)
		assert.Equal(t, "main", summary.Receivables[0].Kind)
		assertMoney(t, "1000", summary.Receivables[0].Amount)
		assertMoney(t, "300", summary.Receivables[0].Paid)

		var count int64
		require.NoError(t, db.Model(&models.Receivable{}).Where("task_id = ? AND kind = ?", task.ID, models.ReceivablePrepaid).Count(&count).Error)
		assert.Zero(t, count)
		assertMoney(t, "0", reloadTask(t, db, task.ID).PrepaidAmount)
	})

	t.Run("eliminate requires zero prepaid", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Курылыс")
		task := testdb.Task(t, db, client.ID, "1000", "400")

		_, err := svc.ResolvePrepaidChange(ctx, task.ID, dto.ResolvePrepaidChangeRequest{
			NewPrepaidAmount: money("100"),
			Decisions:        dto.PrepaidDecisions{ReceivableDecision: decision.EliminatePrepaid},
		}, 1)
		assert.ErrorIs(t, err, apperr.ErrValidationRejected)
	})

	t.Run("prepaid increase that overdraws main is rejected", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Курылыс")
		task := testdb.Task(t, db, client.ID, "1000", "400")
		main := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		testdb.Payment(t, db, main.ID, "600")

		_, err := svc.ResolvePrepaidChange(ctx, task.ID, dto.ResolvePrepaidChangeRequest{
			NewPrepaidAmount: money("500"),
			Decisions:        dto.PrepaidDecisions{ReceivableDecision: decision.AdjustToNewAmount},
		}, 1)
		assert.ErrorIs(t, err, apperr.ErrValidationRejected)
		assertMoney(t, "400", reloadTask(t, db, task.ID).PrepaidAmount)
		assertMoney(t, "400", testdb.Receivable(t, db, task.ID, models.ReceivablePrepaid).Amount)
	})
}

func TestResolveAmountChange(t *testing.T) {
	ctx := context.Background()

	t.Run("convert full payment to credit", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Дала")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		main := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		pay := testdb.Payment(t, db, main.ID, "1000")

		report, err := svc.DetectAmountChange(ctx, task.ID, money("600"))
		require.NoError(t, err)
		assertMoney(t, "400", report.Surplus)

		summary, err := svc.ResolveAmountChange(ctx, task.ID, dto.ResolveAmountChangeRequest{
			NewTaskAmount:           money("600"),
			MainReceivableDecisions: dto.ReceivableDecisions{PaymentDecisions: []decision.PaymentItem{payItem(pay.ID, decision.ActionConvertToCredit)}},
		}, 1)
		require.NoError(t, err)

		assertMoney(t, "600", summary.Task.Amount)
		require.Len(t, summary.Receivables, 1)
		assertMoney(t, "600", summary.Receivables[0].Amount)
		assertMoney(t, "0", summary.Receivables[0].Paid)
		assertMoney(t, "1000", summary.ClientCreditBalance)
		require.Len(t, summary.Applied, 1)
		require.NotNil(t, summary.Applied[0].ClientCreditID)

		var credit models.ClientCredit
		require.NoError(t, db.First(&credit, *summary.Applied[0].ClientCreditID).Error)
		assert.Equal(t, models.CreditFromPaymentConversion, credit.Source)
		require.NotNil(t, credit.SourcePaymentID)
		assert.Equal(t, pay.ID, *credit.SourcePaymentID)
	})

	t.Run("return allocation restores credit balance", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Дала")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		main := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		pay := testdb.Payment(t, db, main.ID, "500")
		credit := testdb.Credit(t, db, client.ID, "500")
		alloc := testdb.Allocation(t, db, main.ID, &credit, "300")

		summary, err := svc.ResolveAmountChange(ctx, task.ID, dto.ResolveAmountChangeRequest{
			NewTaskAmount: money("500"),
			MainReceivableDecisions: dto.ReceivableDecisions{
				PaymentDecisions:    []decision.PaymentItem{payItem(pay.ID, decision.ActionKeep)},
				AllocationDecisions: []decision.AllocationItem{allocItem(alloc.ID, decision.ActionReturnToCredit)},
			},
		}, 1)
		require.NoError(t, err)
		assertMoney(t, "500", summary.ClientCreditBalance)
		assertMoney(t, "500", summary.Receivables[0].Paid)
		assertMoney(t, "0", summary.Receivables[0].Allocated)
	})

	t.Run("kept money over the new amount rolls back", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Дала")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		main := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		pay := testdb.Payment(t, db, main.ID, "1000")

		_, err := svc.ResolveAmountChange(ctx, task.ID, dto.ResolveAmountChangeRequest{
			NewTaskAmount:           money("600"),
			MainReceivableDecisions: dto.ReceivableDecisions{PaymentDecisions: []decision.PaymentItem{payItem(pay.ID, decision.ActionKeep)}},
		}, 1)
		require.ErrorIs(t, err, apperr.ErrValidationRejected)

		after := reloadTask(t, db, task.ID)
		assertMoney(t, "1000", after.Amount)
		assert.Equal(t, 1, after.Version)
		assertMoney(t, "1000", testdb.Receivable(t, db, task.ID, models.ReceivableMain).Amount)
	})

	t.Run("reduce above the new ceiling is rejected", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Дала")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		main := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		pay := testdb.Payment(t, db, main.ID, "1000")

		_, err := svc.ResolveAmountChange(ctx, task.ID, dto.ResolveAmountChangeRequest{
			NewTaskAmount:           money("600"),
			MainReceivableDecisions: dto.ReceivableDecisions{PaymentDecisions: []decision.PaymentItem{reduceItem(pay.ID, "700")}},
		}, 1)
		assert.ErrorIs(t, err, apperr.ErrValidationRejected)
		after := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		assertMoney(t, "1000", after.Paid())
	})

	t.Run("missing decision", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Дала")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		main := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		first := testdb.Payment(t, db, main.ID, "500")
		second := testdb.Payment(t, db, main.ID, "500")

		_, err := svc.ResolveAmountChange(ctx, task.ID, dto.ResolveAmountChangeRequest{
			NewTaskAmount:           money("500"),
			MainReceivableDecisions: dto.ReceivableDecisions{PaymentDecisions: []decision.PaymentItem{payItem(first.ID, decision.ActionDelete)}},
		}, 1)
		require.ErrorIs(t, err, decision.ErrPartialDecisionMissing)
		var missing *decision.MissingError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, []uint{second.ID}, missing.Payments)
		after := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		assertMoney(t, "1000", after.Paid())
	})

	t.Run("decision for a vanished payment", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Дала")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		main := testdb.Receivable(t, db, task.ID, models.ReceivableMain)
		pay := testdb.Payment(t, db, main.ID, "1000")

		_, err := svc.ResolveAmountChange(ctx, task.ID, dto.ResolveAmountChangeRequest{
			NewTaskAmount: money("600"),
			MainReceivableDecisions: dto.ReceivableDecisions{PaymentDecisions: []decision.PaymentItem{
				payItem(pay.ID, decision.ActionConvertToCredit),
				payItem(9999, decision.ActionDelete),
			}},
		}, 1)
		require.ErrorIs(t, err, apperr.ErrConcurrentModification)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, &dto.RecordRef{Type: "payment", ID: 9999}, e.Record)

		var credits int64
		require.NoError(t, db.Model(&models.ClientCredit{}).Count(&credits).Error)
		assert.Zero(t, credits)
	})

	t.Run("completed task is not resized", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Дала")
		task := testdb.Task(t, db, client.ID, "1000", "300")
		require.NoError(t, db.Model(&models.Task{}).Where("id = ?", task.ID).Update("status", models.StatusCompleted).Error)

		_, err := svc.ResolveAmountChange(ctx, task.ID, dto.ResolveAmountChangeRequest{NewTaskAmount: money("800")}, 1)
		assert.ErrorIs(t, err, apperr.ErrValidationRejected)
		_, err = svc.ResolvePrepaidChange(ctx, task.ID, dto.ResolvePrepaidChangeRequest{
			NewPrepaidAmount: money("200"),
			Decisions:        dto.PrepaidDecisions{ReceivableDecision: decision.AdjustToNewAmount},
		}, 1)
		assert.ErrorIs(t, err, apperr.ErrValidationRejected)
		_, err = svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 1, ExpenseAmount: ptr(money("50"))}, 1)
		assert.ErrorIs(t, err, apperr.ErrValidationRejected)

		assertMoney(t, "700", testdb.Receivable(t, db, task.ID, models.ReceivableMain).Amount)
		assert.Equal(t, 1, reloadTask(t, db, task.ID).Version)
	})

	t.Run("stale version", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Дала")
		task := testdb.Task(t, db, client.ID, "1000", "0")

		stale := 3
		_, err := svc.ResolveAmountChange(ctx, task.ID, dto.ResolveAmountChangeRequest{NewTaskAmount: money("900"), ExpectedVersion: &stale}, 1)
		assert.ErrorIs(t, err, apperr.ErrConcurrentModification)
	})

	t.Run("missing task", func(t *testing.T) {
		db := testdb.Open(t)
		_, err := NewService(db).ResolveAmountChange(ctx, 42, dto.ResolveAmountChangeRequest{NewTaskAmount: money("1")}, 1)
		assert.ErrorIs(t, err, apperr.ErrNotFound)
	})
}
