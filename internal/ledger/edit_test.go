package ledger

import (
	"context"
	"testing"

	"agency-crm/internal/apperr"
	"agency-crm/internal/testdb"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestApplyTaskEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("plain fields and new prepaid receivable", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "0")

		updated, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{
			Version:       1,
			Title:         ptr("Аудит за 2025"),
			PrepaidAmount: ptr(money("300")),
			Tags:          []string{"аудит", "срочно"},
		}, 1)
		require.NoError(t, err)
		assert.Equal(t, "Аудит за 2025", updated.Title)
		assert.Equal(t, 2, updated.Version)
		assert.Equal(t, models.TagList{"аудит", "срочно"}, updated.Tags)
		assertMoney(t, "300", updated.Receivable(models.ReceivablePrepaid).Amount)
		assertMoney(t, "700", updated.Receivable(models.ReceivableMain).Amount)
	})

	t.Run("assign and unassign", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		user := models.User{Login: "dana", FullName: "Дана", PasswordHash: "x"}
		require.NoError(t, db.Create(&user).Error)

		assigned, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 1, AssigneeID: ptr(user.ID)}, 1)
		require.NoError(t, err)
		require.NotNil(t, assigned.AssigneeID)
		assert.Equal(t, user.ID, *assigned.AssigneeID)

		kept, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 2, Title: ptr("Аудит")}, 1)
		require.NoError(t, err)
		require.NotNil(t, kept.AssigneeID)

		cleared, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 3, AssigneeID: ptr(uint(0))}, 1)
		require.NoError(t, err)
		assert.Nil(t, cleared.AssigneeID)
		assert.Nil(t, reloadTask(t, db, task.ID).AssigneeID)
	})

	t.Run("combined edit reports the pending half", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "400")
		testdb.Payment(t, db, testdb.Receivable(t, db, task.ID, models.ReceivablePrepaid).ID, "400")
		testdb.Payment(t, db, testdb.Receivable(t, db, task.ID, models.ReceivableMain).ID, "600")

		_, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{
			Version:       1,
			Amount:        ptr(money("900")),
			PrepaidAmount: ptr(money("500")),
		}, 1)
		require.ErrorIs(t, err, apperr.ErrConflict)
		e, _ := apperr.As(err)
		assert.Equal(t, dto.ConflictTypeAmount, e.ConflictType)
		report := e.Data.(*dto.ConflictReport)
		require.NotNil(t, report.PendingPrepaidAmount)
		assertMoney(t, "500", *report.PendingPrepaidAmount)
		assert.Nil(t, report.PendingTaskAmount)

		_, err = svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{
			Version:       1,
			Amount:        ptr(money("700")),
			PrepaidAmount: ptr(money("300")),
		}, 1)
		require.ErrorIs(t, err, apperr.ErrConflict)
		e, _ = apperr.As(err)
		assert.Equal(t, dto.ConflictTypePrepaid, e.ConflictType)
		report = e.Data.(*dto.ConflictReport)
		require.NotNil(t, report.PendingTaskAmount)
		assertMoney(t, "700", *report.PendingTaskAmount)
	})

	t.Run("stale version", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "0")

		_, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 0, Title: ptr("x")}, 1)
		assert.ErrorIs(t, err, apperr.ErrConcurrentModification)
	})

	t.Run("prepaid conflict is reported first", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "400")
		testdb.Payment(t, db, testdb.Receivable(t, db, task.ID, models.ReceivablePrepaid).ID, "400")
		testdb.Payment(t, db, testdb.Receivable(t, db, task.ID, models.ReceivableMain).ID, "600")

		_, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{
			Version:       1,
			Amount:        ptr(money("500")),
			PrepaidAmount: ptr(money("200")),
		}, 1)
		require.ErrorIs(t, err, apperr.ErrConflict)
		e, _ := apperr.As(err)
		assert.Equal(t, dto.ConflictTypePrepaid, e.ConflictType)
		report, ok := e.Data.(*dto.ConflictReport)
		require.True(t, ok)
		assertMoney(t, "200", report.Surplus)
		assert.Equal(t, 1, reloadTask(t, db, task.ID).Version)
	})

	t.Run("amount conflict", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		testdb.Payment(t, db, testdb.Receivable(t, db, task.ID, models.ReceivableMain).ID, "1000")

		_, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 1, Amount: ptr(money("600"))}, 1)
		require.ErrorIs(t, err, apperr.ErrConflict)
		e, _ := apperr.As(err)
		assert.Equal(t, dto.ConflictTypeAmount, e.ConflictType)
		report := e.Data.(*dto.ConflictReport)
		assertMoney(t, "400", report.Surplus)
		assertMoney(t, "1000", reloadTask(t, db, task.ID).Amount)
	})

	t.Run("prepaid growth that squeezes paid main", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "0")
		testdb.Payment(t, db, testdb.Receivable(t, db, task.ID, models.ReceivableMain).ID, "900")

		_, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 1, PrepaidAmount: ptr(money("200"))}, 1)
		assert.ErrorIs(t, err, apperr.ErrValidationRejected)
	})

	t.Run("prepaid above amount", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "0")

		_, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 1, PrepaidAmount: ptr(money("1200"))}, 1)
		assert.ErrorIs(t, err, apperr.ErrValidationRejected)
	})

	t.Run("dropping an unpaid prepaid", func(t *testing.T) {
		db := testdb.Open(t)
		svc := NewService(db)
		client := testdb.Client(t, db, "ТОО Сункар")
		task := testdb.Task(t, db, client.ID, "1000", "300")

		updated, err := svc.ApplyTaskEdit(ctx, task.ID, dto.UpdateTaskRequest{Version: 1, PrepaidAmount: ptr(money("0"))}, 1)
		require.NoError(t, err)
		assert.Nil(t, updated.Receivable(models.ReceivablePrepaid))
		assertMoney(t, "1000", updated.Receivable(models.ReceivableMain).Amount)
	})
}
