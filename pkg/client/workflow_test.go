package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"

	"agency-crm/config"
	"agency-crm/internal/handlers"
	"agency-crm/internal/lifecycle"
	"agency-crm/internal/routes"
	"agency-crm/internal/testdb"
	"agency-crm/models"
	"agency-crm/pkg/decision"
	"agency-crm/pkg/dialog"
	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	api      *Client
	board    *Board
	dialogs  *dialog.Stack
	recorder *Recorder
	flow     *Workflow
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	config.DB = testdb.Open(t)
	config.RDB = nil
	config.JwtKey = []byte("test-secret")
	formula, err := lifecycle.ParseFormula(config.DefaultCommissionFormula)
	require.NoError(t, err)
	handlers.SetCommissionFormula(formula)
	_, err = models.CreateUser(config.DB, "admin", "Администратор", "secret1", models.RoleAdmin)
	require.NoError(t, err)

	srv := httptest.NewServer(routes.NewRouter())
	t.Cleanup(srv.Close)

	api := New(srv.URL, WithHTTPClient(srv.Client()))
	require.NoError(t, api.Login(context.Background(), "admin", "secret1"))

	rec := &Recorder{Approve: true}
	board := NewBoard(api, rec, 0)
	dialogs := dialog.NewStack(nil)
	return &env{api: api, board: board, dialogs: dialogs, recorder: rec, flow: NewWorkflow(api, board, dialogs, rec, rec)}
}

// seed создает задачу 1000/400 с оплаченной предоплатой.
func (e *env) seed(t *testing.T) (dto.Task, uint) {
	t.Helper()
	ctx := context.Background()
	client := testdb.Client(t, config.DB, "ТОО Сункар")
	task, err := e.api.CreateTask(ctx, dto.CreateTaskRequest{
		ClientID:      client.ID,
		Title:         "Налоговая отчетность",
		Amount:        testdb.Money("1000"),
		PrepaidAmount: testdb.Money("400"),
	})
	require.NoError(t, err)
	require.NoError(t, e.api.RecordPayment(ctx, task.Receivables[0].ID, dto.PaymentRequest{Amount: testdb.Money("400"), Method: "bank"}))
	require.NoError(t, e.board.Refresh(ctx))
	fresh, ok := e.board.Task(task.ID)
	require.True(t, ok)
	return fresh, client.ID
}

func TestPrepaidConflictWorkflow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	task, clientID := e.seed(t)
	e.flow.OpenTask(task)

	newPrepaid := testdb.Money("100")
	_, err := e.flow.EditTask(ctx, task.ID, dto.UpdateTaskRequest{Version: task.Version, PrepaidAmount: &newPrepaid})
	require.True(t, IsKind(err, dto.KindConflictDetected), "%v", err)

	cur, ok := e.dialogs.Current()
	require.True(t, ok)
	conflict, ok := cur.(dialog.PrepaidConflict)
	require.True(t, ok)
	assert.True(t, conflict.Report.Surplus.Equal(testdb.Money("300")))
	require.Len(t, conflict.Report.Payments, 1)

	collector := PrepaidCollector(conflict)
	t.Run("incomplete decisions are never sent", func(t *testing.T) {
		_, err := e.flow.ResolvePrepaid(ctx, conflict, decision.AdjustToNewAmount, collector)
		assert.ErrorIs(t, err, decision.ErrPartialDecisionMissing)
		last, _ := e.recorder.Last()
		assert.Contains(t, last.Detail, "платежи")
	})

	payID := conflict.Report.Payments[0].ID
	require.NoError(t, collector.DecidePayment(payID, decision.ConvertPaymentToCredit{}))
	summary, err := e.flow.ResolvePrepaid(ctx, conflict, decision.AdjustToNewAmount, collector)
	require.NoError(t, err)
	assert.True(t, summary.ClientCreditBalance.Equal(testdb.Money("400")))
	assert.Empty(t, e.recorder.Asked, "convert to credit needs no confirmation")

	onBoard, _ := e.board.Task(task.ID)
	assert.True(t, onBoard.PrepaidAmount.Equal(newPrepaid))
	cur, _ = e.dialogs.Current()
	assert.Equal(t, dialog.KindTaskDrawer, cur.Kind())

	credits, err := e.api.ClientCredits(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, credits.Balance.Equal(testdb.Money("400")))
}

func TestCombinedEditWarnsAboutPendingPrepaid(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	task, _ := e.seed(t)
	var mainID uint
	for _, r := range task.Receivables {
		if r.Kind == string(models.ReceivableMain) {
			mainID = r.ID
		}
	}
	require.NotZero(t, mainID)
	require.NoError(t, e.api.RecordPayment(ctx, mainID, dto.PaymentRequest{Amount: testdb.Money("600"), Method: "bank"}))
	require.NoError(t, e.board.Refresh(ctx))
	task, _ = e.board.Task(task.ID)

	amount, prepaid := testdb.Money("900"), testdb.Money("500")
	_, err := e.flow.EditTask(ctx, task.ID, dto.UpdateTaskRequest{Version: task.Version, Amount: &amount, PrepaidAmount: &prepaid})
	require.True(t, IsKind(err, dto.KindConflictDetected), "%v", err)

	d, ok := e.dialogs.Current()
	require.True(t, ok)
	assert.Equal(t, dialog.KindAmountConflict, d.Kind())

	last, _ := e.recorder.Last()
	assert.Equal(t, LevelWarning, last.Level)
	assert.Contains(t, last.Detail, "500.00")
}

func TestStaleEditRefetches(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	task, _ := e.seed(t)

	title := "Другое название"
	_, err := e.flow.EditTask(ctx, task.ID, dto.UpdateTaskRequest{Version: task.Version - 1, Title: &title})
	require.True(t, IsKind(err, dto.KindConcurrentModification), "%v", err)
	last, _ := e.recorder.Last()
	assert.Equal(t, LevelError, last.Level)
}

func TestCancelWorkflowDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	task, _ := e.seed(t)

	d, err := e.flow.OpenCancel(ctx, task)
	require.NoError(t, err)
	prepaid, main := CancelCollectors(*d)
	require.NotNil(t, prepaid)
	assert.Nil(t, main, "main receivable has no money")

	payID := d.Analysis.Prepaid.Payments[0].ID
	assert.Error(t, prepaid.DecidePayment(payID, decision.ReducePayment{Amount: testdb.Money("1")}), "reduce is not offered on cancel")
	require.NoError(t, prepaid.DecidePayment(payID, decision.DeletePayment{}))

	e.recorder.Approve = false
	_, err = e.flow.Cancel(ctx, *d, decision.TaskActionDelete, prepaid, main)
	assert.ErrorIs(t, err, ErrCancelled)
	_, ok := e.board.Task(task.ID)
	assert.True(t, ok, "declined delete leaves the task")

	e.recorder.Approve = true
	summary, err := e.flow.Cancel(ctx, *d, decision.TaskActionDelete, prepaid, main)
	require.NoError(t, err)
	assert.True(t, summary.TaskDeleted)
	_, ok = e.board.Task(task.ID)
	assert.False(t, ok)
	assert.Zero(t, e.dialogs.Depth())
	require.Len(t, e.recorder.Asked, 2)
	assert.Equal(t, "Удалить задачу безвозвратно", e.recorder.Asked[1].Title)
}

func TestRestoreWorkflow(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	task, _ := e.seed(t)

	_, err := e.flow.Restore(ctx, task.ID)
	assert.ErrorIs(t, err, ErrRestoreBlocked)

	_, err = e.board.Submit(ctx, task.ID)
	require.NoError(t, err)
	_, err = e.api.Transition(ctx, task.ID, "approve", dto.TransitionRequest{})
	require.NoError(t, err)

	e.recorder.Approve = false
	_, err = e.flow.Restore(ctx, task.ID)
	assert.ErrorIs(t, err, ErrCancelled)
	require.NotEmpty(t, e.recorder.Asked)
	lines := e.recorder.Asked[len(e.recorder.Asked)-1].Lines
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "по нему есть оплаты")

	e.recorder.Approve = true
	restored, err := e.flow.Restore(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, dto.StatusNew, restored.Status)
}

func TestErrorDecoding(t *testing.T) {
	e := decodeError(409, []byte(`{"error":"conflict detected: amount_conflict","kind":"conflict_detected","conflict_type":"amount_conflict","data":{"task_id":5,"surplus":"20"}}`))
	assert.Equal(t, dto.KindConflictDetected, e.Kind)
	report, err := e.ConflictReport()
	require.NoError(t, err)
	assert.Equal(t, uint(5), report.TaskID)
	assert.True(t, report.Surplus.Equal(decimal.NewFromInt(20)))

	assert.Equal(t, KindTransient, decodeError(502, []byte("bad gateway")).Kind)
	assert.Equal(t, dto.KindConcurrentModification, decodeError(412, nil).Kind)

	var wrapped error = errors.Join(errors.New("outer"), e)
	assert.True(t, IsKind(wrapped, dto.KindConflictDetected))
}
