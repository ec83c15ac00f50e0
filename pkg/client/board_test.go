package client

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"agency-crm/pkg/dto"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAPI struct {
	mu      sync.Mutex
	tasks   []dto.Task
	listErr error
	moveErr error
	lists   int
	seen    chan dto.TaskStatus
}

func (f *fakeAPI) AllTasks(context.Context, dto.TaskStatus) ([]dto.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]dto.Task(nil), f.tasks...), nil
}

func (f *fakeAPI) Transition(_ context.Context, id uint, action string, req dto.TransitionRequest) (*dto.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen != nil {
		// статус, который доска показывает, пока запрос в пути
		<-f.seen
	}
	if f.moveErr != nil {
		return nil, f.moveErr
	}
	for i := range f.tasks {
		if f.tasks[i].ID == id {
			f.tasks[i].Status = map[string]dto.TaskStatus{"defer": dto.StatusDeferred, "resume": dto.StatusNew, "submit": dto.StatusPendingReview}[action]
			f.tasks[i].Version++
			t := f.tasks[i]
			return &t, nil
		}
	}
	return nil, &Error{Kind: dto.KindNotFound}
}

func TestClampInterval(t *testing.T) {
	assert.Equal(t, DefaultPollInterval, clampInterval(0))
	assert.Equal(t, 20*time.Second, clampInterval(time.Second))
	assert.Equal(t, 30*time.Second, clampInterval(time.Minute))
	assert.Equal(t, 22*time.Second, clampInterval(22*time.Second))
}

func TestBoardOptimisticMove(t *testing.T) {
	ctx := context.Background()
	api := &fakeAPI{tasks: []dto.Task{{ID: 1, Status: dto.StatusNew, Version: 1}}}
	toasts := &Recorder{}
	board := NewBoard(api, toasts, 0)
	require.NoError(t, board.Refresh(ctx))

	t.Run("commit", func(t *testing.T) {
		task, err := board.Defer(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, task.Version)
		got, _ := board.Task(1)
		assert.Equal(t, dto.StatusDeferred, got.Status)
	})

	t.Run("rollback on rejection", func(t *testing.T) {
		api.moveErr = &Error{Kind: dto.KindValidationRejected, Message: "cannot submit"}
		_, err := board.Submit(ctx, 1)
		require.Error(t, err)
		got, _ := board.Task(1)
		assert.Equal(t, dto.StatusDeferred, got.Status)
		last, ok := toasts.Last()
		require.True(t, ok)
		assert.Equal(t, LevelError, last.Level)
		assert.Equal(t, "cannot submit", last.Detail)
	})

	t.Run("stale version refetches", func(t *testing.T) {
		api.moveErr = &Error{Kind: dto.KindConcurrentModification}
		before := api.lists
		_, err := board.Resume(ctx, 1)
		assert.True(t, IsKind(err, dto.KindConcurrentModification))
		assert.Equal(t, before+1, api.lists)
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := board.Defer(ctx, 42)
		assert.True(t, IsKind(err, dto.KindNotFound))
	})
}

func TestBoardShowsStatusBeforeServerAnswers(t *testing.T) {
	api := &fakeAPI{tasks: []dto.Task{{ID: 1, Status: dto.StatusNew, Version: 1}}, seen: make(chan dto.TaskStatus)}
	board := NewBoard(api, &Recorder{}, 0)
	require.NoError(t, board.Refresh(context.Background()))

	done := make(chan error)
	go func() {
		_, err := board.Defer(context.Background(), 1)
		done <- err
	}()

	require.Eventually(t, func() bool {
		got, _ := board.Task(1)
		return got.Status == dto.StatusDeferred
	}, time.Second, time.Millisecond)
	api.seen <- dto.StatusDeferred
	require.NoError(t, <-done)
}

func TestBoardRunSwallowsReadErrors(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("connection refused")}
	board := NewBoard(api, &Recorder{}, 0)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- board.Run(ctx) }()
	require.Eventually(t, func() bool { return board.LastError() != nil }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, board.Tasks())
}
