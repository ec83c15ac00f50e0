package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"agency-crm/pkg/dto"
	"agency-crm/pkg/speculative"

	"github.com/google/uuid"
)

const (
	DefaultPollInterval = 25 * time.Second
	minPollInterval     = 20 * time.Second
	maxPollInterval     = 30 * time.Second
)

// TaskAPI - то, что доске нужно от сервера.
type TaskAPI interface {
	AllTasks(ctx context.Context, status dto.TaskStatus) ([]dto.Task, error)
	Transition(ctx context.Context, id uint, action string, req dto.TransitionRequest) (*dto.Task, error)
}

// Board - кэш списка задач. Обновляется опросом, статусы меняет сразу локально
// и откатывает, если сервер отказал.
type Board struct {
	api      TaskAPI
	notifier Notifier
	interval time.Duration
	tasks    *speculative.Store[uint, dto.Task]

	mu      sync.Mutex
	lastErr error
}

// NewBoard создает доску. interval вне диапазона 20-30 секунд приводится к границе,
// нулевой означает значение по умолчанию.
func NewBoard(api TaskAPI, notifier Notifier, interval time.Duration) *Board {
	return &Board{
		api:      api,
		notifier: notifier,
		interval: clampInterval(interval),
		tasks:    speculative.New(func(t dto.Task) uint { return t.ID }),
	}
}

func clampInterval(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultPollInterval
	case d < minPollInterval:
		return minPollInterval
	case d > maxPollInterval:
		return maxPollInterval
	}
	return d
}

func (b *Board) Interval() time.Duration { return b.interval }

// Run опрашивает сервер до отмены ctx. Ошибки чтения не показываются оператору:
// следующий опрос повторит запрос.
func (b *Board) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	b.poll(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			b.poll(ctx)
		}
	}
}

func (b *Board) poll(ctx context.Context) {
	if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
		slog.Debug("Опрос задач не удался, повторим позже", "error", err)
	}
}

// Refresh перечитывает все задачи.
func (b *Board) Refresh(ctx context.Context) error {
	tasks, err := b.api.AllTasks(ctx, "")
	b.mu.Lock()
	b.lastErr = err
	b.mu.Unlock()
	if err != nil {
		return err
	}
	b.tasks.Replace(tasks)
	return nil
}

// LastError - ошибка последнего опроса.
func (b *Board) LastError() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastErr
}

func (b *Board) Tasks() []dto.Task { return b.tasks.List() }

func (b *Board) Task(id uint) (dto.Task, bool) { return b.tasks.Get(id) }

// Forget убирает задачу с доски, например после удаления.
func (b *Board) Forget(id uint) { b.tasks.Delete(id) }

// Put записывает свежую версию задачи, полученную другим запросом.
func (b *Board) Put(task dto.Task) { b.tasks.Upsert(task) }

func (b *Board) Defer(ctx context.Context, id uint) (*dto.Task, error) {
	return b.move(ctx, id, "defer", dto.StatusDeferred)
}

func (b *Board) Resume(ctx context.Context, id uint) (*dto.Task, error) {
	return b.move(ctx, id, "resume", dto.StatusNew)
}

func (b *Board) Submit(ctx context.Context, id uint) (*dto.Task, error) {
	return b.move(ctx, id, "submit", dto.StatusPendingReview)
}

// move показывает новый статус сразу, а после ответа сервера подтверждает его или откатывает.
func (b *Board) move(ctx context.Context, id uint, action string, status dto.TaskStatus) (*dto.Task, error) {
	current, ok := b.tasks.Get(id)
	if !ok {
		return nil, &Error{Kind: dto.KindNotFound, Message: "task is not on the board"}
	}
	opID := uuid.NewString()
	if err := b.tasks.Apply(opID, id, func(t dto.Task) dto.Task {
		t.Status = status
		return t
	}); err != nil {
		return nil, err
	}

	version := current.Version
	task, err := b.api.Transition(WithOperationID(ctx, opID), id, action, dto.TransitionRequest{Version: &version})
	if err != nil {
		_ = b.tasks.Rollback(opID)
		b.notifier.Notify(ToastFromError("Не удалось изменить статус задачи", err))
		if IsKind(err, dto.KindConcurrentModification) {
			if rerr := b.Refresh(ctx); rerr != nil && !errors.Is(rerr, context.Canceled) {
				slog.Debug("Не удалось обновить доску после конфликта версий", "error", rerr)
			}
		}
		return nil, err
	}
	_ = b.tasks.Commit(opID, *task)
	return task, nil
}
