package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"agency-crm/pkg/decision"
	"agency-crm/pkg/dto"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Toast struct {
	Level  Level
	Title  string
	Detail string
}

// Notifier показывает уведомления оператору.
type Notifier interface {
	Notify(t Toast)
}

// Confirmation - вопрос перед разрушающим действием.
type Confirmation struct {
	Title string
	Lines []string
}

// Confirmer спрашивает оператора. false - отказ, запрос не отправляется.
type Confirmer interface {
	Confirm(ctx context.Context, c Confirmation) bool
}

// ToastFromError описывает ошибку денежной операции так, как её увидит оператор.
func ToastFromError(title string, err error) Toast {
	t := Toast{Level: LevelError, Title: title, Detail: err.Error()}
	var missing *decision.MissingError
	var apiErr *Error
	switch {
	case errors.As(err, &missing):
		t.Detail = describeMissing(missing)
	case errors.As(err, &apiErr):
		t.Detail = apiErr.Message
		switch apiErr.Kind {
		case dto.KindConcurrentModification:
			t.Detail = "Данные изменились, список обновлен. " + apiErr.Message
		case dto.KindNotFound:
			t.Detail = "Запись не найдена: " + apiErr.Message
		case KindTransient:
			t.Detail = "Сервер недоступен: " + apiErr.Message
		}
	}
	return t
}

func describeMissing(m *decision.MissingError) string {
	var parts []string
	if len(m.Payments) > 0 {
		parts = append(parts, fmt.Sprintf("платежи %v", m.Payments))
	}
	if len(m.Allocations) > 0 {
		parts = append(parts, fmt.Sprintf("зачеты %v", m.Allocations))
	}
	return "Нет решения: " + strings.Join(parts, ", ")
}

// Recorder - Notifier и Confirmer в памяти для тестов и консольных утилит.
type Recorder struct {
	mu      sync.Mutex
	Toasts  []Toast
	Asked   []Confirmation
	Approve bool
}

func (r *Recorder) Notify(t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Toasts = append(r.Toasts, t)
}

func (r *Recorder) Confirm(_ context.Context, c Confirmation) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Asked = append(r.Asked, c)
	return r.Approve
}

// Last возвращает последнее уведомление.
func (r *Recorder) Last() (Toast, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.Toasts) == 0 {
		return Toast{}, false
	}
	return r.Toasts[len(r.Toasts)-1], true
}
