// Package lifecycle ведет задачу по статусам: New, Deferred, Pending Review,
// Completed, Cancelled. Переходы с деньгами (отмена) живут в ledger.
package lifecycle

import (
	"errors"
	"fmt"

	"agency-crm/pkg/dto"
)

type Action string

const (
	ActionDefer   Action = "defer"
	ActionResume  Action = "resume"
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionCancel  Action = "cancel"
	ActionRestore Action = "restore"
)

var ErrTransition = errors.New("transition not allowed")

// Next возвращает статус после действия или ErrTransition.
func Next(from dto.TaskStatus, action Action) (dto.TaskStatus, error) {
	to, ok := next(from, action)
	if !ok {
		return from, fmt.Errorf("%w: cannot %s a task in status %q", ErrTransition, action, from)
	}
	return to, nil
}

func next(from dto.TaskStatus, action Action) (dto.TaskStatus, bool) {
	switch action {
	case ActionDefer:
		return dto.StatusDeferred, from == dto.StatusNew
	case ActionResume:
		return dto.StatusNew, from == dto.StatusDeferred
	case ActionSubmit:
		return dto.StatusPendingReview, from == dto.StatusNew || from == dto.StatusDeferred
	case ActionApprove:
		return dto.StatusCompleted, from == dto.StatusPendingReview
	case ActionReject:
		return dto.StatusNew, from == dto.StatusPendingReview
	case ActionCancel:
		return dto.StatusCancelled, from == dto.StatusNew || from == dto.StatusDeferred || from == dto.StatusPendingReview
	case ActionRestore:
		return dto.StatusNew, from == dto.StatusCompleted
	default:
		return from, false
	}
}

// IsTerminal: из Cancelled выхода нет.
func IsTerminal(s dto.TaskStatus) bool {
	return s == dto.StatusCancelled
}

// Editable: суммы задачи можно менять, пока она не завершена и не отменена.
// Завершенную задачу сначала восстанавливают, чтобы счета не разошлись с дебиторками.
func Editable(s dto.TaskStatus) bool {
	return s == dto.StatusNew || s == dto.StatusDeferred || s == dto.StatusPendingReview
}

// Allowed перечисляет действия, доступные из статуса. Используется доской для кнопок.
func Allowed(from dto.TaskStatus) []Action {
	var out []Action
	for _, a := range []Action{ActionDefer, ActionResume, ActionSubmit, ActionApprove, ActionReject, ActionCancel, ActionRestore} {
		if _, ok := next(from, a); ok {
			out = append(out, a)
		}
	}
	return out
}
