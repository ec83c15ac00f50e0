// Package apperr - ошибки предметной области, которые HTTP-слой переводит в коды ответа.
package apperr

import (
	"errors"
	"fmt"

	"agency-crm/pkg/dto"
)

var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("conflict detected")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrValidationRejected     = errors.New("validation rejected")
)

// Error - ошибка с классом Kind и необязательными данными для клиента.
type Error struct {
	Kind         error
	Msg          string
	ConflictType string
	Record       *dto.RecordRef
	Data         any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func NotFound(entity string, id uint) error {
	return &Error{Kind: ErrNotFound, Msg: fmt.Sprintf("%s %d", entity, id), Record: &dto.RecordRef{Type: entity, ID: id}}
}

func Conflict(conflictType string, data any) error {
	return &Error{Kind: ErrConflict, ConflictType: conflictType, Data: data, Msg: conflictType}
}

// Concurrent - запись изменилась или исчезла с момента загрузки.
func Concurrent(entity string, id uint, format string, args ...any) error {
	return &Error{
		Kind:   ErrConcurrentModification,
		Msg:    fmt.Sprintf(format, args...),
		Record: &dto.RecordRef{Type: entity, ID: id},
	}
}

func Rejected(format string, args ...any) error {
	return &Error{Kind: ErrValidationRejected, Msg: fmt.Sprintf(format, args...)}
}

// RejectedWith - отказ с данными, которые нужно показать оператору.
func RejectedWith(data any, format string, args ...any) error {
	return &Error{Kind: ErrValidationRejected, Msg: fmt.Sprintf(format, args...), Data: data}
}

// As возвращает *Error из цепочки err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
