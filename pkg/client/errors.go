package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"agency-crm/pkg/dto"
)

// KindTransient - сеть или 5xx. Такие ошибки при чтении повторяются на следующем опросе.
const KindTransient dto.ErrorKind = "transient"

var (
	// ErrCancelled - оператор отказался подтверждать действие, запрос не отправлялся.
	ErrCancelled = errors.New("client: action cancelled by operator")
	// ErrRestoreBlocked - сервер сообщил, что задачу вернуть нельзя.
	ErrRestoreBlocked = errors.New("client: restore is blocked")
)

// Error - ответ API с ошибкой.
type Error struct {
	Status       int
	Kind         dto.ErrorKind
	Message      string
	ConflictType string
	Data         json.RawMessage
	Record       *dto.RecordRef
	Err          error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// ConflictReport разбирает отчет из 409-ответа.
func (e *Error) ConflictReport() (*dto.ConflictReport, error) {
	if e.Kind != dto.KindConflictDetected || len(e.Data) == 0 {
		return nil, fmt.Errorf("error %s carries no conflict report", e.Kind)
	}
	var report dto.ConflictReport
	if err := json.Unmarshal(e.Data, &report); err != nil {
		return nil, fmt.Errorf("decode conflict report: %w", err)
	}
	return &report, nil
}

// KindOf возвращает класс ошибки API или пустую строку.
func KindOf(err error) dto.ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, kind dto.ErrorKind) bool {
	return KindOf(err) == kind
}
