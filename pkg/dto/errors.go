package dto

import "encoding/json"

// ErrorKind - класс ошибки, по которому клиент решает, что делать дальше.
type ErrorKind string

const (
	KindNotFound               ErrorKind = "not_found"
	KindConflictDetected       ErrorKind = "conflict_detected"
	KindConcurrentModification ErrorKind = "concurrent_modification"
	KindValidationRejected     ErrorKind = "validation_rejected"
	KindPartialDecisionMissing ErrorKind = "partial_decision_missing"
	KindBadRequest             ErrorKind = "bad_request"
	KindUnauthorized           ErrorKind = "unauthorized"
	KindInternal               ErrorKind = "internal"
)

const (
	ConflictTypePrepaid            = "prepaid_conflict"
	ConflictTypeAmount             = "amount_conflict"
	ConflictTypeDuplicateOperation = "duplicate_operation"
)

// OperationIDHeader - заголовок с ID операции для защиты от повторной отправки.
const OperationIDHeader = "X-Operation-ID"

type RecordRef struct {
	Type string `json:"type"`
	ID   uint   `json:"id"`
}

// ErrorBody - тело ответа с ошибкой.
type ErrorBody struct {
	Error        string          `json:"error"`
	Kind         ErrorKind       `json:"kind,omitempty"`
	ConflictType string          `json:"conflict_type,omitempty"`
	Data         json.RawMessage `json:"data,omitempty"`
	Record       *RecordRef      `json:"record,omitempty"`
}
