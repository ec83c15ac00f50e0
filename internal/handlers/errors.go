package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"agency-crm/internal/apperr"
	"agency-crm/pkg/decision"
	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
)

// respondError переводит ошибку сервиса в HTTP-ответ. Ошибки денежных операций
// отдаются клиенту как есть, чтобы оператор видел точную причину отказа.
func respondError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Ошибка обработки запроса", "path", c.FullPath(), "error", err, "request_id", c.GetString("request_id"))
	} else {
		slog.Warn("Запрос отклонен", "path", c.FullPath(), "kind", body.Kind, "error", err)
	}
	c.AbortWithStatusJSON(status, body)
}

func errorBody(err error) (int, dto.ErrorBody) {
	var missing *decision.MissingError
	if errors.As(err, &missing) {
		return http.StatusUnprocessableEntity, dto.ErrorBody{
			Error: err.Error(),
			Kind:  dto.KindPartialDecisionMissing,
			Data:  rawJSON(missing),
		}
	}
	if errors.Is(err, decision.ErrInvalidDecision) {
		return http.StatusBadRequest, dto.ErrorBody{Error: err.Error(), Kind: dto.KindBadRequest}
	}

	e, ok := apperr.As(err)
	if !ok {
		return http.StatusInternalServerError, dto.ErrorBody{Error: "Internal server error", Kind: dto.KindInternal}
	}
	body := dto.ErrorBody{Error: e.Error(), ConflictType: e.ConflictType, Record: e.Record}
	if e.Data != nil {
		body.Data = rawJSON(e.Data)
	}
	switch {
	case errors.Is(e, apperr.ErrNotFound):
		body.Kind = dto.KindNotFound
		return http.StatusNotFound, body
	case errors.Is(e, apperr.ErrConflict):
		body.Kind = dto.KindConflictDetected
		return http.StatusConflict, body
	case errors.Is(e, apperr.ErrConcurrentModification):
		body.Kind = dto.KindConcurrentModification
		return http.StatusPreconditionFailed, body
	case errors.Is(e, apperr.ErrValidationRejected):
		body.Kind = dto.KindValidationRejected
		return http.StatusUnprocessableEntity, body
	}
	return http.StatusInternalServerError, dto.ErrorBody{Error: "Internal server error", Kind: dto.KindInternal}
}

func rawJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Не удалось сериализовать данные ошибки", "error", err)
		return nil
	}
	return data
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorBody{Error: msg, Kind: dto.KindBadRequest})
}
