package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"agency-crm/config"
	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const operationTTL = 10 * time.Minute

// OperationGuard не дает выполнить денежную операцию дважды с одним X-Operation-ID.
// Без заголовка или без Redis запрос проходит как есть. Если операция не удалась,
// ключ снимается, и клиент может повторить её с тем же ID.
func OperationGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		opID := c.GetHeader(dto.OperationIDHeader)
		if opID == "" || config.RDB == nil {
			c.Next()
			return
		}
		if _, err := uuid.Parse(opID); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, dto.ErrorBody{
				Error: "X-Operation-ID must be a UUID",
				Kind:  dto.KindBadRequest,
			})
			return
		}

		key := fmt.Sprintf("op:%s", opID)
		fresh, err := config.RDB.SetNX(config.Ctx, key, c.FullPath(), operationTTL).Result()
		if err != nil {
			slog.Error("Redis SETNX failed, operation id not checked", "error", err, "operation_id", opID)
			c.Next()
			return
		}
		if !fresh {
			slog.Warn("Повторная операция отклонена", "operation_id", opID, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusConflict, dto.ErrorBody{
				Error:        "operation " + opID + " was already submitted",
				Kind:         dto.KindConflictDetected,
				ConflictType: dto.ConflictTypeDuplicateOperation,
			})
			return
		}

		c.Next()

		if c.Writer.Status() >= http.StatusBadRequest {
			if err := config.RDB.Del(config.Ctx, key).Err(); err != nil {
				slog.Warn("Не удалось снять ключ операции", "error", err, "operation_id", opID)
			}
		}
	}
}
