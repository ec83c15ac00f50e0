package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
)

type transition func(ctx context.Context, id uint, req dto.TransitionRequest, actor uint) (*models.Task, error)

// TransitionHandler оборачивает переход статуса задачи: defer, resume, submit, approve, reject.
// Тело запроса необязательно.
func TransitionHandler(pick func() transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := idParam(c, "id")
		if !ok {
			return
		}
		var req dto.TransitionRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			badRequest(c, "Invalid request body: "+err.Error())
			return
		}
		task, err := pick()(c.Request.Context(), id, req, actorID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, task.DTO())
	}
}

var (
	DeferTaskHandler   = TransitionHandler(func() transition { return taskController().Defer })
	ResumeTaskHandler  = TransitionHandler(func() transition { return taskController().Resume })
	SubmitTaskHandler  = TransitionHandler(func() transition { return taskController().Submit })
	ApproveTaskHandler = TransitionHandler(func() transition { return taskController().Approve })
	RejectTaskHandler  = TransitionHandler(func() transition { return taskController().Reject })
)

// ValidateRestoreHandler перечисляет последствия возврата задачи в работу.
func ValidateRestoreHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	validation, err := taskController().ValidateRestore(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, validation)
}

func RestoreTaskHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.RestoreRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := taskController().Restore(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task.DTO())
}

func PayCommissionHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	commission, err := taskController().MarkCommissionPaid(c.Request.Context(), id, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, commission)
}
