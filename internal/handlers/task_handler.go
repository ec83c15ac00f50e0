package handlers

import (
	"net/http"
	"strconv"

	"agency-crm/config"
	"agency-crm/internal/store"
	"agency-crm/models"
	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateTaskHandler создает задачу вместе с дебиторками.
func CreateTaskHandler(c *gin.Context) {
	var req dto.CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := taskController().CreateTask(c.Request.Context(), req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task.DTO())
}

// ListTasksHandler - страница задач для доски. Фильтры: status и client_id.
func ListTasksHandler(c *gin.Context) {
	query := config.DB.Model(&models.Task{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if clientID, err := strconv.ParseUint(c.Query("client_id"), 10, 64); err == nil {
		query = query.Where("client_id = ?", clientID)
	}

	var totalRows int64
	if err := query.Count(&totalRows).Error; err != nil {
		respondError(c, err)
		return
	}

	var tasks []models.Task
	err := query.Scopes(Paginate(c)).
		Preload("Requirements").
		Preload("Receivables", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		Preload("Receivables.Payments").
		Preload("Receivables.Allocations").
		Order("id desc").
		Find(&tasks).Error
	if err != nil {
		respondError(c, err)
		return
	}

	data := make([]dto.Task, 0, len(tasks))
	for i := range tasks {
		data = append(data, tasks[i].DTO())
	}
	c.JSON(http.StatusOK, CreatePaginatedResponse(c, data, totalRows))
}

func GetTaskHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	task, err := taskController().GetTask(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task.DTO())
}

// UpdateTaskHandler - обычное редактирование. Денежные конфликты возвращаются 409 с отчетом.
func UpdateTaskHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	task, err := ledgerService().ApplyTaskEdit(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task.DTO())
}

// GetTaskAuditHandler отдает журнал денежных операций задачи.
func GetTaskAuditHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	entries, err := store.AuditTrail(config.DB.WithContext(c.Request.Context()), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}
