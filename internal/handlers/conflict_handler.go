package handlers

import (
	"net/http"

	"agency-crm/models"
	"agency-crm/pkg/decision"
	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

func decimalQuery(c *gin.Context, name string) (decimal.Decimal, bool) {
	raw := c.Query(name)
	if raw == "" {
		badRequest(c, name+" is required")
		return decimal.Zero, false
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		badRequest(c, "Invalid "+name)
		return decimal.Zero, false
	}
	return value, true
}

// GetPrepaidConflictHandler показывает, что будет с платежами предоплаты при новой сумме.
func GetPrepaidConflictHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	newPrepaid, ok := decimalQuery(c, "new_prepaid_amount")
	if !ok {
		return
	}
	report, err := ledgerService().DetectPrepaidChange(c.Request.Context(), id, newPrepaid)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func GetAmountConflictHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	newAmount, ok := decimalQuery(c, "new_task_amount")
	if !ok {
		return
	}
	report, err := ledgerService().DetectAmountChange(c.Request.Context(), id, newAmount)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func GetCancelAnalysisHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	analysis, err := ledgerService().AnalyzeCancellation(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, analysis)
}

// ResolvePrepaidChangeHandler применяет решения оператора по предоплатной дебиторке.
func ResolvePrepaidChangeHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.ResolvePrepaidChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	summary, err := ledgerService().ResolvePrepaidChange(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func ResolveAmountChangeHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.ResolveAmountChangeRequest
	if !bindJSON(c, &req) {
		return
	}
	summary, err := ledgerService().ResolveAmountChange(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// CancelTaskHandler отменяет или удаляет задачу с решениями по собранным деньгам.
func CancelTaskHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.CancelTaskRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.TaskAction == decision.TaskActionDelete && !hasPermission(c, models.PermTasksDelete) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
		return
	}
	summary, err := ledgerService().CancelTask(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
