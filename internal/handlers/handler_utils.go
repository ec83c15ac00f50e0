package handlers

import (
	"slices"
	"strconv"

	"agency-crm/config"
	"agency-crm/internal/ledger"
	"agency-crm/internal/lifecycle"
	"agency-crm/models"

	"github.com/gin-gonic/gin"
)

// commissionFormula задается при старте сервера из настроек.
var commissionFormula *lifecycle.Formula

func SetCommissionFormula(f *lifecycle.Formula) {
	commissionFormula = f
}

var invoiceCurrency = lifecycle.DefaultCurrency

func SetInvoiceCurrency(cur lifecycle.Currency) {
	invoiceCurrency = cur
}

func ledgerService() *ledger.Service {
	return ledger.NewService(config.DB)
}

func taskController() *lifecycle.Controller {
	return lifecycle.NewController(config.DB, commissionFormula).WithCurrency(invoiceCurrency)
}

// idParam разбирает числовой параметр пути. При ошибке сам отвечает 400.
func idParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "Invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// actorID - пользователь из токена, его пишем в журнал.
func actorID(c *gin.Context) uint {
	if v, ok := c.Get("user_id"); ok {
		if id, ok := v.(uint); ok {
			return id
		}
	}
	return 0
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// hasPermission повторяет проверку PermissionMiddleware внутри обработчика,
// когда нужное право зависит от тела запроса.
func hasPermission(c *gin.Context, perm string) bool {
	if roles, ok := c.Get("roles"); ok {
		if names, ok := roles.([]string); ok && slices.Contains(names, models.RoleAdmin) {
			return true
		}
	}
	perms, _ := c.Get("permissions")
	names, _ := perms.([]string)
	return slices.Contains(names, perm)
}
