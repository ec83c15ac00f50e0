package routes

import (
	"agency-crm/internal/handlers"
	"agency-crm/internal/middleware"
	"agency-crm/models"

	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes регистрирует маршруты API, требующие аутентификации.
func RegisterAPIRoutes(api *gin.RouterGroup) {
	apiGroup := api.Group("/api")
	guard := middleware.OperationGuard()
	perm := middleware.PermissionMiddleware

	// --- ЗАДАЧИ ---
	tasks := apiGroup.Group("/tasks")
	{
		tasks.GET("", perm(models.PermTasksView), handlers.ListTasksHandler)
		tasks.POST("", perm(models.PermTasksCreate), guard, handlers.CreateTaskHandler)
		tasks.GET("/:id", perm(models.PermTasksView), handlers.GetTaskHandler)
		tasks.PUT("/:id", perm(models.PermTasksEdit), guard, handlers.UpdateTaskHandler)
		tasks.GET("/:id/audit", perm(models.PermTasksView), handlers.GetTaskAuditHandler)

		// статусы
		tasks.POST("/:id/defer", perm(models.PermTasksEdit), handlers.DeferTaskHandler)
		tasks.POST("/:id/resume", perm(models.PermTasksEdit), handlers.ResumeTaskHandler)
		tasks.POST("/:id/submit", perm(models.PermTasksSubmit), handlers.SubmitTaskHandler)
		tasks.POST("/:id/approve", perm(models.PermTasksReview), guard, handlers.ApproveTaskHandler)
		tasks.POST("/:id/reject", perm(models.PermTasksReview), handlers.RejectTaskHandler)
		tasks.GET("/:id/validate-restore", perm(models.PermTasksRestore), handlers.ValidateRestoreHandler)
		tasks.POST("/:id/restore", perm(models.PermTasksRestore), guard, handlers.RestoreTaskHandler)

		// денежные конфликты
		tasks.GET("/:id/prepaid-conflict", perm(models.PermTasksView), handlers.GetPrepaidConflictHandler)
		tasks.GET("/:id/amount-conflict", perm(models.PermTasksView), handlers.GetAmountConflictHandler)
		tasks.GET("/:id/cancel-analysis", perm(models.PermTasksView), handlers.GetCancelAnalysisHandler)
		tasks.POST("/:id/resolve-prepaid-change", perm(models.PermFinanceResolve), guard, handlers.ResolvePrepaidChangeHandler)
		tasks.POST("/:id/resolve-amount-change", perm(models.PermFinanceResolve), guard, handlers.ResolveAmountChangeHandler)
		tasks.POST("/:id/cancel", perm(models.PermTasksCancel), guard, handlers.CancelTaskHandler)
	}

	// --- ДЕБИТОРКИ ---
	receivables := apiGroup.Group("/receivables")
	{
		receivables.POST("/:id/payments", perm(models.PermPaymentsCreate), guard, handlers.CreatePaymentHandler)
		receivables.POST("/:id/allocations", perm(models.PermPaymentsCreate), guard, handlers.CreateAllocationHandler)
	}

	// --- КЛИЕНТЫ ---
	clients := apiGroup.Group("/clients")
	{
		clients.POST("", perm(models.PermClientsEdit), handlers.CreateClientHandler)
		clients.GET("/:id", perm(models.PermClientsView), handlers.GetClientHandler)
		clients.GET("/:id/credits", perm(models.PermClientsView), handlers.GetClientCreditsHandler)
		clients.POST("/:id/credits", perm(models.PermClientsEdit), guard, handlers.GrantCreditHandler)
	}

	apiGroup.POST("/commissions/:id/pay", perm(models.PermCommissionsPay), guard, handlers.PayCommissionHandler)

	// --- ДОСТУП ---
	access := apiGroup.Group("", perm(models.PermAccessManage))
	{
		access.GET("/permissions", handlers.ListPermissionsHandler)
		access.GET("/roles", handlers.ListRolesHandler)
		access.POST("/roles", handlers.CreateRoleHandler)
		access.PUT("/roles/:id", handlers.UpdateRoleHandler)
		access.DELETE("/roles/:id", handlers.DeleteRoleHandler)
		access.GET("/users", handlers.ListUsersHandler)
		access.POST("/users", handlers.CreateUserHandler)
		access.PUT("/users/:id/status", handlers.SetUserStatusHandler)
	}
}
