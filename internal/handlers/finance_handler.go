package handlers

import (
	"net/http"

	"agency-crm/pkg/dto"

	"github.com/gin-gonic/gin"
)

// CreatePaymentHandler записывает платеж на дебиторку.
func CreatePaymentHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	payment, err := ledgerService().RecordPayment(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payment)
}

// CreateAllocationHandler засчитывает кредит клиента в дебиторку.
func CreateAllocationHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.AllocationRequest
	if !bindJSON(c, &req) {
		return
	}
	allocation, err := ledgerService().AllocateCredit(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, allocation)
}

func CreateClientHandler(c *gin.Context) {
	var req dto.CreateClientRequest
	if !bindJSON(c, &req) {
		return
	}
	client, err := ledgerService().CreateClient(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, client)
}

func GetClientHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	client, err := ledgerService().GetClient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, client)
}

// GetClientCreditsHandler - кредитный пул клиента: общий остаток и строки.
func GetClientCreditsHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	credits, err := ledgerService().ClientCredits(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, credits)
}

func GrantCreditHandler(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req dto.CreditRequest
	if !bindJSON(c, &req) {
		return
	}
	credit, err := ledgerService().GrantCredit(c.Request.Context(), id, req, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, credit.DTO())
}
