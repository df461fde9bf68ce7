package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/credit_ledger_service/internal/apperrors"
	"github.com/SscSPs/credit_ledger_service/internal/core/domain"
	portssvc "github.com/SscSPs/credit_ledger_service/internal/core/ports/services"
	"github.com/SscSPs/credit_ledger_service/internal/dto"
	"github.com/SscSPs/credit_ledger_service/internal/middleware"
	"github.com/gin-gonic/gin"
)

// debtHandler handles HTTP requests for credit checks, payments and debt queries.
type debtHandler struct {
	debtService portssvc.DebtSvcFacade
}

func newDebtHandler(ds portssvc.DebtSvcFacade) *debtHandler {
	return &debtHandler{debtService: ds}
}

// RegisterDebtRoutes registers the customer debt routes on rg.
func RegisterDebtRoutes(rg *gin.RouterGroup, debtService portssvc.DebtSvcFacade) {
	h := newDebtHandler(debtService)

	customers := rg.Group("/customers/:customerID")
	{
		customers.POST("/credit-check", h.checkCredit)
		customers.GET("/debt", h.getDebt)
		customers.GET("/debt/history", h.getDebtHistory)
		customers.POST("/payments", h.recordPayment)
		customers.POST("/transactions", h.addTransaction)
		customers.PUT("/credit-limit", h.updateCreditLimit)
		customers.GET("/credit-limit/history", h.getCreditLimitHistory)
		customers.PUT("/block", h.setBlockStatus)
	}
	rg.GET("/debt/overdue", h.listOverdue)
}

// writeServiceError maps service errors to status codes.
func writeServiceError(c *gin.Context, logger *slog.Logger, action string, err error) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		logger.Warn("Validation error", slog.String("action", action), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		logger.Warn("Resource not found", slog.String("action", action), slog.String("error", err.Error()))
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrDuplicate):
		logger.Warn("Conflict", slog.String("action", action), slog.String("error", err.Error()))
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("Service failure", slog.String("action", action), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to " + action})
	}
}

// checkCredit godoc
// @Summary Check available credit
// @Description Checks whether the order amount fits within the customer's credit limit and optionally reserves it
// @Tags debt
// @Accept  json
// @Produce  json
// @Param   customerID path string true "Customer ID"
// @Param   request body dto.CreditCheckRequest true "Credit check"
// @Success 200 {object} domain.CreditCheckResult
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to check credit"
// @Security BearerAuth
// @Router /customers/{customerID}/credit-check [post]
func (h *debtHandler) checkCredit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	customerID := c.Param("customerID")

	var req dto.CreditCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CheckCredit", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("customer_id", customerID))
	result, err := h.debtService.CheckCreditAvailability(c.Request.Context(), customerID, req.OrderAmount, domain.CreditCheckOptions{
		ReserveCredit: req.ReserveCredit,
		OrderID:       req.OrderID,
		UserID:        userID,
		DueDate:       req.DueDate,
	})
	if err != nil {
		writeServiceError(c, logger, "check credit", err)
		return
	}

	logger.Info("Credit check completed", slog.Bool("allowed", result.Allowed), slog.Bool("reserve", req.ReserveCredit))
	c.JSON(http.StatusOK, result)
}

// getDebt godoc
// @Summary Get customer debt summary
// @Description Returns the reconciled debt summary, creating the credit account on first access
// @Tags debt
// @Produce  json
// @Param   customerID path string true "Customer ID"
// @Success 200 {object} domain.DebtSummary
// @Failure 400 {object} map[string]string "Invalid customer ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to get debt"
// @Security BearerAuth
// @Router /customers/{customerID}/debt [get]
func (h *debtHandler) getDebt(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("customer_id", c.Param("customerID")))

	summary, err := h.debtService.GetCustomerDebt(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		writeServiceError(c, logger, "get debt", err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// getDebtHistory godoc
// @Summary List debt history
// @Description Returns the customer's ledger, newest first, with token pagination
// @Tags debt
// @Produce  json
// @Param   customerID path string true "Customer ID"
// @Param   limit query int false "Page size" default(20)
// @Param   nextToken query string false "Token from the previous page"
// @Param   from query string false "RFC3339 lower bound on created_at"
// @Param   to query string false "RFC3339 upper bound on created_at"
// @Param   type query string false "Transaction type" Enums(ORDER, PAYMENT, ADJUSTMENT, REFUND, WRITE_OFF)
// @Success 200 {object} dto.ListDebtTransactionsResponse
// @Failure 400 {object} map[string]string "Invalid query parameters"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to list debt history"
// @Security BearerAuth
// @Router /customers/{customerID}/debt/history [get]
func (h *debtHandler) getDebtHistory(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("customer_id", c.Param("customerID")))

	var params dto.ListDebtHistoryParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query params for GetDebtHistory", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	txns, nextToken, err := h.debtService.GetDebtHistory(c.Request.Context(), c.Param("customerID"), params.ToHistoryFilter())
	if err != nil {
		writeServiceError(c, logger, "list debt history", err)
		return
	}
	c.JSON(http.StatusOK, dto.ListDebtTransactionsResponse{Transactions: txns, NextToken: nextToken})
}

// recordPayment godoc
// @Summary Record a payment
// @Description Reduces the customer's debt and appends a PAYMENT ledger entry
// @Tags debt
// @Accept  json
// @Produce  json
// @Param   customerID path string true "Customer ID"
// @Param   request body dto.RecordPaymentRequest true "Payment"
// @Success 200 {object} domain.DebtSummary
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to record payment"
// @Security BearerAuth
// @Router /customers/{customerID}/payments [post]
func (h *debtHandler) recordPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	customerID := c.Param("customerID")

	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RecordPayment", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("customer_id", customerID))
	summary, err := h.debtService.RecordPayment(c.Request.Context(), customerID, domain.Payment{
		Amount:     req.Amount,
		Notes:      req.Notes,
		RecordedBy: userID,
	})
	if err != nil {
		writeServiceError(c, logger, "record payment", err)
		return
	}

	logger.Info("Payment recorded", slog.String("amount", req.Amount.String()))
	c.JSON(http.StatusOK, summary)
}

// addTransaction godoc
// @Summary Post a ledger transaction
// @Description Posts an ORDER, ADJUSTMENT, REFUND or WRITE_OFF entry and applies it to the customer's balance. ORDER entries with a due date count towards overdue debt.
// @Tags debt
// @Accept  json
// @Produce  json
// @Param   customerID path string true "Customer ID"
// @Param   request body dto.AddTransactionRequest true "Transaction"
// @Success 201 {object} domain.LedgerTransaction
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to add transaction"
// @Security BearerAuth
// @Router /customers/{customerID}/transactions [post]
func (h *debtHandler) addTransaction(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	customerID := c.Param("customerID")

	var req dto.AddTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for AddTransaction", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("customer_id", customerID))
	txn, err := h.debtService.AddTransaction(c.Request.Context(), customerID,
		domain.LedgerTransactionType(req.Type), *req.Amount, userID, req.ToTransactionOptions())
	if err != nil {
		writeServiceError(c, logger, "add transaction", err)
		return
	}

	logger.Info("Ledger transaction posted", slog.String("type", req.Type), slog.String("transaction_id", txn.TransactionID))
	c.JSON(http.StatusCreated, txn)
}

// updateCreditLimit godoc
// @Summary Update credit limit
// @Description Changes the credit limit of an existing account and records the change
// @Tags debt
// @Accept  json
// @Produce  json
// @Param   customerID path string true "Customer ID"
// @Param   request body dto.UpdateCreditLimitRequest true "New limit"
// @Success 200 {object} dto.CreditAccountResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Credit account not found"
// @Failure 500 {object} map[string]string "Failed to update credit limit"
// @Security BearerAuth
// @Router /customers/{customerID}/credit-limit [put]
func (h *debtHandler) updateCreditLimit(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	customerID := c.Param("customerID")

	var req dto.UpdateCreditLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for UpdateCreditLimit", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("customer_id", customerID))
	account, err := h.debtService.UpdateCreditLimit(c.Request.Context(), customerID, *req.NewLimit, userID, req.Reason)
	if err != nil {
		writeServiceError(c, logger, "update credit limit", err)
		return
	}

	logger.Info("Credit limit updated", slog.String("new_limit", account.CreditLimit.String()))
	c.JSON(http.StatusOK, dto.ToCreditAccountResponse(account))
}

// getCreditLimitHistory godoc
// @Summary List credit limit changes
// @Tags debt
// @Produce  json
// @Param   customerID path string true "Customer ID"
// @Success 200 {object} dto.ListCreditLimitChangesResponse
// @Failure 404 {object} map[string]string "Credit account not found"
// @Security BearerAuth
// @Router /customers/{customerID}/credit-limit/history [get]
func (h *debtHandler) getCreditLimitHistory(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("customer_id", c.Param("customerID")))

	changes, err := h.debtService.GetCreditLimitHistory(c.Request.Context(), c.Param("customerID"))
	if err != nil {
		writeServiceError(c, logger, "list credit limit history", err)
		return
	}
	c.JSON(http.StatusOK, dto.ListCreditLimitChangesResponse{Changes: changes})
}

// setBlockStatus godoc
// @Summary Block or unblock a customer
// @Tags debt
// @Accept  json
// @Produce  json
// @Param   customerID path string true "Customer ID"
// @Param   request body dto.SetBlockStatusRequest true "Block status"
// @Success 200 {object} dto.CreditAccountResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 404 {object} map[string]string "Credit account not found"
// @Failure 409 {object} map[string]string "Already in the requested state"
// @Security BearerAuth
// @Router /customers/{customerID}/block [put]
func (h *debtHandler) setBlockStatus(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	customerID := c.Param("customerID")

	var req dto.SetBlockStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for SetBlockStatus", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("User ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	logger = logger.With(slog.String("customer_id", customerID))
	account, err := h.debtService.SetBlockStatus(c.Request.Context(), customerID, *req.Blocked, req.Reason, userID)
	if err != nil {
		writeServiceError(c, logger, "set block status", err)
		return
	}

	logger.Info("Block status changed", slog.Bool("blocked", account.IsBlocked))
	c.JSON(http.StatusOK, dto.ToCreditAccountResponse(account))
}

// listOverdue godoc
// @Summary List overdue debt
// @Description Returns unpaid ledger entries past their due date across all customers
// @Tags debt
// @Produce  json
// @Success 200 {object} dto.ListOverdueResponse
// @Security BearerAuth
// @Router /debt/overdue [get]
func (h *debtHandler) listOverdue(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	txns, err := h.debtService.ListOverdue(c.Request.Context())
	if err != nil {
		writeServiceError(c, logger, "list overdue debt", err)
		return
	}
	c.JSON(http.StatusOK, dto.ListOverdueResponse{Transactions: txns, Count: len(txns)})
}
