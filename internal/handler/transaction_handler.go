package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mokanichokani/ledger-service/internal/ledger"
	"github.com/mokanichokani/ledger-service/internal/middleware"
	"github.com/mokanichokani/ledger-service/internal/utils"
)

// LedgerCommander is the write side of the ledger as seen by the API.
type LedgerCommander interface {
	Deposit(ctx context.Context, accountNumber string, amount decimal.Decimal) (ledger.Transaction, decimal.Decimal, error)
	Withdraw(ctx context.Context, accountNumber string, amount decimal.Decimal) (ledger.Transaction, decimal.Decimal, error)
	Transfer(ctx context.Context, source, destination string, amount decimal.Decimal) (ledger.Transaction, error)
}

// TransactionReader is the read side of the transaction log.
type TransactionReader interface {
	List() []ledger.Transaction
	ListByAccount(accountNumber string) []ledger.Transaction
	Get(id string) (ledger.Transaction, error)
}

type TransactionHandler struct {
	engine LedgerCommander
	txlog  TransactionReader
}

type DepositRequest struct {
	AccountNumber string          `json:"accountNumber" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

type WithdrawalRequest struct {
	AccountNumber string          `json:"accountNumber" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
}

type TransferRequest struct {
	SourceAccountNumber      string          `json:"sourceAccountNumber" validate:"required"`
	DestinationAccountNumber string          `json:"destinationAccountNumber" validate:"required"`
	Amount                   decimal.Decimal `json:"amount"`
}

// TransactionResponse carries the settled transaction for both outcomes: a
// rejected operation still produced a failed record, and callers get it back
// together with the reason.
type TransactionResponse struct {
	Success     bool                `json:"success"`
	Transaction *ledger.Transaction `json:"transaction,omitempty"`
	Balance     *decimal.Decimal    `json:"balance,omitempty"`
	Reason      string              `json:"reason,omitempty"`
}

type ListTransactionsResponse struct {
	Transactions []ledger.Transaction `json:"transactions"`
}

func NewTransactionHandler(engine LedgerCommander, txlog TransactionReader) *TransactionHandler {
	return &TransactionHandler{engine: engine, txlog: txlog}
}

func (h *TransactionHandler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(&req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	if !utils.ValidateAccountNumber(req.AccountNumber) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid account number format")
		return
	}

	tx, balance, err := h.engine.Deposit(c.Request.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		respondSettlementError(c, tx, err)
		return
	}
	c.JSON(http.StatusCreated, TransactionResponse{Success: true, Transaction: &tx, Balance: &balance})
}

func (h *TransactionHandler) Withdraw(c *gin.Context) {
	var req WithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(&req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	if !utils.ValidateAccountNumber(req.AccountNumber) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid account number format")
		return
	}

	tx, balance, err := h.engine.Withdraw(c.Request.Context(), req.AccountNumber, req.Amount)
	if err != nil {
		respondSettlementError(c, tx, err)
		return
	}
	c.JSON(http.StatusCreated, TransactionResponse{Success: true, Transaction: &tx, Balance: &balance})
}

func (h *TransactionHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(&req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}
	if !utils.ValidateAccountNumber(req.SourceAccountNumber) || !utils.ValidateAccountNumber(req.DestinationAccountNumber) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid account number format")
		return
	}

	tx, err := h.engine.Transfer(c.Request.Context(), req.SourceAccountNumber, req.DestinationAccountNumber, req.Amount)
	if err != nil {
		respondSettlementError(c, tx, err)
		return
	}
	c.JSON(http.StatusCreated, TransactionResponse{Success: true, Transaction: &tx})
}

func (h *TransactionHandler) ListTransactions(c *gin.Context) {
	if accountNumber := c.Query("accountNumber"); accountNumber != "" {
		c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: h.txlog.ListByAccount(accountNumber)})
		return
	}
	c.JSON(http.StatusOK, ListTransactionsResponse{Transactions: h.txlog.List()})
}

func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	transactionID := c.Param("transactionId")
	if !utils.ValidateTransactionID(transactionID) {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid transaction ID format")
		return
	}
	tx, err := h.txlog.Get(transactionID)
	if err != nil {
		middleware.RespondWithError(c, http.StatusNotFound, "Transaction not found")
		return
	}
	c.JSON(http.StatusOK, tx)
}

func (h *TransactionHandler) ListAccountTransactions(c *gin.Context) {
	c.JSON(http.StatusOK, ListTransactionsResponse{
		Transactions: h.txlog.ListByAccount(c.Param("accountNumber")),
	})
}

// respondSettlementError maps ledger errors to HTTP statuses. Business
// rejections carry the failed transaction so clients can show the audit
// record; validation and quarantine refusals recorded nothing.
func respondSettlementError(c *gin.Context, tx ledger.Transaction, err error) {
	body := TransactionResponse{Success: false, Reason: err.Error()}
	if tx.ID != "" {
		body.Transaction = &tx
	}

	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusUnprocessableEntity, body)
	case errors.Is(err, ledger.ErrAccountNotFound), errors.Is(err, ledger.ErrDestinationNotFound):
		c.JSON(http.StatusNotFound, body)
	case errors.Is(err, ledger.ErrAccountSuspect):
		c.JSON(http.StatusServiceUnavailable, body)
	default:
		c.JSON(http.StatusInternalServerError, body)
	}
}
