package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mokanichokani/ledger-service/internal/ledger"
	"github.com/mokanichokani/ledger-service/internal/middleware"
)

// AccountReader defines the read-side operations used by AccountHandler.
type AccountReader interface {
	Lookup(accountNumber string) (ledger.Account, error)
	List() []ledger.Account
}

// AccountHandler serves the account book read-only: accounts are seeded at
// startup and mutated exclusively through ledger operations.
type AccountHandler struct {
	accounts AccountReader
}

type ListAccountsResponse struct {
	Accounts []ledger.Account `json:"accounts"`
}

type BalanceResponse struct {
	AccountNumber string          `json:"accountNumber"`
	Balance       decimal.Decimal `json:"balance"`
	Currency      string          `json:"currency"`
}

func NewAccountHandler(accounts AccountReader) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

func (h *AccountHandler) ListAccounts(c *gin.Context) {
	c.JSON(http.StatusOK, ListAccountsResponse{Accounts: h.accounts.List()})
}

func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.accounts.Lookup(c.Param("accountNumber"))
	if err != nil {
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *AccountHandler) GetBalance(c *gin.Context) {
	account, err := h.accounts.Lookup(c.Param("accountNumber"))
	if err != nil {
		middleware.RespondWithError(c, http.StatusNotFound, "Account not found")
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{
		AccountNumber: account.AccountNumber,
		Balance:       account.Balance,
		Currency:      account.Currency,
	})
}
